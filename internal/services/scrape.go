package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/config"
	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/media"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/scraper"
	"github.com/kelsos/media-scraper/internal/storage"
	"github.com/kelsos/media-scraper/internal/transport"
)

// Stage is the step a game is currently going through
type Stage string

const (
	StageIdle      Stage = "idle"
	StageSkipped   Stage = "skipped"
	StageSearch    Stage = "search"
	StageThumbnail Stage = "thumbnail"
	StageMediaURLs Stage = "media-urls"
	StageMedia     Stage = "media"
	StageComplete  Stage = "complete"
)

// Progress is reported while a game is being scraped. Path is the game file
// path and stays empty for games known only by name.
type Progress struct {
	Game     string
	Path     string
	Stage    Stage
	Kind     models.MediaKind
	Fraction float64
	Message  string
	Err      error

	// SavedNewMedia is set on the final report once new files were written
	SavedNewMedia bool
}

// ProgressFunc receives progress reports. It may be called from the poll loop
// and must not block for long.
type ProgressFunc func(Progress)

// GameOutcome summarizes what scraping one game achieved
type GameOutcome struct {
	Game          string
	Result        models.SearchResult
	SavedNewMedia bool
	Failures      []scraper.AssetFailure
	Skipped       bool
	Err           error
}

// ErrNoResults is returned when a search finds nothing to resolve
var ErrNoResults = errors.New("no search results")

// ScrapeService orchestrates searching and resolving media for games
type ScrapeService struct {
	config   *config.Config
	registry *scraper.Registry
	scraper  *scraper.Scraper
	manager  *async.Manager
	ledger   *storage.Ledger
}

// NewScrapeService creates a scrape service for the scraper named in cfg. ledger may be nil.
func NewScrapeService(cfg *config.Config, registry *scraper.Registry, tr transport.Transport, resizer media.Resizer, ledger *storage.Ledger) (*ScrapeService, error) {
	backend, err := registry.Get(cfg.Scraper)
	if err != nil {
		return nil, err
	}

	mediaDir, err := config.ExpandHome(cfg.MediaDir)
	if err != nil {
		return nil, err
	}

	downloader := media.NewDownloader(tr, resizer)
	s := scraper.New(backend, tr, downloader, scraper.Config{
		MediaDir:     mediaDir,
		Kinds:        cfg.MediaKinds,
		ResizeImages: cfg.ResizeImages,
	})

	return &ScrapeService{
		config:   cfg,
		registry: registry,
		scraper:  s,
		manager:  async.NewManager(cfg.PollInterval),
		ledger:   ledger,
	}, nil
}

// Scrapers returns the names of all registered scrapers
func (s *ScrapeService) Scrapers() []string {
	return s.registry.Names()
}

// IsValidScraper reports whether name is a registered scraper
func (s *ScrapeService) IsValidScraper(name string) bool {
	return s.registry.IsValid(name)
}

// Cleanup cancels every running task and stops the poll loop
func (s *ScrapeService) Cleanup() {
	s.manager.Stop()
}

// run hands the task to the manager and waits until it finishes or ctx is cancelled
func (s *ScrapeService) run(ctx context.Context, task async.Task) error {
	id, done := s.manager.Register(task)

	select {
	case status := <-done:
		if status == async.StatusError {
			return task.Err()
		}
		return nil
	case <-ctx.Done():
		s.manager.Cancel(id)
		<-done
		return ctx.Err()
	}
}

// Search runs a search to completion. On failure the results gathered before it are returned too.
func (s *ScrapeService) Search(ctx context.Context, params models.SearchParams) ([]models.SearchResult, error) {
	handle, err := s.scraper.StartSearch(params)
	if err != nil {
		return nil, err
	}

	runErr := s.run(ctx, handle)
	results, _ := handle.Result()
	return results, runErr
}

func (s *ScrapeService) fetchThumbnail(ctx context.Context, result *models.SearchResult) {
	if result.ThumbnailURL == "" || result.ThumbnailURL != result.AssetURL(models.MediaCover) {
		return
	}
	if err := s.run(ctx, s.scraper.StartThumbnailFetch(result)); err != nil {
		logger.Warn("Failed to fetch thumbnail %s: %v", result.ThumbnailURL, err)
	}
}

// ScrapeGame searches for a game, picks the first result and resolves its media
func (s *ScrapeService) ScrapeGame(ctx context.Context, params models.SearchParams, report ProgressFunc) GameOutcome {
	name := media.GameStem(params.Game)
	path := ""
	if params.Game != nil {
		path = params.Game.Path
	}
	report = withPath(report, path)
	outcome := GameOutcome{Game: name}

	if s.recentlyScraped(params) {
		logger.Info("Skipping %s, scraped within the last %s", name, s.config.SkipRecent)
		outcome.Skipped = true
		report(Progress{Game: name, Stage: StageSkipped, Fraction: 1, Message: "Scraped recently"})
		return outcome
	}

	report(Progress{Game: name, Stage: StageSearch, Message: "Searching..."})
	results, err := s.Search(ctx, params)
	if err != nil {
		if len(results) == 0 || ctx.Err() != nil {
			outcome.Err = fmt.Errorf("search for %s failed: %w", name, err)
			report(Progress{Game: name, Stage: StageComplete, Err: outcome.Err})
			return outcome
		}
		logger.Warn("Search for %s failed, continuing with %d partial results: %v", name, len(results), err)
	}
	if len(results) == 0 {
		outcome.Err = fmt.Errorf("%w for %s", ErrNoResults, name)
		report(Progress{Game: name, Stage: StageComplete, Err: outcome.Err})
		return outcome
	}

	result := results[0]
	s.saveAllowance(result.RequestAllowance)

	report(Progress{Game: name, Stage: StageThumbnail, Fraction: 0.1, Message: "Fetching thumbnail..."})
	s.fetchThumbnail(ctx, &result)

	resolve := s.scraper.ResolveAssets(result, params)
	lastFinished, lastKind := -1, models.MediaKind("")
	observed := async.Observe(resolve, func(async.Task) {
		finished, total := resolve.Progress()
		kind := resolve.CurrentKind()
		if finished == lastFinished && kind == lastKind {
			return
		}
		lastFinished, lastKind = finished, kind

		stage := StageMedia
		if kind == "" && finished < total {
			stage = StageMediaURLs
		}
		fraction := 0.2
		if total > 0 {
			fraction += 0.8 * float64(finished) / float64(total)
		}
		report(Progress{
			Game:     name,
			Stage:    stage,
			Kind:     kind,
			Fraction: fraction,
			Message:  fmt.Sprintf("%d/%d assets", finished, total),
		})
	})

	if err := s.run(ctx, observed); err != nil {
		outcome.Err = fmt.Errorf("resolving media for %s failed: %w", name, err)
		report(Progress{Game: name, Stage: StageComplete, Err: outcome.Err})
		return outcome
	}

	outcome.Result, _ = resolve.Result()
	outcome.SavedNewMedia = resolve.SavedNewMedia()
	outcome.Failures = resolve.Failures()
	s.saveAllowance(outcome.Result.RequestAllowance)
	s.saveRecord(params, outcome)

	message := "No new media"
	if outcome.SavedNewMedia {
		message = "Saved new media"
	}
	if len(outcome.Failures) > 0 {
		message = fmt.Sprintf("%s, %d assets failed", message, len(outcome.Failures))
	}
	report(Progress{Game: name, Stage: StageComplete, Fraction: 1, Message: message, SavedNewMedia: outcome.SavedNewMedia})

	return outcome
}

// ScrapeGames scrapes every game, running up to the configured concurrency at once.
// A failing game does not stop the others.
func (s *ScrapeService) ScrapeGames(ctx context.Context, games []models.SearchParams, report ProgressFunc) ([]GameOutcome, error) {
	outcomes := make([]GameOutcome, len(games))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.config.Concurrency, 1))

	for i, params := range games {
		i, params := i, params
		g.Go(func() error {
			outcomes[i] = s.ScrapeGame(gctx, params, report)
			if outcomes[i].Err != nil {
				logger.Error("Failed to scrape %s: %v", outcomes[i].Game, outcomes[i].Err)
			}
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func withPath(report ProgressFunc, path string) ProgressFunc {
	if report == nil {
		return func(Progress) {}
	}
	return func(p Progress) {
		p.Path = path
		report(p)
	}
}

func (s *ScrapeService) recentlyScraped(params models.SearchParams) bool {
	if s.ledger == nil || s.config.SkipRecent <= 0 || params.System == nil {
		return false
	}
	record, found, err := s.ledger.GetRecord(params.System.Name, media.GameStem(params.Game))
	if err != nil {
		logger.Warn("Failed to read scrape record: %v", err)
		return false
	}
	return found && record.Scraper == s.scraper.Backend().Name() && record.ScrapedRecently(s.config.SkipRecent)
}

func (s *ScrapeService) saveAllowance(remaining int) {
	if s.ledger == nil || remaining <= 0 {
		return
	}
	if err := s.ledger.SaveAllowance(s.scraper.Backend().Name(), remaining); err != nil {
		logger.Warn("Failed to save request allowance: %v", err)
	}
}

func (s *ScrapeService) saveRecord(params models.SearchParams, outcome GameOutcome) {
	if s.ledger == nil || params.System == nil {
		return
	}
	record := storage.ScrapeRecord{
		Scraper:       s.scraper.Backend().Name(),
		GameID:        outcome.Result.GameID,
		Name:          outcome.Result.MetaData["name"],
		SavedNewMedia: outcome.SavedNewMedia,
		Failures:      len(outcome.Failures),
	}
	if err := s.ledger.SaveRecord(params.System.Name, outcome.Game, record); err != nil {
		logger.Warn("Failed to save scrape record for %s: %v", outcome.Game, err)
	}
}
