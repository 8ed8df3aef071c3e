package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/media"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/services"
)

type ScrapeMonitor struct {
	scrapeService *services.ScrapeService
	scraperName   string
	program       *tea.Program
}

func NewScrapeMonitor(scrapeService *services.ScrapeService, scraperName, logPath string) *ScrapeMonitor {
	return &ScrapeMonitor{
		scrapeService: scrapeService,
		scraperName:   scraperName,
		program:       tea.NewProgram(NewModel(logPath), tea.WithAltScreen()),
	}
}

func (sm *ScrapeMonitor) Stop() {
	if sm.program != nil {
		sm.program.Quit()
	}
}

func (sm *ScrapeMonitor) Report(progress services.Progress) {
	if sm.program != nil {
		sm.program.Send(ScrapeUpdate{Progress: progress})
	}
}

func (sm *ScrapeMonitor) AddLog(message string) {
	if sm.program != nil {
		sm.program.Send(LogMessage{
			Message: message,
		})
	}
}

func (sm *ScrapeMonitor) SetGames(games []models.SearchParams) {
	entries := make([]GameEntry, 0, len(games))
	for _, params := range games {
		entries = append(entries, GameEntry{Path: params.Game.Path, Name: media.GameStem(params.Game)})
	}
	if sm.program != nil {
		sm.program.Send(GamesLoaded{
			Scraper: sm.scraperName,
			Games:   entries,
		})
	}
}

func (sm *ScrapeMonitor) scrapeAll(ctx context.Context, games []models.SearchParams) error {
	sm.SetGames(games)
	sm.AddLog(fmt.Sprintf("Found %d games to scrape", len(games)))

	outcomes, err := sm.scrapeService.ScrapeGames(ctx, games, sm.Report)
	for _, outcome := range outcomes {
		switch {
		case outcome.Err != nil:
			sm.AddLog(fmt.Sprintf("Failed %s: %v", outcome.Game, outcome.Err))
		case outcome.Skipped:
		case len(outcome.Failures) > 0:
			sm.AddLog(fmt.Sprintf("%s finished with %d failed assets", outcome.Game, len(outcome.Failures)))
		}
	}
	return err
}

// Run scrapes the games while showing the monitor. It returns when the user
// quits or shortly after all games are done.
func (sm *ScrapeMonitor) Run(ctx context.Context, games []models.SearchParams) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		err := sm.scrapeAll(ctx, games)
		if err != nil {
			sm.AddLog(fmt.Sprintf("Fatal error: %v", err))
		}
		logger.Info("Scrape finished for %d games", len(games))
		resultCh <- err
		sm.Stop()
	}()

	if _, err := sm.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	// Quitting early cancels the remaining games
	cancel()
	return <-resultCh
}
