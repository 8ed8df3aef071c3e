package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kelsos/media-scraper/internal/backends/jsonindex"
	"github.com/kelsos/media-scraper/internal/config"
	"github.com/kelsos/media-scraper/internal/imaging"
	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/scraper"
	"github.com/kelsos/media-scraper/internal/services"
	"github.com/kelsos/media-scraper/internal/storage"
	"github.com/kelsos/media-scraper/internal/transport"
	"github.com/kelsos/media-scraper/internal/tui"
	"github.com/kelsos/media-scraper/internal/utils"
)

type systemFlags struct {
	name      string
	fullName  string
	platforms []string
}

func (f systemFlags) system() (*models.System, error) {
	if f.name == "" {
		return nil, fmt.Errorf("--system is required")
	}
	return &models.System{Name: f.name, FullName: f.fullName, PlatformIDs: f.platforms}, nil
}

func newRegistry(cfg *config.Config, deferMedia bool) *scraper.Registry {
	return scraper.NewRegistry(
		jsonindex.New(jsonindex.Config{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			DeferMedia: deferMedia,
		}),
	)
}

func newService(cfg *config.Config, deferMedia bool) (*services.ScrapeService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	registry := newRegistry(cfg, deferMedia)
	if !registry.IsValid(cfg.Scraper) {
		return nil, fmt.Errorf("%w: %q (available: %s)", models.ErrUnknownScraper, cfg.Scraper, strings.Join(registry.Names(), ", "))
	}

	ledger, err := storage.NewLedger(cfg.LedgerDir)
	if err != nil {
		return nil, err
	}

	tr := transport.NewHTTP(transport.Options{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		UserAgent:         cfg.UserAgent,
	})

	return services.NewScrapeService(cfg, registry, tr, imaging.NewResizer(), ledger)
}

func printResults(results []models.SearchResult) {
	for i, result := range results {
		fmt.Printf("%d. [%s] %s", i+1, result.GameID, result.MetaData["name"])
		if date := result.MetaData["releasedate"]; date != "" {
			fmt.Printf(" (%s)", date)
		}
		fmt.Println()
		for _, kind := range models.MediaKinds {
			if url := result.AssetURL(kind); url != "" {
				fmt.Printf("   %-12s %s\n", kind, url)
			}
		}
	}
}

func logProgress(progress services.Progress) {
	switch {
	case progress.Err != nil:
		logger.Error("%s: %v", progress.Game, progress.Err)
	case progress.Stage == services.StageMedia && progress.Kind != "":
		logger.Info("%s: %s (%s)", progress.Game, progress.Kind, progress.Message)
	case progress.Stage == services.StageComplete, progress.Stage == services.StageSkipped:
		logger.Info("%s: %s", progress.Game, progress.Message)
	default:
		logger.Debug("%s: %s", progress.Game, progress.Stage)
	}
}

func main() {
	logger.Init()
	utils.LoadEnvironment()
	// DEBUG may come from a .env file
	logger.Init()

	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	var (
		sysFlags   systemFlags
		kinds      string
		deferMedia bool
		noResize   bool
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	applyKinds := func() error {
		if kinds == "" {
			return nil
		}
		parsed, err := config.ParseMediaKinds(kinds)
		if err != nil {
			return err
		}
		cfg.MediaKinds = parsed
		return nil
	}

	rootCmd := &cobra.Command{
		Use:   "media-scraper",
		Short: "A CLI tool for scraping game metadata and media",
		Long:  `media-scraper searches a metadata service for games and downloads their box art, screenshots, marquees and videos.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noResize {
				cfg.ResizeImages = false
			}
			return applyKinds()
		},
		SilenceUsage: true,
	}

	searchCmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Search the scraper for a game and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			system, err := sysFlags.system()
			if err != nil {
				return err
			}
			service, err := newService(cfg, deferMedia)
			if err != nil {
				return err
			}
			defer service.Cleanup()

			name := strings.Join(args, " ")
			params := models.SearchParams{System: system, Game: &models.Game{Name: name}}
			results, err := service.Search(ctx, params)
			printResults(results)
			if err != nil {
				return fmt.Errorf("search failed after %d results: %w", len(results), err)
			}
			if len(results) == 0 {
				logger.Info("No results for %q", name)
			}
			return nil
		},
	}

	var (
		gameDir string
		useTUI  bool
	)
	scrapeCmd := &cobra.Command{
		Use:   "scrape [game files...]",
		Short: "Scrape metadata and media for game files",
		RunE: func(cmd *cobra.Command, args []string) error {
			system, err := sysFlags.system()
			if err != nil {
				return err
			}

			paths := args
			if gameDir != "" {
				scanned, err := services.ScanGameDir(gameDir)
				if err != nil {
					return err
				}
				paths = append(paths, scanned...)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no game files given, pass paths or --game-dir")
			}
			games := services.GamesFromPaths(system, paths)

			var logPath string
			if useTUI {
				logPath, err = logger.InitFileOnly(cfg.LogDir())
				if err != nil {
					return err
				}
				defer logger.Close()
			}

			service, err := newService(cfg, deferMedia)
			if err != nil {
				return err
			}
			defer service.Cleanup()

			if useTUI {
				return tui.NewScrapeMonitor(service, cfg.Scraper, logPath).Run(ctx, games)
			}

			outcomes, err := service.ScrapeGames(ctx, games, logProgress)
			saved, failed := 0, 0
			for _, outcome := range outcomes {
				if outcome.SavedNewMedia {
					saved++
				}
				if outcome.Err != nil {
					failed++
				}
			}
			logger.Info("Scraped %d games: %d with new media, %d failed", len(games), saved, failed)
			return err
		},
	}
	scrapeCmd.Flags().StringVarP(&gameDir, "game-dir", "g", "", "Directory containing the game files to scrape")
	scrapeCmd.Flags().BoolVarP(&useTUI, "tui", "", false, "Show a terminal UI while scraping")
	scrapeCmd.Flags().StringVarP(&cfg.MediaDir, "media-dir", "m", cfg.MediaDir, "Directory where media files are saved")
	scrapeCmd.Flags().IntVarP(&cfg.Concurrency, "concurrency", "c", cfg.Concurrency, "Number of games scraped at once")
	scrapeCmd.Flags().DurationVarP(&cfg.SkipRecent, "skip-recent", "", cfg.SkipRecent, "Skip games scraped within this duration")

	scrapersCmd := &cobra.Command{
		Use:   "scrapers",
		Short: "List the available scrapers",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := newRegistry(cfg, deferMedia)
			ledger, err := storage.NewLedger(cfg.LedgerDir)
			if err != nil {
				return err
			}
			for _, name := range registry.Names() {
				line := name
				if name == cfg.Scraper {
					line += " (configured)"
				}
				if allowance, found, err := ledger.GetAllowance(name); err == nil && found {
					line += fmt.Sprintf(" - %d requests left", allowance.Remaining)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfg.Scraper, "scraper", "s", cfg.Scraper, "Scraper to use")
	rootCmd.PersistentFlags().StringVarP(&cfg.BaseURL, "base-url", "u", cfg.BaseURL, "Base URL of the scraper service")
	rootCmd.PersistentFlags().StringVarP(&cfg.APIKey, "api-key", "k", cfg.APIKey, "API key of the scraper service")
	rootCmd.PersistentFlags().StringVarP(&sysFlags.name, "system", "", "", "Short name of the system, used as media subdirectory")
	rootCmd.PersistentFlags().StringVarP(&sysFlags.fullName, "system-name", "", "", "Full name of the system")
	rootCmd.PersistentFlags().StringSliceVarP(&sysFlags.platforms, "platform", "p", nil, "Scraper platform IDs of the system")
	rootCmd.PersistentFlags().StringVarP(&kinds, "kinds", "", "", "Comma separated media kinds to download")
	rootCmd.PersistentFlags().BoolVarP(&deferMedia, "defer-media", "", false, "Fetch media URLs in a second request per game")
	rootCmd.PersistentFlags().BoolVarP(&noResize, "no-resize", "", false, "Keep downloaded images at their original size")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(scrapersCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
