package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelsos/media-scraper/internal/models"
)

// Config holds all application configuration
type Config struct {
	// Media settings
	MediaDir     string
	MediaKinds   []models.MediaKind
	ResizeImages bool

	// Scraper settings
	Scraper string
	BaseURL string
	APIKey  string

	// HTTP settings
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string

	// Poll settings
	PollInterval time.Duration
	Concurrency  int

	// Ledger settings
	LedgerDir  string
	SkipRecent time.Duration
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		MediaDir:          "~/media",
		MediaKinds:        append([]models.MediaKind(nil), models.MediaKinds...),
		ResizeImages:      true,
		Scraper:           "jsonindex",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		UserAgent:         "media-scraper/1.0",
		PollInterval:      50 * time.Millisecond,
		Concurrency:       2,
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if mediaDir := os.Getenv("SCRAPER_MEDIA_DIR"); mediaDir != "" {
		c.MediaDir = mediaDir
	}

	if kinds := os.Getenv("SCRAPER_MEDIA_KINDS"); kinds != "" {
		if parsed, err := ParseMediaKinds(kinds); err == nil {
			c.MediaKinds = parsed
		}
	}

	if resizeImages := os.Getenv("SCRAPER_RESIZE"); resizeImages != "" {
		if r, err := strconv.ParseBool(resizeImages); err == nil {
			c.ResizeImages = r
		}
	}

	if scraper := os.Getenv("SCRAPER_NAME"); scraper != "" {
		c.Scraper = scraper
	}

	if baseURL := os.Getenv("SCRAPER_BASE_URL"); baseURL != "" {
		c.BaseURL = baseURL
	}

	if apiKey := os.Getenv("SCRAPER_API_KEY"); apiKey != "" {
		c.APIKey = apiKey
	}

	if timeout := os.Getenv("SCRAPER_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.Timeout = time.Duration(t) * time.Second
		}
	}

	if rps := os.Getenv("SCRAPER_REQUESTS_PER_SECOND"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			c.RequestsPerSecond = r
		}
	}

	if userAgent := os.Getenv("SCRAPER_USER_AGENT"); userAgent != "" {
		c.UserAgent = userAgent
	}

	if interval := os.Getenv("SCRAPER_POLL_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			c.PollInterval = time.Duration(i) * time.Millisecond
		}
	}

	if concurrency := os.Getenv("SCRAPER_CONCURRENCY"); concurrency != "" {
		if n, err := strconv.Atoi(concurrency); err == nil {
			c.Concurrency = n
		}
	}

	if ledgerDir := os.Getenv("SCRAPER_LEDGER_DIR"); ledgerDir != "" {
		c.LedgerDir = ledgerDir
	}

	if skipRecent := os.Getenv("SCRAPER_SKIP_RECENT_HOURS"); skipRecent != "" {
		if h, err := strconv.Atoi(skipRecent); err == nil {
			c.SkipRecent = time.Duration(h) * time.Hour
		}
	}
}

// ParseMediaKinds parses a comma separated list of media kinds
func ParseMediaKinds(value string) ([]models.MediaKind, error) {
	var kinds []models.MediaKind
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		kind, ok := models.ParseMediaKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown media kind: %s", name)
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no media kinds in %q", value)
	}
	return kinds, nil
}

// ExpandHome replaces a leading ~ with the user home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}

// LogDir returns the directory for log files written in TUI mode
func (c *Config) LogDir() string {
	if c.LedgerDir != "" {
		return filepath.Join(c.LedgerDir, "logs")
	}
	return "logs"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MediaDir == "" {
		return fmt.Errorf("media directory cannot be empty")
	}

	if c.Scraper == "" {
		return fmt.Errorf("scraper name cannot be empty")
	}

	if c.BaseURL == "" {
		return fmt.Errorf("scraper base URL cannot be empty")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive, got: %s", c.Timeout)
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must be non-negative, got: %v", c.RequestsPerSecond)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %s", c.PollInterval)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got: %d", c.Concurrency)
	}

	if c.SkipRecent < 0 {
		return fmt.Errorf("skip recent window must be non-negative, got: %s", c.SkipRecent)
	}

	if len(c.MediaKinds) == 0 {
		return fmt.Errorf("at least one media kind must be enabled")
	}

	return nil
}
