package utils

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/storage"
)

// LoadEnvironment loads SCRAPER_* settings from .env files in the working
// directory, next to the executable and in the app data directory. Earlier
// files win, and variables already set in the environment are never replaced.
func LoadEnvironment() []string {
	candidates := []string{".env"}

	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	} else {
		logger.Debug("Could not determine executable path: %v", err)
	}

	if appDataDir, err := storage.GetAppDataDir(); err == nil {
		candidates = append(candidates, filepath.Join(appDataDir, ".env"))
	} else {
		logger.Debug("Could not determine app data directory: %v", err)
	}

	return loadEnvFiles(candidates)
}

// loadEnvFiles loads every existing file once and returns the ones it loaded
func loadEnvFiles(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var loaded []string

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		if _, err := os.Stat(abs); err != nil {
			logger.Debug("No .env file at %s", abs)
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			logger.Warn("Failed to load .env file %s: %v", abs, err)
			continue
		}
		logger.Info("Loaded environment from %s", abs)
		loaded = append(loaded, abs)
	}

	return loaded
}
