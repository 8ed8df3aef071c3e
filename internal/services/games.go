package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kelsos/media-scraper/internal/media"
	"github.com/kelsos/media-scraper/internal/models"
)

// GamesFromPaths builds search params for each game file of a system
func GamesFromPaths(system *models.System, paths []string) []models.SearchParams {
	games := make([]models.SearchParams, 0, len(paths))
	for _, path := range paths {
		game := &models.Game{Path: path}
		game.Name = media.GameStem(game)
		games = append(games, models.SearchParams{System: system, Game: game})
	}
	return games
}

// ScanGameDir lists the game files directly inside dir, skipping hidden files
func ScanGameDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read game directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
