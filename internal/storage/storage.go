package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ScrapeRecord is what the ledger remembers about one scraped game
type ScrapeRecord struct {
	Scraper       string `json:"scraper"`
	GameID        string `json:"game_id"`
	Name          string `json:"name"`
	SavedNewMedia bool   `json:"saved_new_media"`
	Failures      int    `json:"failures"`
	UpdatedAt     int64  `json:"updated_at"`
}

// AllowanceData is the last request allowance reported by a backend
type AllowanceData struct {
	Remaining int   `json:"remaining"`
	UpdatedAt int64 `json:"updated_at"`
}

// Ledger persists scrape records and allowances as JSON files in a directory.
// It is safe for concurrent use.
type Ledger struct {
	dir string
	mu  sync.RWMutex
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// GetAppDataDir returns the application data directory
func GetAppDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	appDataDir := filepath.Join(homeDir, ".media-scraper")
	if err := os.MkdirAll(appDataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}

	return appDataDir, nil
}

// NewLedger opens a ledger in dir, or in the app data directory when dir is empty
func NewLedger(dir string) (*Ledger, error) {
	if dir == "" {
		appDataDir, err := GetAppDataDir()
		if err != nil {
			return nil, err
		}
		dir = appDataDir
	}

	if err := os.MkdirAll(filepath.Join(dir, "records"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	return &Ledger{dir: dir}, nil
}

// Dir returns the directory the ledger writes to
func (l *Ledger) Dir() string {
	return l.dir
}

func (l *Ledger) recordPath(system, game string) string {
	name := fmt.Sprintf("%s_%s.json", sanitize(system), sanitize(game))
	return filepath.Join(l.dir, "records", name)
}

func (l *Ledger) allowancePath(scraper string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_allowance.json", sanitize(scraper)))
}

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "_"
	}
	return s
}

// SaveRecord saves the scrape record of a game
func (l *Ledger) SaveRecord(system, game string, record ScrapeRecord) error {
	record.UpdatedAt = time.Now().Unix()

	l.mu.Lock()
	defer l.mu.Unlock()
	return writeJSON(l.recordPath(system, game), record)
}

// GetRecord gets the scrape record of a game. The bool is false when the game was never scraped.
func (l *Ledger) GetRecord(system, game string) (ScrapeRecord, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var record ScrapeRecord
	found, err := readJSON(l.recordPath(system, game), &record)
	return record, found, err
}

// SaveAllowance saves the remaining request allowance of a scraper
func (l *Ledger) SaveAllowance(scraper string, remaining int) error {
	data := AllowanceData{
		Remaining: remaining,
		UpdatedAt: time.Now().Unix(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return writeJSON(l.allowancePath(scraper), data)
}

// GetAllowance gets the last saved allowance of a scraper
func (l *Ledger) GetAllowance(scraper string) (AllowanceData, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var data AllowanceData
	found, err := readJSON(l.allowancePath(scraper), &data)
	return data, found, err
}

// ScrapedRecently reports whether the record was written within maxAge
func (r ScrapeRecord) ScrapedRecently(maxAge time.Duration) bool {
	if r.UpdatedAt == 0 {
		return false
	}
	return time.Since(time.Unix(r.UpdatedAt, 0)) < maxAge
}

func writeJSON(path string, value any) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger data: %w", err)
	}

	// Rename into place so another process never reads a truncated file
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(jsonData); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move ledger file into place: %w", err)
	}

	return nil
}

func readJSON(path string, value any) (bool, error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return false, nil
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read ledger file: %w", err)
	}

	if err := json.Unmarshal(fileData, value); err != nil {
		return false, fmt.Errorf("failed to unmarshal ledger data: %w", err)
	}

	return true, nil
}
