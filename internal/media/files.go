package media

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// calculateChecksum calculates the SHA512 checksum of a file
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hash := sha512.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

func contentChecksum(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}

// sameContent reports whether the file at path holds exactly data
func sameContent(path string, data []byte) (bool, error) {
	if path == "" {
		return false, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() || info.Size() != int64(len(data)) {
		return false, nil
	}

	existing, err := calculateChecksum(path)
	if err != nil {
		return false, err
	}
	return existing == contentChecksum(data), nil
}

// sourceRecord links a media file rewritten after download (resized) to the
// download it was produced from
type sourceRecord struct {
	Source string `json:"source"`
	Saved  string `json:"saved"`
}

func sourceRecordPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".source")
}

// equivalentContent reports whether the file at path holds data, or was
// produced from data by a local rewrite and has not changed since
func equivalentContent(path string, data []byte) (bool, error) {
	same, err := sameContent(path, data)
	if same || err != nil || path == "" {
		return same, err
	}

	raw, err := os.ReadFile(sourceRecordPath(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read source record of %s: %w", path, err)
	}

	var record sourceRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return false, fmt.Errorf("failed to parse source record of %s: %w", path, err)
	}
	if record.Source != contentChecksum(data) {
		return false, nil
	}

	current, err := calculateChecksum(path)
	if err != nil {
		return false, err
	}
	return current == record.Saved, nil
}

// recordSource remembers which download the file at path came from. Nothing is
// recorded when the file still holds the downloaded bytes.
func recordSource(path string, data []byte) error {
	saved, err := calculateChecksum(path)
	if err != nil {
		return err
	}
	source := contentChecksum(data)
	if saved == source {
		return removeSourceRecord(path)
	}

	raw, err := json.Marshal(sourceRecord{Source: source, Saved: saved})
	if err != nil {
		return fmt.Errorf("failed to marshal source record: %w", err)
	}
	return writeFileAtomic(sourceRecordPath(path), raw)
}

func removeSourceRecord(path string) error {
	if err := os.Remove(sourceRecordPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove source record of %s: %w", path, err)
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place so a
// reader never observes a partial file
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place at %s: %w", path, err)
	}

	return nil
}
