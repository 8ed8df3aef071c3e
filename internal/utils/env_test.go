package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetForTest(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadEnvFiles(t *testing.T) {
	unsetForTest(t, "SCRAPER_MEDIA_DIR", "SCRAPER_API_KEY")

	first := filepath.Join(t.TempDir(), ".env")
	second := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(first, []byte("SCRAPER_MEDIA_DIR=/first\n"), 0600))
	require.NoError(t, os.WriteFile(second, []byte("SCRAPER_MEDIA_DIR=/second\nSCRAPER_API_KEY=secret\n"), 0600))
	missing := filepath.Join(t.TempDir(), ".env")

	loaded := loadEnvFiles([]string{first, missing, second, first})

	assert.Equal(t, []string{first, second}, loaded)
	assert.Equal(t, "/first", os.Getenv("SCRAPER_MEDIA_DIR"))
	assert.Equal(t, "secret", os.Getenv("SCRAPER_API_KEY"))
}

func TestLoadEnvFiles_KeepsExistingVariables(t *testing.T) {
	t.Setenv("SCRAPER_BASE_URL", "http://from-shell.test")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCRAPER_BASE_URL=http://from-file.test\n"), 0600))

	loaded := loadEnvFiles([]string{path})

	assert.Equal(t, []string{path}, loaded)
	assert.Equal(t, "http://from-shell.test", os.Getenv("SCRAPER_BASE_URL"))
}
