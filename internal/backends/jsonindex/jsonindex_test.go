package jsonindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/media"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/scraper"
	"github.com/kelsos/media-scraper/internal/transport"
)

func testParams() models.SearchParams {
	return models.SearchParams{
		System: &models.System{Name: "snes", PlatformIDs: []string{"6", "7"}},
		Game:   &models.Game{Path: "/roms/Super Metroid.sfc", Name: "Super Metroid"},
	}
}

func TestBuildURLWithParams(t *testing.T) {
	assert.Equal(t, "http://x.test/a", BuildURLWithParams("http://x.test/a", nil))
	assert.Equal(t, "http://x.test/a?b=2&name=Super+Metroid",
		BuildURLWithParams("http://x.test/a?b=2", map[string]string{"name": "Super Metroid"}))
}

func TestSearchRequests_OnePerPlatform(t *testing.T) {
	backend := New(Config{BaseURL: "http://x.test/", APIKey: "secret"})

	requests, err := backend.SearchRequests(testParams())
	require.NoError(t, err)
	require.Len(t, requests, 2)

	for i, platform := range []string{"6", "7"} {
		parsed, err := url.Parse(requests[i].URL)
		require.NoError(t, err)
		assert.Equal(t, "/games/search", parsed.Path)
		assert.Equal(t, "Super Metroid", parsed.Query().Get("name"))
		assert.Equal(t, platform, parsed.Query().Get("platform"))
		assert.Equal(t, "secret", parsed.Query().Get("apikey"))
		assert.Equal(t, "media", parsed.Query().Get("include"))
	}
}

func TestSearchRequests_NameOverrideAndErrors(t *testing.T) {
	backend := New(Config{BaseURL: "http://x.test"})

	params := testParams()
	params.NameOverride = "Metroid 3"
	requests, err := backend.SearchRequests(params)
	require.NoError(t, err)
	parsed, _ := url.Parse(requests[0].URL)
	assert.Equal(t, "Metroid 3", parsed.Query().Get("name"))

	_, err = backend.SearchRequests(models.SearchParams{})
	assert.Error(t, err)

	_, err = backend.MediaURLRequests(" ")
	assert.Error(t, err)
}

func TestProcessSearch(t *testing.T) {
	backend := New(Config{BaseURL: "http://x.test"})

	games := make([]gameDTO, 0, 9)
	for i := 0; i < 9; i++ {
		games = append(games, gameDTO{
			ID:        fmt.Sprint(i),
			Name:      fmt.Sprintf("Game %d", i),
			Developer: "Nintendo",
			Thumbnail: "http://img.test/thumb.png",
			Media: map[string]assetDTO{
				"covers":  {URL: "http://img.test/cover.png"},
				"videos":  {URL: "http://img.test/video", Format: "mp4"},
				"posters": {URL: "http://img.test/ignored.png"},
			},
		})
	}
	allowance := 99
	body, err := json.Marshal(models.APIResponse[[]gameDTO]{Result: games, Allowance: &allowance})
	require.NoError(t, err)

	var results []models.SearchResult
	require.NoError(t, backend.processSearch(body, &results))

	require.Len(t, results, scraper.MaxResults)
	first := results[0]
	assert.Equal(t, "0", first.GameID)
	assert.Equal(t, "Game 0", first.MetaData["name"])
	assert.Equal(t, "Nintendo", first.MetaData["developer"])
	assert.NotContains(t, first.MetaData, "publisher")
	assert.Equal(t, 99, first.RequestAllowance)
	assert.Equal(t, models.DownloadCompleted, first.MediaURLFetch)
	assert.Equal(t, "http://img.test/cover.png", first.AssetURL(models.MediaCover))
	assert.Equal(t, "mp4", first.Assets[models.MediaVideo].Format)
	assert.Len(t, first.Assets, 2)
}

func TestProcessSearch_InvalidJSON(t *testing.T) {
	var results []models.SearchResult
	err := New(Config{}).processSearch([]byte("<html>"), &results)
	assert.Error(t, err)
	assert.Empty(t, results)
}

func TestDeferredMediaLeavesFetchPending(t *testing.T) {
	backend := New(Config{BaseURL: "http://x.test", DeferMedia: true})
	assert.True(t, backend.DefersMediaURLs())

	requests, err := backend.SearchRequests(testParams())
	require.NoError(t, err)
	parsed, _ := url.Parse(requests[0].URL)
	assert.Empty(t, parsed.Query().Get("include"))

	body := []byte(`{"result":[{"id":"42","name":"Super Metroid","media":{"covers":{"url":"http://img.test/c.png"}}}]}`)
	var results []models.SearchResult
	require.NoError(t, backend.processSearch(body, &results))
	require.Len(t, results, 1)
	assert.Equal(t, models.DownloadNotStarted, results[0].MediaURLFetch)
	assert.Empty(t, results[0].Assets)
}

// newServer serves a search that defers media, the media lookup and the asset files
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/games/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("platform") == "7" {
			fmt.Fprint(w, `{"result":[]}`)
			return
		}
		fmt.Fprint(w, `{"result":[{"id":"42","name":"Super Metroid","rating":"0.9"}],"allowance":120}`)
	})
	mux.HandleFunc("/games/media", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("ids"))
		fmt.Fprintf(w, `{"result":[{"id":"42","thumbnail":"%[1]s/files/cover","media":{
			"covers":{"url":"%[1]s/files/cover","format":"png"},
			"screenshots":{"url":"%[1]s/files/shot.jpg"}}}],"allowance":119}`, server.URL)
	})
	mux.HandleFunc("/files/cover", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cover bytes"))
	})
	mux.HandleFunc("/files/shot.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("shot bytes"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestEndToEnd_SearchAndResolve(t *testing.T) {
	server := newServer(t)
	mediaDir := t.TempDir()

	tr := transport.NewHTTP(transport.Options{Timeout: 5 * time.Second})
	backend := New(Config{BaseURL: server.URL, DeferMedia: true})
	s := scraper.New(backend, tr, media.NewDownloader(tr, nil), scraper.Config{MediaDir: mediaDir})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	search, err := s.StartSearch(testParams())
	require.NoError(t, err)
	results, err := async.AwaitResult[[]models.SearchResult](ctx, search, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Super Metroid", results[0].MetaData["name"])
	assert.Equal(t, 120, results[0].RequestAllowance)

	resolve := s.ResolveAssets(results[0], testParams())
	resolved, err := async.AwaitResult[models.SearchResult](ctx, resolve, time.Millisecond)
	require.NoError(t, err)

	assert.Empty(t, resolve.Failures())
	assert.True(t, resolve.SavedNewMedia())
	assert.Equal(t, 119, resolved.RequestAllowance)

	cover, err := os.ReadFile(filepath.Join(mediaDir, "snes", "covers", "Super Metroid.png"))
	require.NoError(t, err)
	assert.Equal(t, "cover bytes", string(cover))
	assert.FileExists(t, filepath.Join(mediaDir, "snes", "screenshots", "Super Metroid.jpg"))
}
