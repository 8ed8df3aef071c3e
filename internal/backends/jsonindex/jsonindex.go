// Package jsonindex is a scraper backend for metadata services that speak a
// small JSON index format:
//
//	GET {base}/games/search?name=..&platform=..   -> {"result": [game...], "allowance": n}
//	GET {base}/games/media?ids=1,2                -> {"result": [media...], "allowance": n}
//
// One search request is issued per platform ID of the system.
package jsonindex

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/scraper"
)

const Name = "jsonindex"

// Config holds the connection settings of the backend
type Config struct {
	BaseURL    string
	APIKey     string
	DeferMedia bool
}

// Backend implements [scraper.Backend]
type Backend struct {
	config Config
}

// New creates the backend
func New(cfg Config) *Backend {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Backend{config: cfg}
}

func (b *Backend) Name() string {
	return Name
}

func (b *Backend) DefersMediaURLs() bool {
	return b.config.DeferMedia
}

type assetDTO struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
}

type gameDTO struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Rating      string              `json:"rating"`
	ReleaseDate string              `json:"release_date"`
	Developer   string              `json:"developer"`
	Publisher   string              `json:"publisher"`
	Genre       string              `json:"genre"`
	Players     string              `json:"players"`
	Thumbnail   string              `json:"thumbnail"`
	Media       map[string]assetDTO `json:"media"`
}

type mediaDTO struct {
	ID        string              `json:"id"`
	Thumbnail string              `json:"thumbnail"`
	Media     map[string]assetDTO `json:"media"`
}

// SearchRequests builds one request per platform of the system
func (b *Backend) SearchRequests(params models.SearchParams) ([]scraper.Request, error) {
	if params.System == nil || params.Game == nil {
		return nil, fmt.Errorf("search params need both a system and a game")
	}
	name := params.SearchName()
	if name == "" {
		return nil, fmt.Errorf("no name to search for")
	}

	platforms := params.System.PlatformIDs
	if len(platforms) == 0 {
		platforms = []string{""}
	}

	requests := make([]scraper.Request, 0, len(platforms))
	for _, platform := range platforms {
		query := map[string]string{"name": name}
		if platform != "" {
			query["platform"] = platform
		}
		if !b.config.DeferMedia {
			query["include"] = "media"
		}
		requests = append(requests, scraper.Request{
			URL:     b.buildURL("/games/search", query),
			Process: b.processSearch,
		})
	}
	return requests, nil
}

// MediaURLRequests builds the deferred media lookup for a comma separated list of game IDs
func (b *Backend) MediaURLRequests(gameIDs string) ([]scraper.Request, error) {
	if strings.TrimSpace(gameIDs) == "" {
		return nil, fmt.Errorf("no game IDs to fetch media for")
	}
	return []scraper.Request{{
		URL:     b.buildURL("/games/media", map[string]string{"ids": gameIDs}),
		Process: b.processMedia,
	}}, nil
}

func (b *Backend) buildURL(endpoint string, params map[string]string) string {
	if b.config.APIKey != "" {
		params["apikey"] = b.config.APIKey
	}
	return BuildURLWithParams(b.config.BaseURL+endpoint, params)
}

func (b *Backend) processSearch(body []byte, results *[]models.SearchResult) error {
	var response models.APIResponse[[]gameDTO]
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("error decoding search response: %w", err)
	}

	games := response.Result
	if len(games) > scraper.MaxResults {
		games = games[:scraper.MaxResults]
	}

	for _, game := range games {
		result := models.NewSearchResult(game.ID)
		setIfPresent(result.MetaData, "name", game.Name)
		setIfPresent(result.MetaData, "desc", game.Description)
		setIfPresent(result.MetaData, "rating", game.Rating)
		setIfPresent(result.MetaData, "releasedate", game.ReleaseDate)
		setIfPresent(result.MetaData, "developer", game.Developer)
		setIfPresent(result.MetaData, "publisher", game.Publisher)
		setIfPresent(result.MetaData, "genre", game.Genre)
		setIfPresent(result.MetaData, "players", game.Players)

		result.ThumbnailURL = game.Thumbnail
		if response.Allowance != nil {
			result.RequestAllowance = *response.Allowance
		}
		if !b.config.DeferMedia {
			applyMedia(&result, game.Media)
			result.MediaURLFetch = models.DownloadCompleted
		}
		*results = append(*results, result)
	}
	return nil
}

func (b *Backend) processMedia(body []byte, results *[]models.SearchResult) error {
	var response models.APIResponse[[]mediaDTO]
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("error decoding media response: %w", err)
	}

	for _, entry := range response.Result {
		result := models.NewSearchResult(entry.ID)
		result.ThumbnailURL = entry.Thumbnail
		if response.Allowance != nil {
			result.RequestAllowance = *response.Allowance
		}
		applyMedia(&result, entry.Media)
		result.MediaURLFetch = models.DownloadCompleted
		*results = append(*results, result)
	}
	return nil
}

func applyMedia(result *models.SearchResult, media map[string]assetDTO) {
	for name, asset := range media {
		kind, ok := models.ParseMediaKind(name)
		if !ok || asset.URL == "" {
			continue
		}
		result.SetAsset(kind, asset.URL, asset.Format)
	}
}

func setIfPresent(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// BuildURLWithParams properly builds a URL with query parameters
func BuildURLWithParams(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	// Parse the endpoint to check for existing query parameters
	parts := strings.SplitN(endpoint, "?", 2)
	baseURL := parts[0]

	values := url.Values{}
	if len(parts) > 1 {
		existingParams, _ := url.ParseQuery(parts[1])
		values = existingParams
	}

	for key, value := range params {
		values.Set(key, value)
	}

	if len(values) > 0 {
		return baseURL + "?" + values.Encode()
	}
	return baseURL
}
