// Package scraper drives searches against a metadata backend and resolves the
// media assets of a chosen result. Every handle it returns is advanced by its
// owner calling Update, or by [async.Await] / [async.Manager].
package scraper

import (
	"fmt"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/media"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/transport"
)

// Config controls where media goes and which assets are resolved
type Config struct {
	MediaDir     string
	Kinds        []models.MediaKind
	ResizeImages bool
}

// Scraper ties a backend to a transport and a media downloader
type Scraper struct {
	backend    Backend
	transport  transport.Transport
	downloader *media.Downloader
	config     Config
}

// New creates a scraper. When cfg.Kinds is empty every media kind is resolved.
func New(backend Backend, tr transport.Transport, downloader *media.Downloader, cfg Config) *Scraper {
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = models.MediaKinds
	}
	return &Scraper{
		backend:    backend,
		transport:  tr,
		downloader: downloader,
		config:     cfg,
	}
}

// Backend returns the configured backend
func (s *Scraper) Backend() Backend {
	return s.backend
}

// StartSearch queues the backend's search requests for params
func (s *Scraper) StartSearch(params models.SearchParams) (*SearchHandle, error) {
	requests, err := s.backend.SearchRequests(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s search: %w", s.backend.Name(), err)
	}
	return s.newSearch(fmt.Sprintf("%s:%s", s.backend.Name(), params.SearchName()), requests), nil
}

// StartMediaURLsFetch queues the backend's deferred media URL lookup for gameIDs
func (s *Scraper) StartMediaURLsFetch(gameIDs string) (*SearchHandle, error) {
	requests, err := s.backend.MediaURLRequests(gameIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s media URL fetch: %w", s.backend.Name(), err)
	}
	return s.newSearch(fmt.Sprintf("%s:media:%s", s.backend.Name(), gameIDs), requests), nil
}

func (s *Scraper) newSearch(label string, requests []Request) *SearchHandle {
	handle := NewSearchHandle(label)
	for _, req := range requests {
		req := req
		handle.Enqueue(func(results *[]models.SearchResult) async.Task {
			return NewHTTPRequest(s.transport, req, results)
		})
	}
	return handle
}

// DownloadAsync downloads one asset through the scraper's downloader
func (s *Scraper) DownloadAsync(req media.DownloadRequest, savedNewMedia *bool) *media.DownloadHandle {
	return s.downloader.DownloadAsync(req, savedNewMedia)
}

// SaveAsPath returns the destination path of an asset for the configured media directory
func (s *Scraper) SaveAsPath(params models.SearchParams, subdirectory, url, formatHint string) (string, error) {
	return media.SaveAsPath(s.config.MediaDir, params, subdirectory, url, formatHint)
}

func (s *Scraper) kindEnabled(kind models.MediaKind) bool {
	for _, k := range s.config.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
