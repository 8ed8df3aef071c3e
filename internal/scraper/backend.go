package scraper

import (
	"fmt"

	"github.com/kelsos/media-scraper/internal/models"
)

// MaxResults caps how many results a backend returns for one response
const MaxResults = 7

// ProcessFunc turns one response body into zero or more results appended to results
type ProcessFunc func(body []byte, results *[]models.SearchResult) error

// Request is one outbound call a backend wants made, plus how to read its response
type Request struct {
	URL     string
	Process ProcessFunc
}

// Backend knows how to query one metadata service. All response-schema
// knowledge lives behind this interface.
type Backend interface {
	Name() string
	SearchRequests(params models.SearchParams) ([]Request, error)
	MediaURLRequests(gameIDs string) ([]Request, error)
	// DefersMediaURLs reports whether asset URLs need a second fetch keyed by game ID
	DefersMediaURLs() bool
}

// Registry holds the available scraper backends
type Registry struct {
	backends map[string]Backend
	order    []string
}

// NewRegistry creates a registry containing the given backends
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend)}
	for _, b := range backends {
		r.Register(b)
	}
	return r
}

// Register adds a backend, replacing any existing one with the same name
func (r *Registry) Register(b Backend) {
	if _, exists := r.backends[b.Name()]; !exists {
		r.order = append(r.order, b.Name())
	}
	r.backends[b.Name()] = b
}

// Names returns the registered scraper names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// IsValid reports whether name refers to a registered scraper
func (r *Registry) IsValid(name string) bool {
	_, ok := r.backends[name]
	return ok
}

// Get returns the backend registered under name
func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownScraper, name)
	}
	return b, nil
}
