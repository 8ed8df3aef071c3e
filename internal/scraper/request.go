package scraper

import (
	"fmt"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/transport"
)

// HTTPRequest is a network step: one request whose response is processed into results
type HTTPRequest struct {
	async.State

	transport transport.Transport
	url       string
	process   ProcessFunc
	results   *[]models.SearchResult
	pending   transport.Request
}

// NewHTTPRequest creates a step that appends into results, a buffer owned by the caller
func NewHTTPRequest(tr transport.Transport, req Request, results *[]models.SearchResult) *HTTPRequest {
	return &HTTPRequest{
		transport: tr,
		url:       req.URL,
		process:   req.Process,
		results:   results,
	}
}

// Update issues the request on the first call and polls it afterwards
func (r *HTTPRequest) Update() {
	if r.Finished() {
		return
	}

	if r.pending == nil {
		r.pending = r.transport.Issue(r.url)
		return
	}

	state, body, err := r.pending.Poll()
	switch state {
	case transport.StatePending:
		return
	case transport.StateFailure:
		r.pending = nil
		r.SetError(fmt.Errorf("request to %s failed: %w", r.url, err))
	case transport.StateSuccess:
		r.pending = nil

		// Results are merged only after the whole response processed cleanly
		var batch []models.SearchResult
		if err := r.process(body, &batch); err != nil {
			r.SetError(fmt.Errorf("%w: %s: %v", models.ErrResponse, r.url, err))
			return
		}
		*r.results = append(*r.results, batch...)
		r.SetDone()
	}
}

// Cancel aborts the in-flight request
func (r *HTTPRequest) Cancel() {
	if r.Finished() {
		return
	}
	if r.pending != nil {
		r.pending.Cancel()
		r.pending = nil
	}
	r.SetError(async.ErrCancelled)
}

// URL returns the request URL
func (r *HTTPRequest) URL() string {
	return r.url
}
