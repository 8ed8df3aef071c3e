package scraper

import (
	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/models"
)

// SearchHandle runs a queue of steps one at a time and merges their results in issue order
type SearchHandle struct {
	async.State

	label   string
	queue   []async.Task
	results []models.SearchResult
}

// NewSearchHandle creates an empty search. label is only used in log messages.
func NewSearchHandle(label string) *SearchHandle {
	return &SearchHandle{label: label}
}

// Enqueue adds a step built against the handle's own results buffer
func (h *SearchHandle) Enqueue(build func(results *[]models.SearchResult) async.Task) {
	h.queue = append(h.queue, build(&h.results))
}

// Pending returns how many steps have not finished yet
func (h *SearchHandle) Pending() int {
	return len(h.queue)
}

// Update advances only the head of the queue. When it finishes it is
// dropped and the next step starts on the following call.
func (h *SearchHandle) Update() {
	if h.Finished() {
		return
	}
	if len(h.queue) == 0 {
		h.SetDone()
		return
	}

	head := h.queue[0]
	head.Update()

	switch head.Status() {
	case async.StatusDone:
		h.queue[0] = nil
		h.queue = h.queue[1:]
		if len(h.queue) == 0 {
			logger.Debug("Search %s complete with %d results", h.label, len(h.results))
			h.SetDone()
		}
	case async.StatusError:
		logger.Debug("Search %s failed after %d results: %v", h.label, len(h.results), head.Err())
		h.queue = nil
		h.SetError(head.Err())
	}
}

// Cancel aborts the running step and drops the rest of the queue
func (h *SearchHandle) Cancel() {
	if h.Finished() {
		return
	}
	if len(h.queue) > 0 {
		h.queue[0].Cancel()
	}
	h.queue = nil
	h.SetError(async.ErrCancelled)
}

// Result returns a copy of the merged results. After a failure the results of
// the steps that completed before it are returned together with the error.
func (h *SearchHandle) Result() ([]models.SearchResult, error) {
	if !h.Finished() {
		return nil, async.ErrInProgress
	}

	out := make([]models.SearchResult, len(h.results))
	for i, r := range h.results {
		out[i] = r.Clone()
	}
	return out, h.Err()
}
