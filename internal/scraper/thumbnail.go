package scraper

import (
	"fmt"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/transport"
)

// ThumbnailFetch downloads a result's thumbnail into its in-memory cache
type ThumbnailFetch struct {
	async.State

	transport transport.Transport
	result    *models.SearchResult
	pending   transport.Request
}

// StartThumbnailFetch fills result.ThumbnailData from result.ThumbnailURL.
// The result is written through the given pointer once the fetch succeeds.
func (s *Scraper) StartThumbnailFetch(result *models.SearchResult) async.Task {
	if result == nil || result.ThumbnailURL == "" {
		return async.Failed(models.ErrInvalidURL)
	}
	if result.ThumbnailStatus == models.DownloadCompleted && len(result.ThumbnailData) > 0 {
		t := &ThumbnailFetch{result: result}
		t.SetDone()
		return t
	}
	return &ThumbnailFetch{transport: s.transport, result: result}
}

func (t *ThumbnailFetch) Update() {
	if t.Finished() {
		return
	}

	if t.pending == nil {
		t.result.ThumbnailStatus = models.DownloadInProgress
		t.pending = t.transport.Issue(t.result.ThumbnailURL)
		return
	}

	state, body, err := t.pending.Poll()
	switch state {
	case transport.StatePending:
		return
	case transport.StateFailure:
		t.pending = nil
		t.result.ThumbnailStatus = models.DownloadNotStarted
		t.SetError(fmt.Errorf("thumbnail download failed: %w", err))
	case transport.StateSuccess:
		t.pending = nil
		if len(body) == 0 {
			t.result.ThumbnailStatus = models.DownloadNotStarted
			t.SetError(fmt.Errorf("%w: empty thumbnail", models.ErrResponse))
			return
		}
		t.result.ThumbnailData = body
		t.result.ThumbnailStatus = models.DownloadCompleted
		t.SetDone()
	}
}

func (t *ThumbnailFetch) Cancel() {
	if t.Finished() {
		return
	}
	if t.pending != nil {
		t.pending.Cancel()
		t.pending = nil
		t.result.ThumbnailStatus = models.DownloadNotStarted
	}
	t.SetError(async.ErrCancelled)
}
