// Package media fetches scraped assets and persists them under the media directory.
package media

import (
	"fmt"
	"os"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/transport"
)

// Resizer scales a saved image down according to the policy of its media kind
type Resizer interface {
	Resize(path string, kind models.MediaKind) error
}

// DownloadRequest describes one asset to fetch and where it goes
type DownloadRequest struct {
	URL               string
	SaveAs            string
	ExistingMediaPath string
	Kind              models.MediaKind
	ResizeFile        bool
}

// Downloader creates download handles sharing one transport and resizer
type Downloader struct {
	transport transport.Transport
	resizer   Resizer
}

// NewDownloader creates a downloader. resizer may be nil when resizing is never requested.
func NewDownloader(tr transport.Transport, resizer Resizer) *Downloader {
	return &Downloader{
		transport: tr,
		resizer:   resizer,
	}
}

// DownloadHandle fetches one asset and writes it to disk once polled to completion
type DownloadHandle struct {
	async.State

	req           DownloadRequest
	transport     transport.Transport
	resizer       Resizer
	pending       transport.Request
	cached        []byte
	savedNewMedia *bool
	saved         bool
}

// DownloadAsync starts a download of req.URL. savedNewMedia is set to true
// only when a new file is actually written.
func (d *Downloader) DownloadAsync(req DownloadRequest, savedNewMedia *bool) *DownloadHandle {
	h := &DownloadHandle{
		req:           req,
		transport:     d.transport,
		resizer:       d.resizer,
		savedNewMedia: savedNewMedia,
	}
	if req.URL == "" {
		h.SetError(models.ErrInvalidURL)
	}
	return h
}

// SaveCached persists bytes that were already fetched, applying the same policy as DownloadAsync
func (d *Downloader) SaveCached(data []byte, req DownloadRequest, savedNewMedia *bool) *DownloadHandle {
	h := &DownloadHandle{
		req:           req,
		resizer:       d.resizer,
		cached:        data,
		savedNewMedia: savedNewMedia,
	}
	if len(data) == 0 {
		h.SetError(fmt.Errorf("%w: empty cached media for %s", models.ErrResponse, req.SaveAs))
	}
	return h
}

// Update issues the request on the first call and polls it afterwards
func (h *DownloadHandle) Update() {
	if h.Finished() {
		return
	}

	if h.cached != nil {
		h.persist(h.cached)
		h.cached = nil
		return
	}

	if h.pending == nil {
		logger.Debug("Downloading %s to %s", h.req.URL, h.req.SaveAs)
		h.pending = h.transport.Issue(h.req.URL)
		return
	}

	state, body, err := h.pending.Poll()
	switch state {
	case transport.StatePending:
		return
	case transport.StateFailure:
		h.pending = nil
		h.SetError(fmt.Errorf("failed to download %s: %w", h.req.URL, err))
	case transport.StateSuccess:
		h.pending = nil
		h.persist(body)
	}
}

func (h *DownloadHandle) persist(body []byte) {
	if len(body) == 0 {
		h.SetError(fmt.Errorf("%w: empty response for %s", models.ErrResponse, h.req.URL))
		return
	}

	same, err := equivalentContent(h.req.ExistingMediaPath, body)
	if err != nil {
		logger.Warn("Could not compare %s with downloaded media: %v", h.req.ExistingMediaPath, err)
	}
	if same {
		logger.Debug("Media file %s is unchanged, skipping write", h.req.ExistingMediaPath)
		h.SetDone()
		return
	}

	if err := writeFileAtomic(h.req.SaveAs, body); err != nil {
		h.SetError(fmt.Errorf("%w: %v", models.ErrFilesystem, err))
		return
	}

	// A previous scrape may have saved this asset with another extension
	if h.req.ExistingMediaPath != "" && h.req.ExistingMediaPath != h.req.SaveAs {
		if err := os.Remove(h.req.ExistingMediaPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove previous media file %s: %v", h.req.ExistingMediaPath, err)
		}
		if err := removeSourceRecord(h.req.ExistingMediaPath); err != nil {
			logger.Warn("%v", err)
		}
	}

	if h.req.ResizeFile && h.req.Kind.Resizable() && h.resizer != nil {
		if err := h.resizer.Resize(h.req.SaveAs, h.req.Kind); err != nil {
			if err := removeSourceRecord(h.req.SaveAs); err != nil {
				logger.Warn("%v", err)
			}
			h.SetError(fmt.Errorf("failed to resize %s: %w", h.req.SaveAs, err))
			return
		}
	}

	if err := recordSource(h.req.SaveAs, body); err != nil {
		logger.Warn("Failed to record source of %s: %v", h.req.SaveAs, err)
	}

	h.markSaved()
	logger.Debug("Saved %d bytes to %s", len(body), h.req.SaveAs)
	h.SetDone()
}

func (h *DownloadHandle) markSaved() {
	if h.saved {
		return
	}
	h.saved = true
	if h.savedNewMedia != nil {
		*h.savedNewMedia = true
	}
}

// Cancel aborts the in-flight request. No file is written afterwards.
func (h *DownloadHandle) Cancel() {
	if h.Finished() {
		return
	}
	if h.pending != nil {
		h.pending.Cancel()
		h.pending = nil
	}
	h.cached = nil
	h.SetError(async.ErrCancelled)
}

// Result reports whether this handle wrote a new file
func (h *DownloadHandle) Result() (bool, error) {
	if !h.Finished() {
		return false, async.ErrInProgress
	}
	return h.saved, h.Err()
}

// Request returns what the handle was asked to download
func (h *DownloadHandle) Request() DownloadRequest {
	return h.req
}
