package scraper

import (
	"bytes"
	"fmt"

	"github.com/kelsos/media-scraper/internal/async"
	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/media"
	"github.com/kelsos/media-scraper/internal/models"
)

// ResolvePair couples a lazily started child task with the continuation that
// runs once, when the child reaches done
type ResolvePair struct {
	Kind   models.MediaKind
	start  func() async.Task
	task   async.Task
	onDone func(async.Task)
}

// AssetFailure records an asset that could not be resolved
type AssetFailure struct {
	Kind models.MediaKind
	Err  error
}

func (f AssetFailure) Error() string {
	if f.Kind == "" {
		return fmt.Sprintf("media URLs: %v", f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

// ResolveHandle materializes every media asset of one search result, strictly one at a time
type ResolveHandle struct {
	async.State

	scraper  *Scraper
	params   models.SearchParams
	result   models.SearchResult
	pairs    []ResolvePair
	failures []AssetFailure
	finished int
}

// ResolveAssets starts resolving the assets of result. The handle works on its
// own copy of result, so independently resolved results never share state.
func (s *Scraper) ResolveAssets(result models.SearchResult, params models.SearchParams) *ResolveHandle {
	h := &ResolveHandle{
		scraper: s,
		params:  params,
		result:  result.Clone(),
	}
	h.result.MediaFilesStatus = models.DownloadInProgress

	if s.backend.DefersMediaURLs() && h.result.MediaURLFetch != models.DownloadCompleted && h.result.GameID != "" {
		h.pairs = append(h.pairs, ResolvePair{
			start:  h.startMediaURLFetch,
			onDone: h.mediaURLsFetched,
		})
	} else {
		h.queueDownloads()
	}

	return h
}

func (h *ResolveHandle) startMediaURLFetch() async.Task {
	handle, err := h.scraper.StartMediaURLsFetch(h.result.GameID)
	if err != nil {
		return async.Failed(err)
	}
	h.result.MediaURLFetch = models.DownloadInProgress
	return handle
}

func (h *ResolveHandle) mediaURLsFetched(task async.Task) {
	h.result.MediaURLFetch = models.DownloadCompleted

	handle, ok := task.(*SearchHandle)
	if !ok {
		return
	}
	fetched, _ := handle.Result()
	for _, r := range fetched {
		if r.GameID != "" && r.GameID != h.result.GameID {
			continue
		}
		h.mergeMediaURLs(r)
		break
	}
	h.queueDownloads()
}

func (h *ResolveHandle) mergeMediaURLs(from models.SearchResult) {
	for _, kind := range models.MediaKinds {
		asset, ok := from.Assets[kind]
		if !ok || asset == nil || asset.URL == "" {
			continue
		}
		// An asset already satisfied for this URL keeps its status
		if current, ok := h.result.Assets[kind]; ok && current != nil && current.URL == asset.URL {
			if current.Format == "" {
				current.Format = asset.Format
			}
			continue
		}
		h.result.SetAsset(kind, asset.URL, asset.Format)
	}
	if from.RequestAllowance > 0 {
		h.result.RequestAllowance = from.RequestAllowance
	}
	if h.result.ThumbnailURL == "" {
		h.result.ThumbnailURL = from.ThumbnailURL
	}
}

func (h *ResolveHandle) queueDownloads() {
	for _, kind := range models.MediaKinds {
		if !h.scraper.kindEnabled(kind) {
			continue
		}
		asset, ok := h.result.Assets[kind]
		if !ok || asset == nil || asset.URL == "" || asset.Status == models.DownloadCompleted {
			continue
		}

		kind := kind
		saved := new(bool)
		h.pairs = append(h.pairs, ResolvePair{
			Kind: kind,
			start: func() async.Task {
				return h.startDownload(kind, saved)
			},
			onDone: func(async.Task) {
				h.result.Assets[kind].Status = models.DownloadCompleted
				if *saved {
					h.result.SavedNewMedia = true
				}
			},
		})
	}
}

func (h *ResolveHandle) startDownload(kind models.MediaKind, saved *bool) async.Task {
	asset := h.result.Assets[kind]
	asset.Status = models.DownloadInProgress

	cfg := h.scraper.config
	saveAs, err := media.SaveAsPath(cfg.MediaDir, h.params, string(kind), asset.URL, asset.Format)
	if err != nil {
		return async.Failed(err)
	}

	req := media.DownloadRequest{
		URL:               asset.URL,
		SaveAs:            saveAs,
		ExistingMediaPath: media.FindExisting(cfg.MediaDir, h.params, string(kind)),
		Kind:              kind,
		ResizeFile:        cfg.ResizeImages,
	}

	// The thumbnail shown in the search list is often the cover itself
	if kind == models.MediaCover && h.thumbnailIsCover() {
		logger.Debug("Saving cached thumbnail as cover for %s", media.GameStem(h.params.Game))
		return h.scraper.downloader.SaveCached(bytes.Clone(h.result.ThumbnailData), req, saved)
	}
	return h.scraper.downloader.DownloadAsync(req, saved)
}

func (h *ResolveHandle) thumbnailIsCover() bool {
	return len(h.result.ThumbnailData) > 0 &&
		h.result.ThumbnailStatus == models.DownloadCompleted &&
		h.result.ThumbnailURL == h.result.AssetURL(models.MediaCover)
}

// Update advances only the head pair. A failed asset is recorded and the next one starts on the following call.
func (h *ResolveHandle) Update() {
	if h.Finished() {
		return
	}
	if len(h.pairs) == 0 {
		h.complete()
		return
	}

	head := &h.pairs[0]
	if head.task == nil {
		head.task = head.start()
	}
	head.task.Update()

	switch head.task.Status() {
	case async.StatusInProgress:
		return
	case async.StatusDone:
		task, onDone := head.task, head.onDone
		h.pop()
		if onDone != nil {
			onDone(task)
		}
	case async.StatusError:
		failure := AssetFailure{Kind: head.Kind, Err: head.task.Err()}
		if asset, ok := h.result.Assets[head.Kind]; ok && asset != nil {
			asset.Status = models.DownloadNotStarted
		}
		logger.Warn("Failed to resolve %s for %s: %v", failureLabel(head.Kind), media.GameStem(h.params.Game), failure.Err)
		h.failures = append(h.failures, failure)
		h.pop()

		// URLs the result already carries are still worth downloading
		if failure.Kind == "" {
			h.result.MediaURLFetch = models.DownloadNotStarted
			h.queueDownloads()
		}
	}

	if len(h.pairs) == 0 {
		h.complete()
	}
}

func (h *ResolveHandle) pop() {
	h.pairs[0] = ResolvePair{}
	h.pairs = h.pairs[1:]
	h.finished++
}

func (h *ResolveHandle) complete() {
	h.result.MediaFilesStatus = models.DownloadCompleted
	h.SetDone()
}

// Cancel aborts the running child and drops the remaining assets
func (h *ResolveHandle) Cancel() {
	if h.Finished() {
		return
	}
	if len(h.pairs) > 0 && h.pairs[0].task != nil {
		h.pairs[0].task.Cancel()
	}
	h.pairs = nil
	h.SetError(async.ErrCancelled)
}

// Result returns the resolved search result
func (h *ResolveHandle) Result() (models.SearchResult, error) {
	if !h.Finished() {
		return models.SearchResult{}, async.ErrInProgress
	}
	return h.result.Clone(), h.Err()
}

// SavedNewMedia reports whether any asset was newly written to disk
func (h *ResolveHandle) SavedNewMedia() bool {
	return h.result.SavedNewMedia
}

// Failures returns the assets that could not be resolved
func (h *ResolveHandle) Failures() []AssetFailure {
	return append([]AssetFailure(nil), h.failures...)
}

// Progress returns how many pairs have finished and how many are known in total
func (h *ResolveHandle) Progress() (int, int) {
	return h.finished, h.finished + len(h.pairs)
}

// CurrentKind returns the asset being resolved, or "" while media URLs are fetched or when idle
func (h *ResolveHandle) CurrentKind() models.MediaKind {
	if len(h.pairs) == 0 {
		return ""
	}
	return h.pairs[0].Kind
}

func failureLabel(kind models.MediaKind) string {
	if kind == "" {
		return "media URLs"
	}
	return string(kind)
}
