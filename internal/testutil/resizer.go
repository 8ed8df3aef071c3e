package testutil

import (
	"os"

	"github.com/kelsos/media-scraper/internal/models"
)

// ResizeCall is one recorded call to [FakeResizer.Resize]
type ResizeCall struct {
	Path string
	Kind models.MediaKind
}

// FakeResizer records resize calls and optionally fails them. When Output is
// set the file is overwritten with it, like a real resize that shrank the image.
type FakeResizer struct {
	Calls  []ResizeCall
	Err    error
	Output []byte
}

func (r *FakeResizer) Resize(path string, kind models.MediaKind) error {
	r.Calls = append(r.Calls, ResizeCall{Path: path, Kind: kind})
	if r.Err != nil {
		return r.Err
	}
	if r.Output != nil {
		return os.WriteFile(path, r.Output, 0644)
	}
	return nil
}
