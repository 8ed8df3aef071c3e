// Package imaging scales downloaded images down to the bounds of their media kind.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"

	"github.com/kelsos/media-scraper/internal/logger"
	"github.com/kelsos/media-scraper/internal/models"
)

// Bounds is the largest size an image may have after resizing
type Bounds struct {
	Width  uint
	Height uint
}

var (
	DefaultBounds = Bounds{Width: 1000, Height: 1000}
	MarqueeBounds = Bounds{Width: 1000, Height: 600}
)

// BoundsFor returns the resize bounds of kind
func BoundsFor(kind models.MediaKind) Bounds {
	if kind == models.MediaMarquee {
		return MarqueeBounds
	}
	return DefaultBounds
}

// Resizer shrinks images in place, keeping their aspect ratio and encoding
type Resizer struct {
	JPEGQuality int
}

func NewResizer() *Resizer {
	return &Resizer{JPEGQuality: 90}
}

// Resize shrinks the image at path when it exceeds the bounds of kind. Images
// within bounds and formats that cannot be decoded are left untouched.
func (r *Resizer) Resize(path string, kind models.MediaKind) error {
	if !kind.Resizable() {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debug("Skipping resize of %s, unsupported image: %v", path, err)
		return nil
	}

	bounds := BoundsFor(kind)
	size := img.Bounds().Size()
	if uint(size.X) <= bounds.Width && uint(size.Y) <= bounds.Height {
		return nil
	}

	scaled := resize.Thumbnail(bounds.Width, bounds.Height, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: r.JPEGQuality})
	case "png":
		err = png.Encode(&buf, scaled)
	case "gif":
		err = gif.Encode(&buf, scaled, nil)
	default:
		logger.Debug("Skipping resize of %s, no encoder for %s", path, format)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s image: %w", format, err)
	}

	if err := replaceFile(path, buf.Bytes()); err != nil {
		return err
	}

	logger.Debug("Resized %s from %dx%d to %dx%d", path, size.X, size.Y, scaled.Bounds().Dx(), scaled.Bounds().Dy())
	return nil
}

func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".resize-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write resized image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close resized image: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace image: %w", err)
	}
	return nil
}
