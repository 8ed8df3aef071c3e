package models

// DownloadStatus tracks a single fetch belonging to a search result
type DownloadStatus string

const (
	DownloadNotStarted DownloadStatus = "not-started"
	DownloadInProgress DownloadStatus = "in-progress"
	DownloadCompleted  DownloadStatus = "completed"
)

// MediaKind names one asset type and doubles as its media subdirectory
type MediaKind string

const (
	MediaBox3D      MediaKind = "3dboxes"
	MediaCover      MediaKind = "covers"
	MediaMarquee    MediaKind = "marquees"
	MediaScreenshot MediaKind = "screenshots"
	MediaVideo      MediaKind = "videos"
)

// MediaKinds lists every kind in resolve order
var MediaKinds = []MediaKind{
	MediaBox3D,
	MediaCover,
	MediaMarquee,
	MediaScreenshot,
	MediaVideo,
}

// ParseMediaKind returns the kind with the given name
func ParseMediaKind(name string) (MediaKind, bool) {
	for _, kind := range MediaKinds {
		if string(kind) == name {
			return kind, true
		}
	}
	return "", false
}

// DefaultExtension is used when neither the URL nor a format hint carries one
func (k MediaKind) DefaultExtension() string {
	if k == MediaVideo {
		return ".mp4"
	}
	return ".jpg"
}

// Resizable reports whether downloaded files of this kind may be scaled down
func (k MediaKind) Resizable() bool {
	return k != MediaVideo
}

// Extensions returns the file extensions a saved asset of this kind can have
func (k MediaKind) Extensions() []string {
	if k == MediaVideo {
		return []string{".mp4", ".mkv", ".avi", ".webm"}
	}
	return []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
}
