package models

// System identifies the platform a game belongs to
type System struct {
	Name        string
	FullName    string
	PlatformIDs []string
}

// Game is one entry of the game library
type Game struct {
	Path string
	Name string
}

// SearchParams identifies what to scrape. System and Game are borrowed from
// the game library and must outlive any task built from the params.
type SearchParams struct {
	System       *System
	Game         *Game
	NameOverride string
}

// SearchName returns the name override if set, otherwise the game's name
func (p SearchParams) SearchName() string {
	if p.NameOverride != "" {
		return p.NameOverride
	}
	if p.Game == nil {
		return ""
	}
	return p.Game.Name
}

// Asset holds the remote location of one media file and its download state
type Asset struct {
	URL    string
	Format string
	Status DownloadStatus
}

// SearchResult accumulates everything learned about one candidate game
type SearchResult struct {
	MetaData map[string]string
	GameID   string

	// How many more requests the backend allows in the current window
	RequestAllowance int

	MediaURLFetch    DownloadStatus
	ThumbnailStatus  DownloadStatus
	MediaFilesStatus DownloadStatus

	ThumbnailURL  string
	ThumbnailData []byte

	Assets map[MediaKind]*Asset

	SavedNewMedia bool
}

// NewSearchResult creates an empty result for the given backend game ID
func NewSearchResult(gameID string) SearchResult {
	return SearchResult{
		GameID:           gameID,
		MetaData:         make(map[string]string),
		MediaURLFetch:    DownloadNotStarted,
		ThumbnailStatus:  DownloadNotStarted,
		MediaFilesStatus: DownloadNotStarted,
		Assets:           make(map[MediaKind]*Asset),
	}
}

// SetAsset records the remote URL and format hint for a media kind
func (r *SearchResult) SetAsset(kind MediaKind, url, format string) {
	if r.Assets == nil {
		r.Assets = make(map[MediaKind]*Asset)
	}
	r.Assets[kind] = &Asset{URL: url, Format: format, Status: DownloadNotStarted}
}

// AssetURL returns the remote URL for a kind, empty when unknown
func (r *SearchResult) AssetURL(kind MediaKind) string {
	if asset, ok := r.Assets[kind]; ok && asset != nil {
		return asset.URL
	}
	return ""
}

// Clone returns a deep copy so that orchestrators never share mutable state
func (r SearchResult) Clone() SearchResult {
	out := r
	out.MetaData = make(map[string]string, len(r.MetaData))
	for k, v := range r.MetaData {
		out.MetaData[k] = v
	}
	out.Assets = make(map[MediaKind]*Asset, len(r.Assets))
	for k, v := range r.Assets {
		if v == nil {
			continue
		}
		asset := *v
		out.Assets[k] = &asset
	}
	if r.ThumbnailData != nil {
		out.ThumbnailData = append([]byte(nil), r.ThumbnailData...)
	}
	return out
}
