package media

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kelsos/media-scraper/internal/models"
)

// GameStem returns the file name of the game without directory or extension
func GameStem(game *models.Game) string {
	if game == nil {
		return ""
	}
	base := filepath.Base(game.Path)
	if base == "." || base == string(filepath.Separator) {
		return game.Name
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// URLExtension extracts the lowercased file extension from a URL path
func URLExtension(rawURL string) string {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		p = parsed.Path
	}

	ext := strings.ToLower(path.Ext(p))
	if len(ext) < 2 || len(ext) > 5 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// Extension picks the saved extension: the format hint, then the URL, then the kind default
func Extension(rawURL, formatHint string, kind models.MediaKind) string {
	if hint := strings.ToLower(strings.TrimSpace(formatHint)); hint != "" {
		return "." + strings.TrimPrefix(hint, ".")
	}
	if ext := URLExtension(rawURL); ext != "" {
		return ext
	}
	return kind.DefaultExtension()
}

func mediaDir(mediaRoot string, params models.SearchParams, subdirectory string) (string, error) {
	if params.System == nil || params.Game == nil {
		return "", fmt.Errorf("search params need both a system and a game")
	}
	return filepath.Join(mediaRoot, params.System.Name, subdirectory), nil
}

// SaveAsPath builds <mediaRoot>/<system>/<subdirectory>/<game>.<ext> and creates
// the directories leading up to it
func SaveAsPath(mediaRoot string, params models.SearchParams, subdirectory, rawURL, formatHint string) (string, error) {
	dir, err := mediaDir(mediaRoot, params, subdirectory)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create media directory %s: %v", models.ErrFilesystem, dir, err)
	}

	kind, _ := models.ParseMediaKind(subdirectory)
	return filepath.Join(dir, GameStem(params.Game)+Extension(rawURL, formatHint, kind)), nil
}

// FindExisting returns the path of an already saved media file for the game, or ""
func FindExisting(mediaRoot string, params models.SearchParams, subdirectory string) string {
	dir, err := mediaDir(mediaRoot, params, subdirectory)
	if err != nil {
		return ""
	}

	kind, ok := models.ParseMediaKind(subdirectory)
	extensions := []string{".jpg", ".png"}
	if ok {
		extensions = kind.Extensions()
	}

	stem := GameStem(params.Game)
	for _, ext := range extensions {
		candidate := filepath.Join(dir, stem+ext)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}
