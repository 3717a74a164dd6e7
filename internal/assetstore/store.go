package assetstore

import (
	"context"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ResourceVideo is the resource type used for rendered videos.
const ResourceVideo = "video"

// DefaultFolder groups uploaded videos when no folder is configured.
const DefaultFolder = "subtitle_videos"

// UploadOptions controls where an asset lands.
type UploadOptions struct {
	ResourceType string
	Folder       string
	PublicID     string
}

// Asset describes a published file.
type Asset struct {
	URL      string
	PublicID string
	Bytes    int64
}

// Store publishes a local file and returns a public URL.
type Store interface {
	Upload(ctx context.Context, path string, opts UploadOptions) (Asset, error)
}

// PublicID derives a readable, URL-safe identifier from the upload filename
// and run ID. Accents are folded, anything outside [a-z0-9] collapses to a
// single hyphen, and the first eight characters of the run ID keep it unique.
func PublicID(filename, runID string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	slug := Slugify(stem)
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	suffix := strings.ReplaceAll(runID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	switch {
	case slug == "" && suffix == "":
		return "video"
	case slug == "":
		return "video-" + suffix
	case suffix == "":
		return slug
	default:
		return slug + "-" + suffix
	}
}

// Slugify lowercases value, strips diacritics and replaces runs of other
// characters with a hyphen.
func Slugify(value string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, value)
	if err != nil {
		folded = value
	}
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
