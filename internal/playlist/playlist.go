// Package playlist turns a flat yt-dlp playlist dump into the indexed
// listing shown to clients.
package playlist

import (
	"strings"

	"socialdownloader/internal/core/domain"
)

// DefaultTitle names playlists whose entries carry no playlist title.
const DefaultTitle = "YouTube Playlist"

var sentinels = []string{"deleted video", "private video", "unavailable"}

// IsPlaceholder reports whether title marks an entry that cannot be
// downloaded.
func IsPlaceholder(title string) bool {
	if strings.TrimSpace(title) == "NA" {
		return true
	}
	t := strings.ToLower(title)
	for _, s := range sentinels {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}

// Build filters placeholder entries and assigns contiguous 1-based display
// indexes to the survivors. OriginalIndex keeps the raw position.
func Build(raw []domain.RawPlaylistEntry) domain.PlaylistMetadata {
	meta := domain.PlaylistMetadata{
		Title:  DefaultTitle,
		Videos: make([]domain.PlaylistEntry, 0, len(raw)),
	}
	if len(raw) > 0 {
		first := raw[0]
		if first.PlaylistTitle != "" {
			meta.Title = first.PlaylistTitle
		}
		meta.Uploader = firstNonEmpty(first.PlaylistUploader, first.Channel, first.Uploader)
	}

	for i, e := range raw {
		if IsPlaceholder(e.Title) {
			continue
		}
		u := entryURL(e)
		if u == "" {
			continue
		}
		meta.Videos = append(meta.Videos, domain.PlaylistEntry{
			Index:         len(meta.Videos) + 1,
			OriginalIndex: i + 1,
			Title:         e.Title,
			Duration:      e.Duration,
			Thumbnail:     thumbnail(e),
			URL:           u,
		})
	}
	if len(meta.Videos) > 0 {
		meta.Thumbnail = meta.Videos[0].Thumbnail
	}
	return meta
}

func entryURL(e domain.RawPlaylistEntry) string {
	if e.ID != "" {
		return "https://www.youtube.com/watch?v=" + e.ID
	}
	return e.URL
}

func thumbnail(e domain.RawPlaylistEntry) string {
	if len(e.Thumbnails) > 0 && e.Thumbnails[0].URL != "" {
		return e.Thumbnails[0].URL
	}
	return e.Thumbnail
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
