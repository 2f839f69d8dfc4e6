package domain

import "strings"

// Platform identifies one of the supported social-media sites.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// MediaType selects between a video container and an audio-only extraction.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// ParseMediaType maps client input to a MediaType. Anything other than
// "audio" is treated as video.
func ParseMediaType(s string) MediaType {
	if strings.EqualFold(strings.TrimSpace(s), string(MediaAudio)) {
		return MediaAudio
	}
	return MediaVideo
}

// Ext returns the file extension produced for the media type.
func (m MediaType) Ext() string {
	if m == MediaAudio {
		return "mp3"
	}
	return "mp4"
}

// ContentType returns the MIME type served for the media type.
func (m MediaType) ContentType() string {
	if m == MediaAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// MediaRequest is a single download or info request.
type MediaRequest struct {
	URL       string
	Platform  Platform
	Height    int // zero means "best available"
	MediaType MediaType
	Filename  string
	// FormatID, when set, names a FormatOption from a previous info
	// response and overrides Height.
	FormatID string
}

// ExtractedMetadata is the normalized view of one video's metadata.
type ExtractedMetadata struct {
	Title          string         `json:"title"`
	Thumbnail      string         `json:"thumbnail"`
	Duration       float64        `json:"duration"`
	DurationString string         `json:"duration_string,omitempty"`
	Uploader       string         `json:"uploader,omitempty"`
	ViewCount      int64          `json:"view_count,omitempty"`
	Formats        []FormatOption `json:"formats"`
}

// FormatOption is one selectable quality. A nil Height marks the
// audio-only option.
type FormatOption struct {
	Height   *int   `json:"height"`
	Label    string `json:"label"`
	FormatID string `json:"format_id"`
	Filesize *int64 `json:"filesize"`
	Type     string `json:"type"`
}

// IsAudio reports whether the option is the audio-only bucket.
func (f FormatOption) IsAudio() bool { return f.Height == nil }

// PlaylistMetadata is a filtered, indexed playlist listing.
type PlaylistMetadata struct {
	Title     string          `json:"title"`
	Uploader  string          `json:"channel"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Videos    []PlaylistEntry `json:"videos"`
}

// PlaylistEntry is one downloadable playlist item. Index is the display
// index after filtering; OriginalIndex is the position in the raw listing.
type PlaylistEntry struct {
	Index         int     `json:"index"`
	OriginalIndex int     `json:"originalIndex"`
	Title         string  `json:"title"`
	Duration      float64 `json:"duration"`
	Thumbnail     string  `json:"thumbnail,omitempty"`
	URL           string  `json:"url"`
}
