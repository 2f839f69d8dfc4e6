package domain

// RawMetadata is the subset of yt-dlp's --dump-json document that the
// service reads.
type RawMetadata struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Thumbnail      string      `json:"thumbnail"`
	Duration       float64     `json:"duration"`
	DurationString string      `json:"duration_string"`
	Uploader       string      `json:"uploader"`
	Channel        string      `json:"channel"`
	Creator        string      `json:"creator"`
	ViewCount      int64       `json:"view_count"`
	Formats        []RawFormat `json:"formats"`
}

// RawFormat is one entry of yt-dlp's format table.
type RawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	TBR            float64 `json:"tbr"`
}

// Size returns the exact size when known, otherwise the estimate.
func (f RawFormat) Size() int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

// HasVideo reports whether the format carries a video track.
func (f RawFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the format is known to carry an audio track.
func (f RawFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// RawThumbnail is an item of a flat playlist entry's thumbnail list.
type RawThumbnail struct {
	URL string `json:"url"`
}

// RawPlaylistEntry is one line of `--flat-playlist --dump-json` output.
type RawPlaylistEntry struct {
	ID               string         `json:"id"`
	URL              string         `json:"url"`
	Title            string         `json:"title"`
	Duration         float64        `json:"duration"`
	Thumbnail        string         `json:"thumbnail"`
	Thumbnails       []RawThumbnail `json:"thumbnails"`
	Channel          string         `json:"channel"`
	Uploader         string         `json:"uploader"`
	PlaylistTitle    string         `json:"playlist_title"`
	PlaylistUploader string         `json:"playlist_uploader"`
}
