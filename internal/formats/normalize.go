// Package formats collapses yt-dlp's format table into one selectable
// option per vertical resolution.
package formats

import (
	"fmt"
	"sort"

	"socialdownloader/internal/core/domain"
)

// FallbackHeight is assumed when the source reports no usable height.
const FallbackHeight = 360

const (
	TypeVideo = "video"
	TypeAudio = "audio"
)

// AudioFormatID is the yt-dlp selector behind the audio-only option.
const AudioFormatID = "bestaudio"

// Label returns the display label for a height.
func Label(height int) string {
	switch {
	case height >= 2160:
		return fmt.Sprintf("%dp (4K)", height)
	case height >= 1440:
		return fmt.Sprintf("%dp (2K)", height)
	case height >= 1080:
		return fmt.Sprintf("%dp (Full HD)", height)
	case height >= 720:
		return fmt.Sprintf("%dp (HD)", height)
	case height >= 480:
		return fmt.Sprintf("%dp (SD)", height)
	default:
		return fmt.Sprintf("%dp", height)
	}
}

// better reports whether a should replace b for the same height: larger
// size first, then higher bitrate.
func better(a, b domain.RawFormat) bool {
	if as, bs := a.Size(), b.Size(); as != bs {
		return as > bs
	}
	return a.TBR > b.TBR
}

// Normalize returns one video option per distinct height, highest first.
// When no format carries a usable height, the first video-bearing format
// (or the first format at all) is returned with FallbackHeight.
func Normalize(raw []domain.RawFormat) []domain.FormatOption {
	best := make(map[int]domain.RawFormat)
	for _, f := range raw {
		if !f.HasVideo() || f.Height <= 0 {
			continue
		}
		if cur, ok := best[f.Height]; !ok || better(f, cur) {
			best[f.Height] = f
		}
	}

	if len(best) == 0 {
		return fallback(raw)
	}

	heights := make([]int, 0, len(best))
	for h := range best {
		heights = append(heights, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(heights)))

	out := make([]domain.FormatOption, 0, len(heights))
	for _, h := range heights {
		out = append(out, option(h, best[h]))
	}
	return out
}

func fallback(raw []domain.RawFormat) []domain.FormatOption {
	if len(raw) == 0 {
		return nil
	}
	pick := raw[0]
	for _, f := range raw {
		if f.HasVideo() {
			pick = f
			break
		}
	}
	return []domain.FormatOption{option(FallbackHeight, pick)}
}

func option(height int, f domain.RawFormat) domain.FormatOption {
	h := height
	opt := domain.FormatOption{
		Height:   &h,
		Label:    Label(height),
		FormatID: f.FormatID,
		Type:     TypeVideo,
	}
	if size := f.Size(); size > 0 {
		opt.Filesize = &size
	}
	return opt
}

// AudioOption is the audio-only (MP3) bucket.
func AudioOption() domain.FormatOption {
	return domain.FormatOption{
		Label:    "Audio Only (MP3)",
		FormatID: AudioFormatID,
		Type:     TypeAudio,
	}
}

// WithAudio appends the audio-only bucket after the video options.
func WithAudio(opts []domain.FormatOption) []domain.FormatOption {
	out := make([]domain.FormatOption, 0, len(opts)+1)
	out = append(out, opts...)
	return append(out, AudioOption())
}

// Resolve maps a format id from a previous Normalize call back to the
// height it was listed under, so a download request built from an info
// response selects the same encoding tier.
func Resolve(opts []domain.FormatOption, formatID string) (domain.FormatOption, bool) {
	for _, o := range opts {
		if o.FormatID == formatID {
			return o, true
		}
	}
	return domain.FormatOption{}, false
}
