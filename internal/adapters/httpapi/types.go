package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"socialdownloader/internal/core/domain"
)

// Height is a requested vertical resolution. Clients send it either as a
// number or as a numeric string; empty and null mean "not set".
type Height int

func (h *Height) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*h = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*h = 0
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil || n != float64(int(n)) {
		return fmt.Errorf("height must be an integer, got %s", b)
	}
	*h = Height(n)
	return nil
}

// Schema implements the `huma.SchemaProvider` interface. The schema has no
// type so that both encodings pass validation.
func (Height) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Maximum video height in pixels, as a number or numeric string.",
		Examples:    []any{720, "1080"},
	}
}

// Envelope wraps successful JSON responses.
type Envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func ok[T any](data T) Envelope[T] { return Envelope[T]{Success: true, Data: data} }

// URLBody is the body of every info request.
type URLBody struct {
	URL string   `json:"url,omitempty" doc:"Video or playlist URL"`
	_   struct{} `json:"-" additionalProperties:"true"`
}

// DownloadBody is the body of every single-video download request.
type DownloadBody struct {
	URL      string   `json:"url,omitempty" doc:"Video URL"`
	Height   Height   `json:"height,omitempty"`
	Type     string   `json:"type,omitempty" doc:"Media type, video unless set to audio"`
	Filename string   `json:"filename,omitempty" doc:"Suggested download name"`
	FormatID string   `json:"formatId,omitempty" doc:"format_id of an option from the info response; overrides height and type"`
	_        struct{} `json:"-" additionalProperties:"true"`
}

// PlaylistBody is the body of playlist archive requests.
type PlaylistBody struct {
	URL             string   `json:"url,omitempty" doc:"Playlist URL"`
	Height          Height   `json:"height,omitempty"`
	Type            string   `json:"type,omitempty" doc:"Media type, video unless set to audio"`
	SelectedIndices []int    `json:"selectedIndices,omitempty" doc:"Display indexes from the playlist info response"`
	_               struct{} `json:"-" additionalProperties:"true"`
}

// request builds the service request for a download body.
func (b DownloadBody) request(p domain.Platform) domain.MediaRequest {
	return domain.MediaRequest{
		URL:       strings.TrimSpace(b.URL),
		Platform:  p,
		Height:    int(b.Height),
		MediaType: domain.ParseMediaType(b.Type),
		Filename:  b.Filename,
		FormatID:  strings.TrimSpace(b.FormatID),
	}
}

// PlaylistVideo is one entry of a playlist info response.
type PlaylistVideo struct {
	Index         int     `json:"index"`
	OriginalIndex int     `json:"originalIndex"`
	Title         string  `json:"title"`
	Duration      float64 `json:"duration"`
	Thumbnail     string  `json:"thumbnail"`
}
