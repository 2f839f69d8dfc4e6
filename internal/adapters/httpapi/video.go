package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"socialdownloader/internal/core/domain"
)

// Facebook routes live under /api/video.

type FacebookInfo struct {
	Title     string                `json:"title"`
	Thumbnail string                `json:"thumbnail"`
	Duration  float64               `json:"duration"`
	Formats   []domain.FormatOption `json:"formats"`
}

type InfoInput struct {
	Body URLBody
}

type FacebookInfoOutput struct {
	Body Envelope[FacebookInfo]
}

func (api *API) FacebookInfo(ctx context.Context, input *InfoInput) (*FacebookInfoOutput, error) {
	meta, err := api.Service.Info(ctx, domain.MediaRequest{
		URL:      strings.TrimSpace(input.Body.URL),
		Platform: domain.PlatformFacebook,
	})
	if err != nil {
		return nil, err
	}
	return &FacebookInfoOutput{Body: ok(FacebookInfo{
		Title:     meta.Title,
		Thumbnail: meta.Thumbnail,
		Duration:  meta.Duration,
		Formats:   meta.Formats,
	})}, nil
}

var OperationFacebookInfo = Operation[InfoInput, FacebookInfoOutput]{
	Huma: huma.Operation{
		OperationID:   "facebook-info",
		Summary:       "Fetch Facebook video info",
		Tags:          []string{"Facebook"},
		Path:          "/api/video/info",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        infoErrors,
	},
	Handler: (*API).FacebookInfo,
}

type DownloadInput struct {
	Body DownloadBody
}

func (api *API) FacebookDownload(ctx context.Context, input *DownloadInput) (*huma.StreamResponse, error) {
	body := input.Body
	body.Type = string(domain.MediaVideo)
	return api.download(ctx, domain.PlatformFacebook, body, "facebook-video")
}

var OperationFacebookDownload = Operation[DownloadInput, huma.StreamResponse]{
	Huma: huma.Operation{
		OperationID:   "facebook-download",
		Summary:       "Download Facebook video",
		Description:   "Streams an mp4 at or below the requested height. height is required.",
		Tags:          []string{"Facebook"},
		Path:          "/api/video/download",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        downloadErrors,
	},
	Handler: (*API).FacebookDownload,
}

func (api *API) FacebookAudio(ctx context.Context, input *DownloadInput) (*huma.StreamResponse, error) {
	body := input.Body
	body.Type = string(domain.MediaAudio)
	body.Height = 0
	body.FormatID = ""
	return api.download(ctx, domain.PlatformFacebook, body, "facebook-audio")
}

var OperationFacebookAudio = Operation[DownloadInput, huma.StreamResponse]{
	Huma: huma.Operation{
		OperationID:   "facebook-download-audio",
		Summary:       "Download Facebook audio",
		Tags:          []string{"Facebook"},
		Path:          "/api/video/download-audio",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        downloadErrors,
	},
	Handler: (*API).FacebookAudio,
}

var (
	infoErrors = []int{
		http.StatusBadRequest,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
	}
	downloadErrors = infoErrors
)

type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthOutput struct {
	Body Health
}

func (api *API) Health(context.Context, *struct{}) (*HealthOutput, error) {
	return &HealthOutput{Body: Health{Status: "ok", Timestamp: api.now().UTC()}}, nil
}

var OperationHealth = Operation[struct{}, HealthOutput]{
	Huma: huma.Operation{
		OperationID:   "health",
		Summary:       "Health check",
		Tags:          []string{"Health"},
		Path:          "/health",
		Method:        http.MethodGet,
		DefaultStatus: http.StatusOK,
	},
	Handler: (*API).Health,
}
