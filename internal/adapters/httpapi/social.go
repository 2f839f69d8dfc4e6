package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"socialdownloader/internal/core/domain"
)

// Instagram and TikTok share request and response shapes.

type SocialInfo struct {
	Title     string                `json:"title"`
	Thumbnail string                `json:"thumbnail"`
	Duration  float64               `json:"duration"`
	Uploader  string                `json:"uploader"`
	Formats   []domain.FormatOption `json:"formats"`
}

type SocialInfoOutput struct {
	Body Envelope[SocialInfo]
}

func (api *API) socialInfo(ctx context.Context, p domain.Platform, input *InfoInput) (*SocialInfoOutput, error) {
	meta, err := api.Service.Info(ctx, domain.MediaRequest{
		URL:      strings.TrimSpace(input.Body.URL),
		Platform: p,
	})
	if err != nil {
		return nil, err
	}
	return &SocialInfoOutput{Body: ok(SocialInfo{
		Title:     meta.Title,
		Thumbnail: meta.Thumbnail,
		Duration:  meta.Duration,
		Uploader:  meta.Uploader,
		Formats:   meta.Formats,
	})}, nil
}

func (api *API) InstagramInfo(ctx context.Context, input *InfoInput) (*SocialInfoOutput, error) {
	return api.socialInfo(ctx, domain.PlatformInstagram, input)
}

func (api *API) TikTokInfo(ctx context.Context, input *InfoInput) (*SocialInfoOutput, error) {
	return api.socialInfo(ctx, domain.PlatformTikTok, input)
}

func (api *API) InstagramDownload(ctx context.Context, input *DownloadInput) (*huma.StreamResponse, error) {
	return api.download(ctx, domain.PlatformInstagram, input.Body, "")
}

func (api *API) TikTokDownload(ctx context.Context, input *DownloadInput) (*huma.StreamResponse, error) {
	return api.download(ctx, domain.PlatformTikTok, input.Body, "")
}

var OperationInstagramInfo = Operation[InfoInput, SocialInfoOutput]{
	Huma: huma.Operation{
		OperationID:   "instagram-info",
		Summary:       "Fetch Instagram post info",
		Tags:          []string{"Instagram"},
		Path:          "/api/instagram/info",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        infoErrors,
	},
	Handler: (*API).InstagramInfo,
}

var OperationInstagramDownload = Operation[DownloadInput, huma.StreamResponse]{
	Huma: huma.Operation{
		OperationID:   "instagram-download",
		Summary:       "Download Instagram video or audio",
		Description:   "Video is staged in a temp file before it is sent; audio is streamed.",
		Tags:          []string{"Instagram"},
		Path:          "/api/instagram/download",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        downloadErrors,
	},
	Handler: (*API).InstagramDownload,
}

var OperationTikTokInfo = Operation[InfoInput, SocialInfoOutput]{
	Huma: huma.Operation{
		OperationID:   "tiktok-info",
		Summary:       "Fetch TikTok video info",
		Tags:          []string{"TikTok"},
		Path:          "/api/tiktok/info",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        infoErrors,
	},
	Handler: (*API).TikTokInfo,
}

var OperationTikTokDownload = Operation[DownloadInput, huma.StreamResponse]{
	Huma: huma.Operation{
		OperationID:   "tiktok-download",
		Summary:       "Download TikTok video or audio",
		Tags:          []string{"TikTok"},
		Path:          "/api/tiktok/download",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        downloadErrors,
	},
	Handler: (*API).TikTokDownload,
}
