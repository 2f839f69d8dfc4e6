package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/delivery"
	"socialdownloader/internal/formats"
	"socialdownloader/internal/service"
)

type YouTubeInfo struct {
	Title          string                `json:"title"`
	Thumbnail      string                `json:"thumbnail"`
	Duration       float64               `json:"duration"`
	DurationString string                `json:"duration_string"`
	Channel        string                `json:"channel"`
	ViewCount      int64                 `json:"view_count"`
	VideoFormats   []domain.FormatOption `json:"videoFormats"`
	AudioFormats   []domain.FormatOption `json:"audioFormats"`
	Formats        []domain.FormatOption `json:"formats"`
}

type YouTubeInfoOutput struct {
	Body Envelope[YouTubeInfo]
}

func (api *API) YouTubeInfo(ctx context.Context, input *InfoInput) (*YouTubeInfoOutput, error) {
	meta, err := api.Service.Info(ctx, domain.MediaRequest{
		URL:      strings.TrimSpace(input.Body.URL),
		Platform: domain.PlatformYouTube,
	})
	if err != nil {
		return nil, err
	}
	info := YouTubeInfo{
		Title:          meta.Title,
		Thumbnail:      meta.Thumbnail,
		Duration:       meta.Duration,
		DurationString: meta.DurationString,
		Channel:        meta.Uploader,
		ViewCount:      meta.ViewCount,
		VideoFormats:   []domain.FormatOption{},
		AudioFormats:   []domain.FormatOption{},
		Formats:        meta.Formats,
	}
	for _, f := range meta.Formats {
		if f.Type == formats.TypeAudio {
			info.AudioFormats = append(info.AudioFormats, f)
		} else {
			info.VideoFormats = append(info.VideoFormats, f)
		}
	}
	return &YouTubeInfoOutput{Body: ok(info)}, nil
}

var OperationYouTubeInfo = Operation[InfoInput, YouTubeInfoOutput]{
	Huma: huma.Operation{
		OperationID:   "youtube-info",
		Summary:       "Fetch YouTube video info",
		Tags:          []string{"YouTube"},
		Path:          "/api/youtube/info",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        infoErrors,
	},
	Handler: (*API).YouTubeInfo,
}

func (api *API) YouTubeDownload(ctx context.Context, input *DownloadInput) (*huma.StreamResponse, error) {
	return api.download(ctx, domain.PlatformYouTube, input.Body, "")
}

var OperationYouTubeDownload = Operation[DownloadInput, huma.StreamResponse]{
	Huma: huma.Operation{
		OperationID:   "youtube-download",
		Summary:       "Download YouTube video or audio",
		Tags:          []string{"YouTube"},
		Path:          "/api/youtube/download",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        downloadErrors,
	},
	Handler: (*API).YouTubeDownload,
}

type PlaylistInfo struct {
	Title      string          `json:"title"`
	Channel    string          `json:"channel"`
	Thumbnail  string          `json:"thumbnail"`
	VideoCount int             `json:"videoCount"`
	Videos     []PlaylistVideo `json:"videos"`
}

type PlaylistInfoOutput struct {
	Body Envelope[PlaylistInfo]
}

func (api *API) PlaylistInfo(ctx context.Context, input *InfoInput) (*PlaylistInfoOutput, error) {
	meta, err := api.Service.PlaylistInfo(ctx, strings.TrimSpace(input.Body.URL))
	if err != nil {
		return nil, err
	}
	info := PlaylistInfo{
		Title:      meta.Title,
		Channel:    meta.Uploader,
		Thumbnail:  meta.Thumbnail,
		VideoCount: len(meta.Videos),
		Videos:     make([]PlaylistVideo, len(meta.Videos)),
	}
	for i, v := range meta.Videos {
		info.Videos[i] = PlaylistVideo{
			Index:         v.Index,
			OriginalIndex: v.OriginalIndex,
			Title:         v.Title,
			Duration:      v.Duration,
			Thumbnail:     v.Thumbnail,
		}
	}
	return &PlaylistInfoOutput{Body: ok(info)}, nil
}

var OperationPlaylistInfo = Operation[InfoInput, PlaylistInfoOutput]{
	Huma: huma.Operation{
		OperationID:   "youtube-playlist-info",
		Summary:       "List a YouTube playlist",
		Tags:          []string{"YouTube"},
		Path:          "/api/youtube/playlist/info",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        infoErrors,
	},
	Handler: (*API).PlaylistInfo,
}

type PlaylistInput struct {
	Body PlaylistBody
}

func (api *API) playlistArchive(ctx context.Context, body PlaylistBody, selected []int) (*huma.StreamResponse, error) {
	archive, err := api.Service.PreparePlaylist(ctx, service.PlaylistRequest{
		URL:       strings.TrimSpace(body.URL),
		MediaType: domain.ParseMediaType(body.Type),
		Height:    int(body.Height),
		Selected:  selected,
	})
	if err != nil {
		return nil, err
	}
	name := delivery.SanitizeFilename(archive.Title, "playlist", "zip")
	return api.streamArchive(ctx, archive, name), nil
}

func (api *API) PlaylistDownload(ctx context.Context, input *PlaylistInput) (*huma.StreamResponse, error) {
	return api.playlistArchive(ctx, input.Body, nil)
}

var OperationPlaylistDownload = Operation[PlaylistInput, huma.StreamResponse]{
	Huma: huma.Operation{
		OperationID:   "youtube-playlist-download",
		Summary:       "Download a YouTube playlist as ZIP",
		Description:   "Entries are downloaded one after another. Entries that fail are left out of the archive.",
		Tags:          []string{"YouTube"},
		Path:          "/api/youtube/playlist/download",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        downloadErrors,
	},
	Handler: (*API).PlaylistDownload,
}

func (api *API) PlaylistDownloadSelected(ctx context.Context, input *PlaylistInput) (*huma.StreamResponse, error) {
	selected := input.Body.SelectedIndices
	if selected == nil {
		selected = []int{}
	}
	return api.playlistArchive(ctx, input.Body, selected)
}

var OperationPlaylistDownloadSelected = Operation[PlaylistInput, huma.StreamResponse]{
	Huma: huma.Operation{
		OperationID:   "youtube-playlist-download-selected",
		Summary:       "Download selected playlist entries as ZIP",
		Tags:          []string{"YouTube"},
		Path:          "/api/youtube/playlist/download-selected",
		Method:        http.MethodPost,
		DefaultStatus: http.StatusOK,
		Errors:        downloadErrors,
	},
	Handler: (*API).PlaylistDownloadSelected,
}
