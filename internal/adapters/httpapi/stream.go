package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/delivery"
	"socialdownloader/internal/service"
)

// attachment describes the headers of a binary response.
type attachment struct {
	contentType string
	filename    string
	length      int64
}

func (a attachment) writeHeaders(ctx huma.Context) {
	ctx.SetHeader("Content-Type", a.contentType)
	ctx.SetHeader("Content-Disposition", delivery.ContentDisposition(a.filename))
	if a.length > 0 {
		ctx.SetHeader("Content-Length", strconv.FormatInt(a.length, 10))
	}
	ctx.SetStatus(http.StatusOK)
}

// abort ends a response whose headers were already sent. The connection
// is closed without a proper end of body so the client sees the transfer
// as failed rather than complete.
func abort() {
	panic(http.ErrAbortHandler)
}

// streamPayload serves a prepared media payload. The payload is closed on
// every path, which kills the extractor or removes the temp file.
func (api *API) streamPayload(ctx context.Context, payload delivery.Payload, a attachment) *huma.StreamResponse {
	a.length = payload.ContentLength()
	log := api.Logger.With("request", service.RequestID(ctx), "file", a.filename)
	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer payload.Close()
			a.writeHeaders(hctx)
			n, err := payload.WriteTo(hctx.BodyWriter())
			if err != nil {
				log.Warn("download aborted", "bytes", n, "err", err.Error())
				abort()
			}
			log.Info("download sent", "bytes", n)
		},
	}
}

// streamArchive serves a playlist ZIP built while it is written.
func (api *API) streamArchive(ctx context.Context, archive *service.Archive, filename string) *huma.StreamResponse {
	log := api.Logger.With("request", service.RequestID(ctx), "file", filename)
	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			attachment{contentType: "application/zip", filename: filename}.writeHeaders(hctx)
			report, err := archive.WriteTo(hctx.Context(), hctx.BodyWriter())
			if err != nil {
				log.Warn("archive aborted", "added", len(report.Added), "err", err.Error())
				abort()
			}
			log.Info("archive sent", "added", len(report.Added), "skipped", len(report.Failed))
		},
	}
}

// defaultName is used when the client did not suggest a file name.
func (api *API) defaultName(p domain.Platform, t domain.MediaType) string {
	return fmt.Sprintf("%s_%s_%d", p, t, api.now().UnixMilli())
}

// download runs a single-video download for platform p.
func (api *API) download(ctx context.Context, p domain.Platform, body DownloadBody, fallbackName string) (*huma.StreamResponse, error) {
	req := body.request(p)
	media, err := api.Service.Download(ctx, req)
	if err != nil {
		return nil, err
	}
	t := media.Type
	if fallbackName == "" {
		fallbackName = api.defaultName(p, t)
	}
	return api.streamPayload(ctx, media.Payload, attachment{
		contentType: t.ContentType(),
		filename:    delivery.SanitizeFilename(req.Filename, fallbackName, t.Ext()),
	}), nil
}
