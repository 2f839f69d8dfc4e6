// Package httpapi exposes the download service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/google/uuid"

	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/service"
)

// Service is the part of the orchestration layer the API drives.
type Service interface {
	Info(ctx context.Context, req domain.MediaRequest) (*domain.ExtractedMetadata, error)
	Download(ctx context.Context, req domain.MediaRequest) (*service.Media, error)
	PlaylistInfo(ctx context.Context, url string) (*domain.PlaylistMetadata, error)
	PreparePlaylist(ctx context.Context, req service.PlaylistRequest) (*service.Archive, error)
}

type API struct {
	Service Service
	Logger  *slog.Logger
	// Origins are allowed to make credentialed cross-origin requests.
	Origins []string
	// ShutdownTimeout bounds graceful shutdown in Run.
	ShutdownTimeout time.Duration
	// Now is used for health timestamps and default file names.
	Now func() time.Time
}

func (api *API) now() time.Time {
	if api.Now != nil {
		return api.Now()
	}
	return time.Now()
}

func (api *API) Run(ctx context.Context, addr string) error {
	server := http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		api.Logger.Info("http server listening", "addr", addr)
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			api.Logger.Error("serving http", "err", err.Error())
		}
		api.Logger.Info("http server shutdown")
		done <- err
	}()

	// block until the server fails or ctx is cancelled; on cancellation
	// drain in-flight requests for at most ShutdownTimeout.
	select {
	case <-ctx.Done():
		timeout := api.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sdc, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(sdc); err != nil &&
			!errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded) {

			return fmt.Errorf("running api: shutting down http server: %w", err)
		}
		return nil
	case err := <-done:
		if err != nil {
			return fmt.Errorf("running api: %w", err)
		}
		return nil
	}
}

func (api *API) Handler() http.Handler {
	var mux http.ServeMux
	config := huma.DefaultConfig("socialdownloader", "v1.0.0")
	// responses keep the documented shape, without a $schema link
	config.CreateHooks = nil

	registry := Registry{API: api, Huma: humago.New(&mux, config)}
	registry.Huma.UseMiddleware(api.requestMiddleware)

	OperationHealth.Register(&registry)

	OperationFacebookInfo.Register(&registry)
	OperationFacebookDownload.Register(&registry)
	OperationFacebookAudio.Register(&registry)

	OperationYouTubeInfo.Register(&registry)
	OperationYouTubeDownload.Register(&registry)
	OperationPlaylistInfo.Register(&registry)
	OperationPlaylistDownload.Register(&registry)
	OperationPlaylistDownloadSelected.Register(&registry)

	OperationInstagramInfo.Register(&registry)
	OperationInstagramDownload.Register(&registry)
	OperationTikTokInfo.Register(&registry)
	OperationTikTokDownload.Register(&registry)

	mux.HandleFunc("/", api.notFound)
	return api.cors(&mux)
}

type Registry struct {
	API  *API
	Huma huma.API
}

type Operation[I, O any] struct {
	Huma    huma.Operation
	Handler func(api *API, ctx context.Context, input *I) (*O, error)
}

func (op Operation[I, O]) Register(r *Registry) {
	huma.Register(r.Huma, op.Huma, func(ctx context.Context, i *I) (*O, error) {
		o, err := op.Handler(r.API, ctx, i)
		if err != nil {
			return nil, r.API.failure(ctx, op.Huma.OperationID, err)
		}
		return o, nil
	})
}

// requestMiddleware tags every request with an id shared by the API and
// service logs, and sets the headers common to all responses.
func (api *API) requestMiddleware(ctx huma.Context, next func(huma.Context)) {
	id := ctx.Header("X-Request-ID")
	if id == "" {
		id = uuid.New().String()
	}
	ctx.SetHeader("X-Request-ID", id)
	ctx.SetHeader("Cache-Control", "no-cache")
	ctx.SetHeader("X-Content-Type-Options", "nosniff")

	start := time.Now()
	api.Logger.Debug("request started", "request", id, "method", ctx.Method(), "path", ctx.URL().Path)
	next(huma.WithContext(ctx, service.WithRequestID(ctx.Context(), id)))
	api.Logger.Info("request finished",
		"request", id, "method", ctx.Method(), "path", ctx.URL().Path, "duration", time.Since(start).String())
}

// failure logs a handler error and converts it into the response error.
func (api *API) failure(ctx context.Context, op string, err error) error {
	status, e := toAPIError(err)
	log := api.Logger.With("request", service.RequestID(ctx), "operation", op, "status", status)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "err", err.Error())
	} else {
		log.Warn("request rejected", "err", err.Error())
	}
	return e
}

func (api *API) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, http.StatusNotFound, "Route not found")
}
