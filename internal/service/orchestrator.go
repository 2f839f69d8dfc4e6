package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"socialdownloader/internal/adapters/ytdlp"
	"socialdownloader/internal/batch"
	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/core/ports"
	"socialdownloader/internal/delivery"
	"socialdownloader/internal/fallback"
	"socialdownloader/internal/formats"
	"socialdownloader/internal/platforms"
	"socialdownloader/internal/playlist"
)

// sizeTimeout bounds the size lookup that runs alongside a pipe.
const sizeTimeout = 15 * time.Second

// Service coordinates validation, extraction and delivery for every
// platform.
type Service struct {
	extractor ports.Extractor
	variants  platforms.Registry
	runner    *fallback.Runner
	store     ports.TempStore
	assembler *batch.Assembler
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(
	extractor ports.Extractor,
	variants platforms.Registry,
	runner *fallback.Runner,
	store ports.TempStore,
	assembler *batch.Assembler,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = &fallback.Runner{}
	}
	return &Service{
		extractor: extractor,
		variants:  variants,
		runner:    runner,
		store:     store,
		assembler: assembler,
		logger:    logger,
	}
}

// job scopes one operation: its variant, a logger tagged with a fresh
// request id and a runner logging through it.
type job struct {
	variant *platforms.Variant
	log     *slog.Logger
	runner  *fallback.Runner
}

func (s *Service) newJob(ctx context.Context, p domain.Platform, op string) (*job, error) {
	v, err := s.variants.Get(p)
	if err != nil {
		return nil, err
	}
	id := RequestID(ctx)
	log := s.logger.With("request", id, "platform", string(p), "op", op)
	return &job{
		variant: v,
		log:     log,
		runner:  &fallback.Runner{Pacer: s.runner.Pacer, Logger: log},
	}, nil
}

type requestIDKey struct{}

// WithRequestID attaches an existing request id to ctx so service logs
// share it with the transport's logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached to ctx, or a new one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Info fetches and normalizes a single video's metadata.
func (s *Service) Info(ctx context.Context, req domain.MediaRequest) (*domain.ExtractedMetadata, error) {
	j, err := s.newJob(ctx, req.Platform, "info")
	if err != nil {
		return nil, err
	}
	if err := (domain.MediaRequest{URL: req.URL}).Validate(j.variant.Pattern, j.variant.Name); err != nil {
		return nil, err
	}
	j.log.Info("fetching metadata", "url", req.URL)

	raw, err := s.fetchMetadata(ctx, j, req.URL)
	if err != nil {
		j.log.Error("metadata fetch failed", "err", err.Error())
		return nil, err
	}

	opts := formats.Normalize(raw.Formats)
	if len(opts) == 0 {
		j.log.Warn("no downloadable formats")
		return nil, domain.ErrNoFormats
	}
	if j.variant.AudioOption {
		opts = formats.WithAudio(opts)
	}

	meta := describe(j.variant, raw)
	meta.Formats = opts
	j.log.Info("metadata ready", "title", meta.Title, "formats", len(opts))
	return meta, nil
}

func (s *Service) fetchMetadata(ctx context.Context, j *job, url string) (*domain.RawMetadata, error) {
	base := j.variant.InfoArgs()
	return fallback.Run(ctx, j.runner, j.variant.FallbackChain(),
		func(ctx context.Context, st fallback.Strategy) (*domain.RawMetadata, error) {
			return s.extractor.FetchMetadata(ctx, url, withStrategy(base, st))
		})
}

// describe maps the raw document onto the response fields each platform
// reports, applying the platform's title and uploader fallbacks.
func describe(v *platforms.Variant, raw *domain.RawMetadata) *domain.ExtractedMetadata {
	meta := &domain.ExtractedMetadata{
		Title:          raw.Title,
		Thumbnail:      raw.Thumbnail,
		Duration:       raw.Duration,
		DurationString: raw.DurationString,
		ViewCount:      raw.ViewCount,
	}
	switch v.Platform {
	case domain.PlatformYouTube:
		meta.Uploader = firstNonEmpty(raw.Channel, raw.Uploader)
	case domain.PlatformInstagram:
		meta.Uploader = firstNonEmpty(raw.Uploader, raw.Channel)
		meta.Title = firstNonEmpty(raw.Title, truncate(raw.Description, 100))
	case domain.PlatformTikTok:
		meta.Uploader = firstNonEmpty(raw.Uploader, raw.Creator)
		meta.Title = firstNonEmpty(raw.Title, truncate(raw.Description, 100))
	default:
		meta.Uploader = raw.Uploader
	}
	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = v.Name + " Video"
	}
	return meta
}

// Media is a prepared download. Type is the media type actually selected,
// which a FormatID may have changed from the request.
type Media struct {
	delivery.Payload
	Type domain.MediaType
}

// Download prepares the media body for req. The caller owns the returned
// media and must Close it.
func (s *Service) Download(ctx context.Context, req domain.MediaRequest) (*Media, error) {
	j, err := s.newJob(ctx, req.Platform, "download")
	if err != nil {
		return nil, err
	}
	if req.MediaType != domain.MediaAudio {
		req.MediaType = domain.MediaVideo
	}
	var pinned *domain.RawFormat
	if req.FormatID != "" {
		if req, pinned, err = s.resolveFormat(ctx, j, req); err != nil {
			return nil, err
		}
	}
	if err := j.variant.Validate(req); err != nil {
		return nil, err
	}

	args := j.variant.MediaArgs(req.MediaType, req.Height)
	if pinned != nil {
		args = j.variant.FormatArgs(pinned.FormatID, pinned.HasAudio(), req.Height)
	}
	mode := j.variant.Delivery(req.MediaType)
	j.log.Info("starting download",
		"url", req.URL, "type", string(req.MediaType), "height", req.Height, "file", mode == platforms.DeliverFile)

	var payload delivery.Payload
	if mode == platforms.DeliverFile {
		payload, err = s.stage(ctx, j, req.URL, req.MediaType.Ext(), args)
	} else {
		payload, err = s.pipe(ctx, j, req, args)
	}
	if err != nil {
		j.log.Error("download failed", "err", err.Error())
		return nil, err
	}
	j.log.Info("download ready", "content_length", payload.ContentLength())
	return &Media{Payload: payload, Type: req.MediaType}, nil
}

// resolveFormat looks a format id from an info response up again and
// returns the listed video format to pin, together with the media type and
// height it was listed under. The format is nil for the audio bucket.
func (s *Service) resolveFormat(ctx context.Context, j *job, req domain.MediaRequest) (domain.MediaRequest, *domain.RawFormat, error) {
	if req.FormatID == formats.AudioFormatID {
		req.MediaType = domain.MediaAudio
		return req, nil, nil
	}
	if err := (domain.MediaRequest{URL: req.URL}).Validate(j.variant.Pattern, j.variant.Name); err != nil {
		return req, nil, err
	}
	raw, err := s.fetchMetadata(ctx, j, req.URL)
	if err != nil {
		return req, nil, err
	}
	opt, ok := formats.Resolve(formats.Normalize(raw.Formats), req.FormatID)
	if !ok {
		return req, nil, domain.Invalid("formatId", fmt.Sprintf("Unknown format %q", req.FormatID))
	}
	if opt.IsAudio() {
		req.MediaType = domain.MediaAudio
		return req, nil, nil
	}
	req.MediaType = domain.MediaVideo
	req.Height = *opt.Height
	for i := range raw.Formats {
		if raw.Formats[i].FormatID == opt.FormatID {
			return req, &raw.Formats[i], nil
		}
	}
	return req, &domain.RawFormat{FormatID: opt.FormatID}, nil
}

// pipe opens a direct stream through the fallback chain. A strategy counts
// as successful once the child produced its first bytes. The size lookup
// runs alongside and is abandoned as soon as the attempt fails.
func (s *Service) pipe(ctx context.Context, j *job, req domain.MediaRequest, args []string) (*delivery.Pipe, error) {
	return fallback.Run(ctx, j.runner, j.variant.FallbackChain(),
		func(ctx context.Context, st fallback.Strategy) (*delivery.Pipe, error) {
			sctx, cancel := context.WithTimeout(ctx, sizeTimeout)
			defer cancel()

			sizes := make(chan int64, 1)
			if req.MediaType == domain.MediaVideo {
				go func() {
					query := append(j.variant.InfoArgs(), ytdlp.SelectionArgs(args)...)
					n, ok := s.extractor.LookupSize(sctx, req.URL, withStrategy(query, st))
					if !ok {
						n = -1
					}
					sizes <- n
				}()
			} else {
				// Transcoded audio has no size known in advance.
				sizes <- -1
			}

			stream, err := s.extractor.OpenStream(ctx, req.URL, withStrategy(args, st))
			if err != nil {
				return nil, err
			}
			p, err := delivery.OpenPipe(stream, -1)
			if err != nil {
				return nil, err
			}
			select {
			case n := <-sizes:
				p.SetContentLength(n)
			case <-ctx.Done():
				_ = p.Close()
				return nil, ctx.Err()
			}
			return p, nil
		})
}

// stage downloads into a temp file through the fallback chain. Every
// failed attempt removes its own partial file.
func (s *Service) stage(ctx context.Context, j *job, url, ext string, args []string) (*delivery.File, error) {
	return fallback.Run(ctx, j.runner, j.variant.FallbackChain(),
		func(ctx context.Context, st fallback.Strategy) (*delivery.File, error) {
			return delivery.StageFile(ctx, s.store, ext, func(ctx context.Context, path string) error {
				return s.extractor.DownloadToFile(ctx, url, path, withStrategy(args, st))
			})
		})
}

// PlaylistInfo lists a playlist with placeholder entries removed.
func (s *Service) PlaylistInfo(ctx context.Context, url string) (*domain.PlaylistMetadata, error) {
	j, err := s.newJob(ctx, domain.PlatformYouTube, "playlist-info")
	if err != nil {
		return nil, err
	}
	if err := j.variant.ValidatePlaylist(url); err != nil {
		return nil, err
	}
	j.log.Info("listing playlist", "url", url)

	meta, err := s.listPlaylist(ctx, j, url)
	if err != nil {
		j.log.Error("playlist listing failed", "err", err.Error())
		return nil, err
	}
	j.log.Info("playlist ready", "title", meta.Title, "videos", len(meta.Videos))
	return meta, nil
}

func (s *Service) listPlaylist(ctx context.Context, j *job, url string) (*domain.PlaylistMetadata, error) {
	base := j.variant.InfoArgs()
	raw, err := fallback.Run(ctx, j.runner, j.variant.FallbackChain(),
		func(ctx context.Context, st fallback.Strategy) ([]domain.RawPlaylistEntry, error) {
			return s.extractor.FetchPlaylist(ctx, url, withStrategy(base, st))
		})
	if err != nil {
		return nil, err
	}
	meta := playlist.Build(raw)
	return &meta, nil
}

// PlaylistRequest selects what a playlist archive contains.
type PlaylistRequest struct {
	URL       string
	MediaType domain.MediaType
	Height    int
	// Selected holds display indexes. Nil means the whole playlist up to
	// the assembler's limit.
	Selected []int
}

// Archive is a prepared playlist download whose entries are fetched
// while it is written.
type Archive struct {
	Title   string
	Entries []domain.PlaylistEntry
	write   func(ctx context.Context, w io.Writer) (batch.Report, error)
}

// WriteTo streams the archive. It returns once every entry was attempted.
func (a *Archive) WriteTo(ctx context.Context, w io.Writer) (batch.Report, error) {
	return a.write(ctx, w)
}

// PreparePlaylist validates req and lists the playlist so that listing
// failures surface before any archive byte is written.
func (s *Service) PreparePlaylist(ctx context.Context, req PlaylistRequest) (*Archive, error) {
	j, err := s.newJob(ctx, domain.PlatformYouTube, "playlist-download")
	if err != nil {
		return nil, err
	}
	if err := j.variant.ValidatePlaylist(req.URL); err != nil {
		return nil, err
	}
	if req.Selected != nil && len(req.Selected) == 0 {
		return nil, domain.Invalid("selectedIndices", "No videos selected")
	}
	if req.Height != 0 && !domain.HeightInRange(req.Height) {
		return nil, domain.Invalid("height", "Invalid quality height")
	}

	meta, err := s.listPlaylist(ctx, j, req.URL)
	if err != nil {
		j.log.Error("playlist listing failed", "err", err.Error())
		return nil, err
	}
	entries := s.assembler.Cap(meta.Videos)
	if req.Selected != nil {
		entries = batch.Select(meta.Videos, req.Selected)
	}
	if len(entries) == 0 {
		return nil, domain.Invalid("selectedIndices", "No valid videos to download")
	}

	args := j.variant.MediaArgs(req.MediaType, req.Height)
	ext := req.MediaType.Ext()
	fetch := func(ctx context.Context, e domain.PlaylistEntry, path string) error {
		_, err := fallback.Run(ctx, j.runner, j.variant.FallbackChain(),
			func(ctx context.Context, st fallback.Strategy) (struct{}, error) {
				err := s.extractor.DownloadToFile(ctx, e.URL, path, withStrategy(args, st))
				if err != nil {
					// the next strategy must start from an empty path
					if rmErr := s.store.RemoveAll(path); rmErr != nil {
						j.log.Warn("removing failed attempt", "path", path, "err", rmErr.Error())
					}
				}
				return struct{}{}, err
			})
		return err
	}

	j.log.Info("playlist archive prepared", "title", meta.Title, "entries", len(entries), "type", string(req.MediaType))
	return &Archive{
		Title:   meta.Title,
		Entries: entries,
		write: func(ctx context.Context, w io.Writer) (batch.Report, error) {
			report, err := s.assembler.Build(ctx, w, entries, ext, fetch)
			if err != nil {
				j.log.Error("playlist archive aborted", "err", err.Error(), "added", len(report.Added))
			}
			return report, err
		},
	}, nil
}

// PlaylistZip lists the playlist and writes its archive to w.
func (s *Service) PlaylistZip(ctx context.Context, w io.Writer, req PlaylistRequest) (batch.Report, error) {
	archive, err := s.PreparePlaylist(ctx, req)
	if err != nil {
		return batch.Report{}, err
	}
	return archive.WriteTo(ctx, w)
}

// withStrategy appends the strategy's arguments after the base set.
func withStrategy(base []string, st fallback.Strategy) []string {
	out := make([]string, 0, len(base)+len(st.Args))
	out = append(out, base...)
	return append(out, st.Args...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
