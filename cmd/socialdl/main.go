package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"socialdownloader/internal/adapters/cookies"
	"socialdownloader/internal/adapters/httpapi"
	"socialdownloader/internal/adapters/localstorage"
	"socialdownloader/internal/adapters/ytdlp"
	"socialdownloader/internal/batch"
	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/fallback"
	"socialdownloader/internal/platforms"
	"socialdownloader/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := cli.App{
		Name:  "socialdl",
		Usage: "download videos from Facebook, YouTube, Instagram and TikTok",
		Commands: []*cli.Command{{
			Name:   "serve",
			Usage:  "run the HTTP API",
			Action: withDeps(false, serve),
		}, {
			Name:      "info",
			Usage:     "print a video's metadata and formats as JSON",
			ArgsUsage: "<url>",
			Action: withDeps(true, func(rt *deps, c *cli.Context) error {
				url, p, err := urlArg(c)
				if err != nil {
					return err
				}
				meta, err := rt.service.Info(c.Context, domain.MediaRequest{URL: url, Platform: p})
				if err != nil {
					return err
				}
				return printJSON(meta)
			}),
		}, {
			Name:      "playlist",
			Usage:     "print a YouTube playlist's downloadable entries as JSON",
			ArgsUsage: "<url>",
			Action: withDeps(true, func(rt *deps, c *cli.Context) error {
				if c.Args().Len() != 1 {
					return fmt.Errorf("expected exactly one playlist URL")
				}
				meta, err := rt.service.PlaylistInfo(c.Context, strings.TrimSpace(c.Args().First()))
				if err != nil {
					return err
				}
				return printJSON(meta)
			}),
		}, {
			Name:      "download",
			Usage:     "download a video or its audio to a file",
			ArgsUsage: "<url>",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "height",
					Usage: "maximum video height; required for Facebook",
				},
				&cli.BoolFlag{
					Name:  "audio",
					Usage: "extract audio as mp3",
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "destination file; defaults to <platform>_<type>.<ext>",
				},
			},
			Action: withDeps(true, download),
		}},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "socialdl: %v\n", err)
		os.Exit(1)
	}
}

// deps is the wired service graph shared by every command.
type deps struct {
	config  *Config
	logger  *slog.Logger
	store   *localstorage.LocalStorage
	service *service.Service
	jars    map[domain.Platform]string
}

// withDeps loads configuration and wires the service before running
// action. With strict set, a missing yt-dlp fails the command; otherwise
// requests fail individually once they try to spawn it.
func withDeps(strict bool, action func(*deps, *cli.Context) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		rt, err := newDeps(cfg, strict)
		if err != nil {
			return err
		}
		defer rt.removeJars()
		return action(rt, c)
	}
}

func newDeps(cfg *Config, strict bool) (*deps, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	binary, err := ytdlp.Locate(cfg.YtDlpPath)
	if err != nil {
		if strict {
			return nil, err
		}
		logger.Warn("yt-dlp not found, downloads will fail until it is installed", "err", err.Error())
		binary = "yt-dlp"
	} else {
		logger.Info("using yt-dlp", "path", binary)
	}

	store := localstorage.NewLocalStorage(cfg.TempDir)
	if err := store.Init(); err != nil {
		return nil, err
	}
	jars, err := cookies.Provision(store, cfg.CookieJars(), logger)
	if err != nil {
		return nil, err
	}

	runner := &fallback.Runner{Logger: logger}
	if cfg.FallbackInterval > 0 {
		runner.Pacer = rate.NewLimiter(rate.Every(cfg.FallbackInterval), 1)
	}

	return &deps{
		config: cfg,
		logger: logger,
		store:  store,
		jars:   jars,
		service: service.NewService(
			ytdlp.NewInvoker(binary, logger),
			platforms.Defaults().WithCookies(jars),
			runner,
			store,
			batch.NewAssembler(store, cfg.PlaylistLimit, logger),
			logger,
		),
	}, nil
}

func serve(rt *deps, c *cli.Context) error {
	api := httpapi.API{
		Service:         rt.service,
		Logger:          rt.logger,
		Origins:         rt.config.Origins(),
		ShutdownTimeout: rt.config.ShutdownTimeout,
	}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		return api.Run(ctx, rt.config.Addr())
	})
	g.Go(func() error {
		<-ctx.Done()
		rt.removeJars()
		return nil
	})
	return g.Wait()
}

// removeJars deletes the provisioned cookie files on shutdown.
func (rt *deps) removeJars() {
	for p, path := range rt.jars {
		if err := rt.store.Remove(path); err != nil {
			rt.logger.Warn("removing cookie jar", "platform", string(p), "err", err.Error())
		}
	}
}

func download(rt *deps, c *cli.Context) error {
	url, p, err := urlArg(c)
	if err != nil {
		return err
	}
	req := domain.MediaRequest{
		URL:       url,
		Platform:  p,
		Height:    c.Int("height"),
		MediaType: domain.MediaVideo,
	}
	if c.Bool("audio") {
		req.MediaType = domain.MediaAudio
	}

	media, err := rt.service.Download(c.Context, req)
	if err != nil {
		return err
	}
	defer media.Close()

	out := c.String("output")
	if out == "" {
		out = fmt.Sprintf("%s_%s.%s", p, media.Type, media.Type.Ext())
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	n, err := media.WriteTo(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(out); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			rt.logger.Warn("removing partial output", "path", out, "err", rmErr.Error())
		}
		return fmt.Errorf("writing %s: %w", out, err)
	}
	rt.logger.Info("download complete", "path", out, "bytes", n)
	return nil
}

// urlArg reads the single URL argument and detects its platform.
func urlArg(c *cli.Context) (string, domain.Platform, error) {
	if c.Args().Len() != 1 {
		return "", "", fmt.Errorf("expected exactly one URL")
	}
	url := strings.TrimSpace(c.Args().First())
	p, ok := platforms.Detect(url)
	if !ok {
		return "", "", fmt.Errorf("%w: unsupported URL %q", domain.ErrInvalidInput, url)
	}
	return url, p, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output to JSON: %w", err)
	}
	if _, err := fmt.Printf("%s\n", data); err != nil {
		return fmt.Errorf("writing JSON to stdout: %w", err)
	}
	return nil
}
