package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/core/ports"
)

// waitDelay bounds how long Wait blocks on pipes still held open by
// grandchildren (ffmpeg) after the process has been killed.
const waitDelay = 5 * time.Second

// maxLine is the largest single JSON line accepted from a playlist dump.
const maxLine = 4 << 20

// Invoker runs a resolved yt-dlp executable. It implements ports.Extractor.
type Invoker struct {
	binaryPath string
	logger     *slog.Logger
}

// NewInvoker creates an Invoker for the executable returned by Locate.
func NewInvoker(binaryPath string, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{binaryPath: binaryPath, logger: logger}
}

// BinaryPath returns the executable this invoker spawns.
func (d *Invoker) BinaryPath() string { return d.binaryPath }

func (d *Invoker) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, d.binaryPath, args...)
	configureKill(cmd)
	cmd.WaitDelay = waitDelay
	return cmd
}

// FetchMetadata runs --dump-json and decodes the single resulting document.
func (d *Invoker) FetchMetadata(ctx context.Context, url string, args []string) (*domain.RawMetadata, error) {
	stdout, err := d.run(ctx, join(url, metadataArgs(), args))
	if err != nil && len(bytes.TrimSpace(stdout)) == 0 {
		return nil, err
	}

	var meta domain.RawMetadata
	if jsonErr := json.Unmarshal(firstLine(stdout), &meta); jsonErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, jsonErr)
	}
	return &meta, nil
}

// FetchPlaylist runs --flat-playlist and decodes one entry per stdout line.
// Lines that are not valid JSON are skipped. The call fails only when the
// process exits non-zero without having produced any entry.
func (d *Invoker) FetchPlaylist(ctx context.Context, url string, args []string) ([]domain.RawPlaylistEntry, error) {
	cmd := d.command(ctx, join(url, playlistArgs(), args))
	stderr := newTailBuffer(64 << 10)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractorUnavailable, err)
	}

	var entries []domain.RawPlaylistEntry
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64<<10), maxLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e domain.RawPlaylistEntry
		if err := json.Unmarshal(line, &e); err != nil {
			d.logger.Debug("skipping malformed playlist line", "err", err.Error())
			continue
		}
		entries = append(entries, e)
	}
	scanErr := scanner.Err()

	waitErr := exitError(ctx, cmd.Wait(), stderr.String())
	if ctx.Err() != nil {
		return nil, waitErr
	}
	if len(entries) == 0 {
		if waitErr != nil {
			return nil, waitErr
		}
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, scanErr)
		}
	}
	return entries, nil
}

// OpenStream starts yt-dlp writing media to stdout. The returned stream
// owns the process.
func (d *Invoker) OpenStream(ctx context.Context, url string, args []string) (ports.MediaStream, error) {
	cmd := d.command(ctx, join(url, args, streamArgs()))
	stderr := newTailBuffer(64 << 10)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractorUnavailable, err)
	}
	d.logger.Debug("spawned yt-dlp stream", "pid", cmd.Process.Pid)
	return &stream{ctx: ctx, cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// DownloadToFile runs yt-dlp with path as the output template. The caller
// owns path, including any partial file left after a failure.
func (d *Invoker) DownloadToFile(ctx context.Context, url, path string, args []string) error {
	_, err := d.run(ctx, join(url, args, fileArgs(path)))
	return err
}

// LookupSize prints the exact size of the selected format without
// downloading. Estimates are not reported.
func (d *Invoker) LookupSize(ctx context.Context, url string, args []string) (int64, bool) {
	stdout, err := d.run(ctx, join(url, args, sizeArgs()))
	if err != nil {
		d.logger.Debug("size lookup failed", "err", err.Error())
		return 0, false
	}
	return parseSize(string(stdout))
}

func (d *Invoker) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := d.command(ctx, args)
	var stdout bytes.Buffer
	stderr := newTailBuffer(64 << 10)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractorUnavailable, err)
	}
	err := exitError(ctx, cmd.Wait(), stderr.String())
	return stdout.Bytes(), err
}

// exitError converts the result of cmd.Wait into the domain taxonomy.
func exitError(ctx context.Context, err error, stderr string) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("yt-dlp interrupted: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &domain.ExtractionError{
			Stderr:   stderr,
			ExitCode: exitErr.ExitCode(),
			Reason:   Classify(stderr),
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
}

func firstLine(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}

// parseSize reads the first integer printed by --print. yt-dlp prints
// "NA" when neither size field is known.
func parseSize(out string) (int64, bool) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	if line == "" || line == "NA" {
		return 0, false
	}
	f, err := strconv.ParseFloat(line, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int64(f), true
}
