// Package batch downloads playlist entries one after another and streams
// them into a single ZIP archive.
package batch

import (
	"archive/zip"
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/core/ports"
	"socialdownloader/internal/delivery"
)

const (
	// DefaultLimit caps how many entries a full-playlist archive holds.
	DefaultLimit = 50
	// maxSlugLength caps the title part of a member name.
	maxSlugLength    = 50
	compressionLevel = 5
)

// ItemFetcher downloads one entry into path, running whatever fallback
// chain the caller needs.
type ItemFetcher func(ctx context.Context, entry domain.PlaylistEntry, path string) error

// ItemFailure records an entry that was skipped.
type ItemFailure struct {
	Index int
	Title string
	Err   error
}

// Report summarizes an archive.
type Report struct {
	Added  []string
	Failed []ItemFailure
}

// Assembler builds playlist archives.
type Assembler struct {
	Store  ports.TempStore
	Logger *slog.Logger
	// Limit caps full-playlist downloads. Zero means DefaultLimit.
	Limit int
}

// NewAssembler returns an Assembler staging items in store.
func NewAssembler(store ports.TempStore, limit int, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{Store: store, Logger: logger, Limit: limit}
}

// Cap truncates entries to the configured limit.
func (a *Assembler) Cap(entries []domain.PlaylistEntry) []domain.PlaylistEntry {
	limit := a.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

// Build downloads entries in order and writes them to w as a ZIP archive.
// Entries that fail are logged and skipped. The archive is finalized after
// every entry was attempted, even if none succeeded. A cancelled ctx or a
// failing w ends the archive early with an error.
func (a *Assembler) Build(
	ctx context.Context,
	w io.Writer,
	entries []domain.PlaylistEntry,
	ext string,
	fetch ItemFetcher,
) (Report, error) {
	var report Report
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, compressionLevel)
	})

	width := indexWidth(entries)
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := MemberName(entry, width, ext)
		a.Logger.Info("adding playlist item",
			"item", i+1, "of", len(entries), "index", entry.Index, "title", entry.Title)

		err := a.add(ctx, zw, name, entry, ext, fetch)
		switch {
		case err == nil:
			report.Added = append(report.Added, name)
		case ctx.Err() != nil:
			return report, ctx.Err()
		case isWriteError(err):
			return report, err
		default:
			a.Logger.Warn("skipping playlist item", "index", entry.Index, "title", entry.Title, "err", err.Error())
			report.Failed = append(report.Failed, ItemFailure{Index: entry.Index, Title: entry.Title, Err: err})
		}
	}

	if err := zw.Close(); err != nil {
		return report, &delivery.Error{Stage: "finalize", Err: err}
	}
	a.Logger.Info("playlist archive finalized", "added", len(report.Added), "failed", len(report.Failed))
	return report, nil
}

// writeError marks failures of the archive stream itself, which end the
// whole batch.
type writeError struct{ err error }

func (e writeError) Error() string { return "writing archive: " + e.err.Error() }

func (e writeError) Unwrap() error { return e.err }

func isWriteError(err error) bool {
	var we writeError
	return errors.As(err, &we)
}

func (a *Assembler) add(
	ctx context.Context,
	zw *zip.Writer,
	name string,
	entry domain.PlaylistEntry,
	ext string,
	fetch ItemFetcher,
) error {
	file, err := delivery.StageFile(ctx, a.Store, ext, func(ctx context.Context, path string) error {
		return fetch(ctx, entry, path)
	})
	if err != nil {
		return err
	}
	defer file.Close()

	member, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return writeError{err}
	}
	// A member that was started cannot be skipped any more.
	if _, err := file.WriteTo(member); err != nil {
		return writeError{err}
	}
	return nil
}

// MemberName builds "<index>_<slug>.<ext>", zero-padding the display index
// to width digits.
func MemberName(entry domain.PlaylistEntry, width int, ext string) string {
	title := slug.Make(entry.Title)
	if len(title) > maxSlugLength {
		title = strings.TrimRight(title[:maxSlugLength], "-_")
	}
	if title == "" {
		title = "video_" + strconv.Itoa(entry.Index)
	}
	return fmt.Sprintf("%0*d_%s.%s", width, entry.Index, title, ext)
}

func indexWidth(entries []domain.PlaylistEntry) int {
	width := 2
	for _, e := range entries {
		if n := len(strconv.Itoa(e.Index)); n > width {
			width = n
		}
	}
	return width
}

// Select returns the entries whose display index is listed, in the order
// of indices. Unknown and repeated indices are ignored.
func Select(entries []domain.PlaylistEntry, indices []int) []domain.PlaylistEntry {
	byIndex := make(map[int]domain.PlaylistEntry, len(entries))
	for _, e := range entries {
		byIndex[e.Index] = e
	}
	seen := make(map[int]bool, len(indices))
	out := make([]domain.PlaylistEntry, 0, len(indices))
	for _, idx := range indices {
		e, ok := byIndex[idx]
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, e)
	}
	return out
}
