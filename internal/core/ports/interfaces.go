package ports

import (
	"context"
	"io"

	"socialdownloader/internal/core/domain"
)

// MediaStream is a running extractor process whose stdout carries media
// bytes. The holder must call Kill or Wait exactly once the stream is no
// longer read.
type MediaStream interface {
	io.Reader

	// Wait blocks until the process exits. It returns a
	// *domain.ExtractionError when the exit code is non-zero.
	Wait() error

	// Kill terminates the process and reaps it.
	Kill() error
}

// Extractor defines the contract for driving the external extraction tool.
// Every call spawns exactly one child process bound to ctx.
type Extractor interface {
	// FetchMetadata dumps the metadata document of a single video.
	FetchMetadata(ctx context.Context, url string, args []string) (*domain.RawMetadata, error)

	// FetchPlaylist lists a playlist's entries without resolving them.
	FetchPlaylist(ctx context.Context, url string, args []string) ([]domain.RawPlaylistEntry, error)

	// OpenStream starts a download that writes media to stdout.
	OpenStream(ctx context.Context, url string, args []string) (MediaStream, error)

	// DownloadToFile downloads media into path and returns once the
	// process has exited.
	DownloadToFile(ctx context.Context, url, path string, args []string) error

	// LookupSize asks for the size of the selected format. The boolean is
	// false when no size is known.
	LookupSize(ctx context.Context, url string, args []string) (int64, bool)
}

// TempStore hands out unique scratch paths shared across requests.
type TempStore interface {
	// NewPath returns an unused path with the given extension. The file is
	// not created.
	NewPath(ext string) string

	// Remove deletes path, ignoring files that no longer exist.
	Remove(path string) error

	// RemoveAll deletes path together with every file sharing its stem,
	// such as the extractor's partial and per-track files.
	RemoveAll(path string) error
}
