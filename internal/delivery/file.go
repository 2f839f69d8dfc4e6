package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"socialdownloader/internal/core/ports"
)

// FileState is the lifecycle of a buffered file delivery.
type FileState int

const (
	FileDownloading FileState = iota
	FileStaged
	FileServing
	FileCleaned
)

func (s FileState) String() string {
	switch s {
	case FileDownloading:
		return "downloading"
	case FileStaged:
		return "staged"
	case FileServing:
		return "serving"
	case FileCleaned:
		return "cleaned"
	}
	return "unknown"
}

// Downloader writes media into path and returns once the extractor exited.
type Downloader func(ctx context.Context, path string) error

// File serves media that was downloaded completely into a temp file.
type File struct {
	store   ports.TempStore
	path    string
	f       *os.File
	size    int64
	state   FileState
	written int64
}

// StageFile downloads into a fresh temp path. The file is Staged only after
// the download succeeded and left a non-empty file. On any failure the temp
// file is removed before returning.
func StageFile(ctx context.Context, store ports.TempStore, ext string, download Downloader) (*File, error) {
	file := &File{store: store, path: store.NewPath(ext), state: FileDownloading}

	if err := download(ctx, file.path); err != nil {
		file.cleanup()
		return nil, err
	}

	info, err := os.Stat(file.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		file.cleanup()
		return nil, &Error{Stage: "stage", Err: fmt.Errorf("no output file: %w", errNoOutput)}
	case err != nil:
		file.cleanup()
		return nil, &Error{Stage: "stage", Err: err}
	case info.Size() == 0:
		file.cleanup()
		return nil, &Error{Stage: "stage", Err: errors.New("downloaded file is empty")}
	}

	f, err := os.Open(file.path)
	if err != nil {
		file.cleanup()
		return nil, &Error{Stage: "stage", Err: err}
	}
	file.f = f
	file.size = info.Size()
	file.state = FileStaged
	return file, nil
}

// Path returns the temp file location.
func (f *File) Path() string { return f.path }

// State returns the current lifecycle state.
func (f *File) State() FileState { return f.state }

func (f *File) ContentLength() int64 { return f.size }

func (f *File) BytesWritten() int64 { return f.written }

// WriteTo serves the staged file.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	if f.state != FileStaged {
		return 0, &Error{Stage: "serve", Err: fmt.Errorf("file is %s", f.state)}
	}
	f.state = FileServing
	_, err := io.Copy(countingWriter{w: w, n: &f.written}, f.f)
	if err != nil {
		return f.written, &Error{Stage: "serve", Err: err}
	}
	return f.written, nil
}

// Close removes the temp file whether or not serving succeeded.
func (f *File) Close() error {
	if f.state == FileCleaned {
		return nil
	}
	var closeErr error
	if f.f != nil {
		closeErr = f.f.Close()
		f.f = nil
	}
	removeErr := f.cleanup()
	if removeErr != nil {
		return removeErr
	}
	return closeErr
}

func (f *File) cleanup() error {
	f.state = FileCleaned
	return f.store.RemoveAll(f.path)
}
