package delivery

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"socialdownloader/internal/adapters/localstorage"
	"socialdownloader/internal/core/domain"
)

type fakeStream struct {
	r       *strings.Reader
	waitErr error
	killed  bool
	waited  bool
}

func newFakeStream(data string, waitErr error) *fakeStream {
	return &fakeStream{r: strings.NewReader(data), waitErr: waitErr}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if s.killed {
		return 0, os.ErrClosed
	}
	return s.r.Read(p)
}

func (s *fakeStream) Wait() error {
	s.waited = true
	return s.waitErr
}

func (s *fakeStream) Kill() error {
	s.killed = true
	return nil
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("connection reset by peer")
	}
	w.after--
	return len(p), nil
}

func TestPipeCompletes(t *testing.T) {
	s := newFakeStream("hello world", nil)
	p, err := OpenPipe(s, 11)
	if err != nil {
		t.Fatalf("OpenPipe() error = %v", err)
	}
	if p.State() != PipeSpawned || p.ContentLength() != 11 {
		t.Fatalf("OpenPipe() state = %v length = %d", p.State(), p.ContentLength())
	}

	rec := httptest.NewRecorder()
	n, err := p.WriteTo(rec)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if n != 11 || rec.Body.String() != "hello world" || p.BytesWritten() != 11 {
		t.Fatalf("WriteTo() = %d, body %q", n, rec.Body.String())
	}
	if !rec.Flushed {
		t.Fatalf("response was not flushed")
	}
	if p.State() != PipeCompleted {
		t.Fatalf("state = %v, want %v", p.State(), PipeCompleted)
	}
	_ = p.Close()
	if s.killed {
		t.Fatalf("completed pipe killed the process on Close")
	}
}

func TestOpenPipeReportsEarlyFailure(t *testing.T) {
	exitErr := &domain.ExtractionError{ExitCode: 1, Reason: domain.ErrLoginRequired}
	_, err := OpenPipe(newFakeStream("", exitErr), -1)
	if !errors.Is(err, domain.ErrLoginRequired) {
		t.Fatalf("OpenPipe() error = %v, want %v", err, domain.ErrLoginRequired)
	}

	_, err = OpenPipe(newFakeStream("", nil), -1)
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("OpenPipe(empty, exit 0) error = %v, want %v", err, domain.ErrDeliveryFailed)
	}
}

func TestPipeAbortsOnClientDisconnect(t *testing.T) {
	s := newFakeStream(strings.Repeat("x", 3*firstChunk), nil)
	p, err := OpenPipe(s, -1)
	if err != nil {
		t.Fatalf("OpenPipe() error = %v", err)
	}
	_, err = p.WriteTo(&failingWriter{after: 1})
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("WriteTo() error = %v, want %v", err, domain.ErrDeliveryFailed)
	}
	if !s.killed {
		t.Fatalf("process not killed after client disconnect")
	}
	if p.State() != PipeAborted {
		t.Fatalf("state = %v, want %v", p.State(), PipeAborted)
	}
}

func TestPipeAbortsOnExitError(t *testing.T) {
	s := newFakeStream("partial", &domain.ExtractionError{ExitCode: 1})
	p, err := OpenPipe(s, -1)
	if err != nil {
		t.Fatalf("OpenPipe() error = %v", err)
	}
	var buf bytes.Buffer
	_, err = p.WriteTo(&buf)
	if !errors.Is(err, domain.ErrExtractionFailed) || !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if buf.String() != "partial" || p.State() != PipeAborted {
		t.Fatalf("body %q state %v", buf.String(), p.State())
	}
}

func TestPipeCloseBeforeStreaming(t *testing.T) {
	s := newFakeStream("data", nil)
	p, err := OpenPipe(s, -1)
	if err != nil {
		t.Fatalf("OpenPipe() error = %v", err)
	}
	_ = p.Close()
	if !s.killed || p.State() != PipeAborted {
		t.Fatalf("Close() killed=%v state=%v", s.killed, p.State())
	}
}

func TestStageFileServesAndCleans(t *testing.T) {
	store := localstorage.NewLocalStorage(t.TempDir())
	f, err := StageFile(context.Background(), store, "mp4", func(_ context.Context, path string) error {
		return os.WriteFile(path, []byte("merged-mp4"), 0o644)
	})
	if err != nil {
		t.Fatalf("StageFile() error = %v", err)
	}
	if f.State() != FileStaged || f.ContentLength() != int64(len("merged-mp4")) {
		t.Fatalf("state %v length %d", f.State(), f.ContentLength())
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if buf.String() != "merged-mp4" || f.State() != FileServing {
		t.Fatalf("body %q state %v", buf.String(), f.State())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Fatalf("temp file still present: %v", err)
	}
	if f.State() != FileCleaned {
		t.Fatalf("state = %v, want %v", f.State(), FileCleaned)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestStageFileFailuresRemoveTempFile(t *testing.T) {
	store := localstorage.NewLocalStorage(t.TempDir())
	extractErr := &domain.ExtractionError{ExitCode: 1}

	tests := []struct {
		name     string
		download Downloader
		want     error
	}{
		{
			name: "extractor error",
			download: func(_ context.Context, path string) error {
				_ = os.WriteFile(path+".part", []byte("half"), 0o644)
				return extractErr
			},
			want: domain.ErrExtractionFailed,
		},
		{
			name: "empty file",
			download: func(_ context.Context, path string) error {
				return os.WriteFile(path, nil, 0o644)
			},
			want: domain.ErrDeliveryFailed,
		},
		{
			name:     "no file",
			download: func(context.Context, string) error { return nil },
			want:     domain.ErrDeliveryFailed,
		},
		{
			name: "cancelled",
			download: func(_ context.Context, path string) error {
				_ = os.WriteFile(path, []byte("partial"), 0o644)
				return context.Canceled
			},
			want: context.Canceled,
		},
		{
			name: "cancelled before merge",
			download: func(_ context.Context, path string) error {
				stem := strings.TrimSuffix(path, filepath.Ext(path))
				_ = os.WriteFile(stem+".f137.mp4.part", []byte("video"), 0o644)
				_ = os.WriteFile(stem+".f140.m4a", []byte("audio"), 0o644)
				return context.Canceled
			},
			want: context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var staged string
			_, err := StageFile(context.Background(), store, "mp4", func(ctx context.Context, path string) error {
				staged = path
				return tt.download(ctx, path)
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("StageFile() error = %v, want %v", err, tt.want)
			}
			if left, _ := filepath.Glob(filepath.Join(store.BaseDir, "*")); len(left) != 0 {
				t.Fatalf("temp files left behind for %s: %v", filepath.Base(staged), left)
			}
		})
	}
}

func TestCloseAfterFailedServe(t *testing.T) {
	store := localstorage.NewLocalStorage(t.TempDir())
	f, err := StageFile(context.Background(), store, "mp4", func(_ context.Context, path string) error {
		return os.WriteFile(path, bytes.Repeat([]byte("v"), 1<<16), 0o644)
	})
	if err != nil {
		t.Fatalf("StageFile() error = %v", err)
	}
	if _, err := f.WriteTo(&failingWriter{}); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("WriteTo() error = %v, want %v", err, domain.ErrDeliveryFailed)
	}
	_ = f.Close()
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Fatalf("temp file still present after failed serve: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name, fallback, ext string
		want                string
	}{
		{"My Video", "facebook-video", "mp4", "My_Video.mp4"},
		{"clip.mp4", "x", "mp4", "clip.mp4"},
		{"../../etc/passwd", "x", "mp4", "_.._etc_passwd.mp4"},
		{"a\r\nContent-Type: evil", "x", "mp3", "a__Content-Type__evil.mp3"},
		{"say \"hi\"", "x", "mp4", "say__hi_.mp4"},
		{"", "facebook-audio", "mp3", "facebook-audio.mp3"},
		{"日本語", "fallback", "mp4", "fallback.mp4"},
		{strings.Repeat("a", 300), "x", "mp4", strings.Repeat("a", MaxFilenameLength) + ".mp4"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.name, tt.fallback, tt.ext); got != tt.want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestContentDisposition(t *testing.T) {
	if got, want := ContentDisposition("a.mp4"), `attachment; filename="a.mp4"`; got != want {
		t.Fatalf("ContentDisposition() = %q, want %q", got, want)
	}
}
