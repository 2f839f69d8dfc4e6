package ytdlp

import (
	"context"
	"io"
	"os/exec"
	"sync"
)

// stream is a running yt-dlp process writing media to stdout.
type stream struct {
	ctx    context.Context
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer

	once    sync.Once
	waitErr error
}

func (s *stream) Read(p []byte) (int, error) { return s.stdout.Read(p) }

// Wait reaps the process once stdout has been drained.
func (s *stream) Wait() error {
	s.once.Do(func() {
		s.waitErr = exitError(s.ctx, s.cmd.Wait(), s.stderr.String())
	})
	return s.waitErr
}

// Kill terminates the process group and reaps it. Killing an already
// exited process is not an error.
func (s *stream) Kill() error {
	if s.cmd.ProcessState == nil {
		_ = killProcess(s.cmd)
	}
	_ = s.stdout.Close()
	s.once.Do(func() {
		err := s.cmd.Wait()
		if err != nil {
			s.waitErr = exitError(s.ctx, err, s.stderr.String())
		}
	})
	return nil
}

// tailBuffer keeps the last max bytes written to it. yt-dlp prints
// progress to stderr for the whole download, and only the tail carries
// the error summary.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
