package delivery

import (
	"errors"
	"io"

	"socialdownloader/internal/core/ports"
)

// PipeState is the lifecycle of a direct pipe.
type PipeState int

const (
	PipeSpawned PipeState = iota
	PipeStreaming
	PipeCompleted
	PipeAborted
)

func (s PipeState) String() string {
	switch s {
	case PipeSpawned:
		return "spawned"
	case PipeStreaming:
		return "streaming"
	case PipeCompleted:
		return "completed"
	case PipeAborted:
		return "aborted"
	}
	return "unknown"
}

// IsFinished reports whether the pipe reached a terminal state.
func (s PipeState) IsFinished() bool { return s == PipeCompleted || s == PipeAborted }

const firstChunk = 32 << 10

// Pipe streams a running extractor's stdout to the client.
type Pipe struct {
	stream  ports.MediaStream
	first   []byte
	size    int64
	state   PipeState
	written int64
}

// OpenPipe blocks until the stream yields its first bytes, so that a
// process failing before any output is reported while the response can
// still carry an error status. size is the expected length or -1.
func OpenPipe(stream ports.MediaStream, size int64) (*Pipe, error) {
	buf := make([]byte, firstChunk)
	var (
		n   int
		err error
	)
	for n == 0 && err == nil {
		n, err = stream.Read(buf)
	}
	if n == 0 {
		if !errors.Is(err, io.EOF) {
			_ = stream.Kill()
			return nil, &Error{Stage: "read", Err: err}
		}
		if werr := stream.Wait(); werr != nil {
			return nil, werr
		}
		return nil, &Error{Stage: "read", Err: errNoOutput}
	}
	if size <= 0 {
		size = -1
	}
	return &Pipe{stream: stream, first: buf[:n], size: size}, nil
}

// State returns the current lifecycle state.
func (p *Pipe) State() PipeState { return p.state }

func (p *Pipe) ContentLength() int64 { return p.size }

// SetContentLength records a size learned after the pipe opened. It has no
// effect once streaming started. Non-positive values mean unknown.
func (p *Pipe) SetContentLength(n int64) {
	if p.state != PipeSpawned {
		return
	}
	if n <= 0 {
		n = -1
	}
	p.size = n
}

func (p *Pipe) BytesWritten() int64 { return p.written }

// WriteTo copies the stream to w until natural EOF and a clean exit
// (Completed), or until any read, write or exit failure (Aborted, child
// killed).
func (p *Pipe) WriteTo(w io.Writer) (int64, error) {
	if p.state != PipeSpawned {
		return 0, &Error{Stage: "write", Err: errors.New("pipe already consumed")}
	}
	p.state = PipeStreaming
	dst := countingWriter{w: newFlushWriter(w), n: &p.written}

	if _, err := dst.Write(p.first); err != nil {
		p.abort()
		return p.written, &Error{Stage: "write", Err: err}
	}
	p.first = nil
	if _, err := io.Copy(dst, p.stream); err != nil {
		p.abort()
		return p.written, &Error{Stage: "write", Err: err}
	}
	if err := p.stream.Wait(); err != nil {
		p.state = PipeAborted
		return p.written, &Error{Stage: "exit", Err: err}
	}
	p.state = PipeCompleted
	return p.written, nil
}

func (p *Pipe) abort() {
	_ = p.stream.Kill()
	p.state = PipeAborted
}

// Close kills the child unless the pipe completed.
func (p *Pipe) Close() error {
	if !p.state.IsFinished() {
		p.abort()
	}
	return nil
}
