// Package delivery moves media produced by yt-dlp to a client, either by
// piping the process output directly or by staging it in a temp file.
// Both forms are scoped resources: Close releases the child process and
// the temp file on every path.
package delivery

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"socialdownloader/internal/core/domain"
)

// Payload is a prepared media body.
type Payload interface {
	// ContentLength is the body size in bytes, or -1 when unknown.
	ContentLength() int64
	// WriteTo copies the body to w. Once it has started, failures can
	// only truncate the body.
	WriteTo(w io.Writer) (int64, error)
	// BytesWritten reports how much of the body reached w so far.
	BytesWritten() int64
	// Close releases the process and any temp file. It is safe to call
	// more than once.
	Close() error
}

// Error is a stream or temp file failure. It matches
// domain.ErrDeliveryFailed and the underlying cause.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("delivery failed during %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() []error { return []error{domain.ErrDeliveryFailed, e.Err} }

var errNoOutput = errors.New("extractor produced no output")

// MaxFilenameLength caps sanitized download names, extension excluded.
const MaxFilenameLength = 200

// SanitizeFilename makes name safe for a Content-Disposition header.
// Anything outside [A-Za-z0-9._-] becomes '_', which removes control
// characters, quotes and path separators. An existing ext suffix is not
// duplicated.
func SanitizeFilename(name, fallback, ext string) string {
	suffix := "." + ext
	name = strings.TrimSpace(name)
	if len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		name = name[:len(name)-len(suffix)]
	}

	var b strings.Builder
	for _, r := range name {
		if r < utf8.RuneSelf && (r == '.' || r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	clean := strings.TrimLeft(b.String(), ".")
	if strings.Trim(clean, "_") == "" {
		clean = fallback
	}
	if len(clean) > MaxFilenameLength {
		clean = clean[:MaxFilenameLength]
	}
	return clean + suffix
}

// ContentDisposition formats an attachment header for a sanitized name.
func ContentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// flushWriter flushes after every write so clients see progress while the
// extractor is still running.
type flushWriter struct {
	w io.Writer
	f http.Flusher
}

func newFlushWriter(w io.Writer) io.Writer {
	if f, ok := w.(http.Flusher); ok {
		return &flushWriter{w: w, f: f}
	}
	return w
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if n > 0 {
		fw.f.Flush()
	}
	return n, err
}

// countingWriter tracks bytes that reached the underlying writer.
type countingWriter struct {
	w io.Writer
	n *int64
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}
