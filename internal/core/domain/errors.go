package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput indicates a malformed or missing request parameter.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExtractionFailed indicates yt-dlp exited non-zero.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrParseFailed indicates yt-dlp succeeded but its metadata was unreadable.
	ErrParseFailed = errors.New("failed to parse video info")
	// ErrAllStrategiesExhausted indicates every fallback strategy was rejected.
	ErrAllStrategiesExhausted = errors.New("all extraction strategies failed")
	// ErrDeliveryFailed indicates a stream or temp file I/O failure.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrExtractorUnavailable indicates the yt-dlp executable could not be run.
	ErrExtractorUnavailable = errors.New("yt-dlp is not installed")
	// ErrNoFormats indicates the source offered nothing downloadable.
	ErrNoFormats = errors.New("no downloadable formats found")
)

// Reasons attached to an ExtractionError after classifying stderr.
var (
	ErrLoginRequired = errors.New("video is private or requires login")
	ErrRestricted    = errors.New("access forbidden (age-restricted or geo-blocked)")
	ErrUnavailable   = errors.New("video is not available or has been removed")
	ErrRateLimited   = errors.New("rate limited by platform")
)

// ExtractionError is a non-zero yt-dlp exit. It matches both
// ErrExtractionFailed and its Reason under errors.Is.
type ExtractionError struct {
	Stderr   string
	ExitCode int
	Reason   error
}

func (e *ExtractionError) Error() string {
	msg := lastLine(e.Stderr)
	if e.Reason != nil {
		if msg == "" {
			return fmt.Sprintf("yt-dlp exited with code %d: %v", e.ExitCode, e.Reason)
		}
		return fmt.Sprintf("yt-dlp exited with code %d: %v: %s", e.ExitCode, e.Reason, msg)
	}
	if msg == "" {
		return fmt.Sprintf("yt-dlp exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("yt-dlp exited with code %d: %s", e.ExitCode, msg)
}

func (e *ExtractionError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrExtractionFailed}
	}
	return []error{ErrExtractionFailed, e.Reason}
}

// InputError reports which request field was rejected.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Invalid builds an InputError for field.
func Invalid(field, message string) error {
	return &InputError{Field: field, Message: message}
}

// lastLine returns the last non-empty line of s, which for yt-dlp is
// normally the "ERROR: ..." summary.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
