package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"socialdownloader/internal/core/domain"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	status  int
	Success bool   `json:"success"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *ErrorBody) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *ErrorBody) GetStatus() int { return e.status }

func init() {
	// Errors raised by huma itself, such as request validation, use the
	// same envelope as the handlers' errors.
	huma.NewError = newError
}

func newError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	details := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}
	return &ErrorBody{status: status, Message: msg, Details: strings.Join(details, "; ")}
}

var classes = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrInvalidInput, http.StatusBadRequest, "Invalid request"},
	{domain.ErrExtractorUnavailable, http.StatusServiceUnavailable, "Video extraction service is not available"},
	{domain.ErrLoginRequired, http.StatusForbidden, "This video is private or requires login"},
	{domain.ErrRestricted, http.StatusForbidden, "Access forbidden (age-restricted or geo-blocked)"},
	{domain.ErrNoFormats, http.StatusNotFound, "No downloadable formats found for this video"},
	{domain.ErrUnavailable, http.StatusNotFound, "This video is not available or has been removed"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "Too many requests to the platform, please try again later"},
	{domain.ErrAllStrategiesExhausted, http.StatusTooManyRequests, "All download strategies failed, please try again later"},
	{domain.ErrParseFailed, http.StatusInternalServerError, "Failed to parse video info"},
	{domain.ErrDeliveryFailed, http.StatusInternalServerError, "Download failed"},
}

// toAPIError maps a service error onto a status and the response error.
// Classified reasons are checked before the fallback exhaustion they are
// usually wrapped in.
func toAPIError(err error) (int, *ErrorBody) {
	var body *ErrorBody
	if errors.As(err, &body) {
		return body.status, body
	}

	var input *domain.InputError
	if errors.As(err, &input) {
		return http.StatusBadRequest, &ErrorBody{status: http.StatusBadRequest, Message: input.Message}
	}

	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.status, &ErrorBody{status: c.status, Message: c.message, Details: err.Error()}
		}
	}
	return http.StatusInternalServerError, &ErrorBody{
		status:  http.StatusInternalServerError,
		Message: "Failed to process video",
		Details: err.Error(),
	}
}

// writeJSONError writes an error envelope outside of huma, for routes
// that never reach an operation.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&ErrorBody{Message: msg})
}
