// Package tube wraps the YouTube Data API v3 for the uploader: video
// insertion with chunked media and progress, deletion, category listing,
// and scheduled-video queries. The google.golang.org/api client owns the
// wire protocol (resumable upload, retry); this package owns request
// shaping and error classification.
package tube

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for API failure classification.
// Use errors.Is(err, tube.ErrQuotaExceeded) to check.
var (
	ErrQuotaExceeded = errors.New("tube: daily API quota exceeded")
	ErrUnauthorized  = errors.New("tube: unauthorized (token rejected)")
	ErrForbidden     = errors.New("tube: forbidden")
	ErrNotFound      = errors.New("tube: not found")
)

// APIError wraps a sentinel with the HTTP status and the API's reason code
// for debugging. The reason distinguishes quotaExceeded from other 403s.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tube: HTTP %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}

	return fmt.Sprintf("tube: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyErr maps a googleapi error to an APIError with a sentinel.
// Non-API errors (network, context) pass through unchanged.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}

	return &APIError{
		StatusCode: gerr.Code,
		Reason:     reason,
		Message:    gerr.Message,
		Err:        sentinelFor(gerr.Code, reason),
	}
}

// sentinelFor picks the sentinel for a status code and API reason.
// quotaExceeded arrives as 403, so the reason is checked first.
func sentinelFor(code int, reason string) error {
	switch reason {
	case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
		return ErrQuotaExceeded
	}

	switch code {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	default:
		return nil
	}
}
