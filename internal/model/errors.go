package model

import (
	"fmt"
	"net/http"
	"time"
)

// HTTPError carries the status of a failed board or page request.
type HTTPError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration // zero when the server sent no Retry-After
	Err        error
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("HTTP %d", e.StatusCode)
	if e.URL != "" {
		msg += " from " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Transient reports whether the status is worth another attempt (429 or 5xx).
func (e *HTTPError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
