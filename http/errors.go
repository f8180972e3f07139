package http

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError indicates the server rate limited the request (429 or 503).
type RateLimitError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// URL is the request URL.
	URL string
	// RetryAfter is how long the server asked us to wait.
	RetryAfter time.Duration
}

// Error returns a string representation of the rate limit error.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// HTTPError indicates a non-2xx response.
type HTTPError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// URL is the request URL.
	URL string
	// Body is the response body.
	Body []byte
}

// Error returns a string representation of the HTTP error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// IsHTTPError reports whether err carries an error status from the server,
// rate limiting included.
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	var rlErr *RateLimitError
	return errors.As(err, &httpErr) || errors.As(err, &rlErr)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.StatusCode
	}
	return 0
}

// ErrNoResponse indicates no response was received from the server.
var ErrNoResponse = errors.New("no response received")
