package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrModelUnavailable is returned when retries are exhausted or the
	// backend rejected the request outright.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelTimeout is returned when the final attempt exceeded the per-call timeout.
	ErrModelTimeout = errors.New("model timeout")
)

// BackendError is a non-2xx response from the model backend.
type BackendError struct {
	StatusCode int
	Body       string
	// JSON is set when the full response body was valid JSON, i.e. the
	// backend itself answered. Body may be truncated and no longer parse.
	JSON bool
}

func (e *BackendError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the response is worth retrying. A well-formed
// error from the backend never is. A 429 or 5xx with an empty or non-JSON
// body came from a proxy or load balancer in front of it and is treated
// like a connection failure.
func (e *BackendError) Temporary() bool {
	if e == nil || e.wellFormed() {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *BackendError) wellFormed() bool {
	return e.JSON || json.Valid([]byte(e.Body))
}

// IsPermanentError reports whether err must not be retried.
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		return false
	}
	return !backendErr.Temporary()
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
