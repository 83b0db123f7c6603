// Package classroom provides an HTTP client for the Google Classroom REST API
// with automatic retry, cursor pagination, and error classification.
package classroom

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, classroom.ErrConflict) to check.
var (
	ErrBadRequest   = errors.New("classroom: bad request")
	ErrUnauthorized = errors.New("classroom: unauthorized")
	ErrForbidden    = errors.New("classroom: forbidden")
	ErrNotFound     = errors.New("classroom: not found")
	ErrConflict     = errors.New("classroom: conflict")
	ErrThrottled    = errors.New("classroom: throttled")
	ErrServerError  = errors.New("classroom: server error")

	// ErrTransport marks failures below HTTP: DNS, refused connections,
	// resets, TLS. Never wrapped by a RemoteError.
	ErrTransport = errors.New("classroom: transport failure")
)

// RemoteError is a non-2xx response from the API. It wraps a sentinel
// error for errors.Is() and keeps the decoded API status and message.
type RemoteError struct {
	StatusCode int
	Status     string // API status string, e.g. "ALREADY_EXISTS"
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *RemoteError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("classroom: HTTP %d %s: %s", e.StatusCode, e.Status, e.Message)
	}

	return fmt.Sprintf("classroom: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a 409 from the API. Create endpoints
// use 409 to mean "already exists", which callers usually treat as success.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// apiErrorBody mirrors the Google API error envelope.
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// newRemoteError builds a RemoteError from a status code and raw body.
// Falls back to the raw body text when it is not the standard envelope.
func newRemoteError(code int, body []byte) *RemoteError {
	re := &RemoteError{
		StatusCode: code,
		Message:    string(body),
		Err:        classifyStatus(code),
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		re.Message = parsed.Error.Message
		re.Status = parsed.Error.Status
	}

	return re
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes with no dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
