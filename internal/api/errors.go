// Package api is the HTTP client for the DriveBox backend contract: OAuth URL
// issuance and code exchange, the connected-provider roster, and the
// per-provider file endpoints. It handles request construction, bearer
// credential attachment, retry with exponential backoff and error
// classification.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, api.ErrUnauthorized) to check.
var (
	ErrBadRequest   = errors.New("api: bad request")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrForbidden    = errors.New("api: forbidden")
	ErrNotFound     = errors.New("api: not found")
	ErrConflict     = errors.New("api: conflict")
	ErrThrottled    = errors.New("api: throttled")
	ErrServerError  = errors.New("api: server error")
)

// APIError wraps a sentinel error with HTTP status code, request ID, and the
// backend's error message.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a sentinel.
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

// errorBody is the backend's JSON error envelope. Either field may be set.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorMessage extracts a readable message from an error response body,
// falling back to the trimmed raw body.
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}

		if eb.Error != "" {
			return eb.Error
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "(empty response body)"
	}

	return msg
}
