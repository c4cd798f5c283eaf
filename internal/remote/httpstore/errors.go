package httpstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/gridsync/internal/remote"
)

// StatusError is a non-2xx response from the batch API.
type StatusError struct {
	// Endpoint is the batch endpoint that failed (e.g. "batch-update").
	Endpoint string

	// StatusCode is the HTTP status.
	StatusCode int

	// Code and Message come from the JSON error body, when there is one.
	Code    string
	Message string

	// Body is the raw response body when it was not a JSON error body.
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: server returned status %d: %s: %s", e.Endpoint, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: server returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap maps well-known error codes back to the remote sentinels, so
// errors.Is(err, remote.ErrNotFound) holds across the wire.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case remote.CodeNotFound:
		return remote.ErrNotFound
	case remote.CodeInvalidBatch:
		return remote.ErrInvalidBatch
	}
	return nil
}

// IsStatus reports whether err wraps a StatusError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == status
	}
	return false
}

// IsUnauthorized reports whether the server rejected the credentials.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

func newStatusError(endpoint string, status int, raw []byte) *StatusError {
	se := &StatusError{Endpoint: endpoint, StatusCode: status}

	var body remote.ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		se.Code = body.Error
		se.Message = body.Message
		return se
	}
	se.Body = string(raw)
	return se
}
