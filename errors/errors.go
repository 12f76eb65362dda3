package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	ErrFileTooLarge     = errors.New("file size exceeds maximum allowed size of 2GB")
	ErrInitiationFailed = errors.New("multipart upload initiation failed")
	ErrPartUploadFailed = errors.New("multipart part upload failed")
	ErrCompletionFailed = errors.New("multipart upload completion failed")
	ErrAbortFailed      = errors.New("multipart upload abort failed")

	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrForbidden          = errors.New("admin role required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrFileNotFound       = errors.New("file not found")
	ErrSessionNotFound    = errors.New("upload session not found")
	ErrServiceUnavailable = errors.New("service unavailable")
)

const maxErrorBody = 64 * 1024

// APIError is a non-2xx response from the API, reduced to a readable message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// FromResponse reads resp.Body and builds an APIError from its "error" or
// "message" field. Bodies that are not JSON objects produce a message naming
// the status code. The body is consumed but not closed.
func FromResponse(resp *http.Response) *APIError {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return statusError(resp.StatusCode)
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return statusError(resp.StatusCode)
	}

	msg := body.Error
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = "Request failed"
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func statusError(status int) *APIError {
	return &APIError{
		Status:  status,
		Message: fmt.Sprintf("Request failed with status %d", status),
	}
}
