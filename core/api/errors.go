package api

import (
	"errors"
	"fmt"
)

// Backend error codes the flows map to distinct user-facing failures.
const (
	CodeInstanceForbidden = "instance_forbidden"
	CodeConnectionFailed  = "connection_failed"
)

// ErrDecodeResponse indicates a 2xx response whose body could not be parsed.
var ErrDecodeResponse = errors.New("api: failed to decode response body")

// Error is a non-2xx backend response with a decodable JSON body.
type Error struct {
	// Status is the HTTP status code.
	Status int
	// Code is the backend's machine-readable error code, if any.
	Code string
	// Message is the backend's human-readable message, if any.
	Message string
	// HasBody records that the response carried a valid JSON body. Only
	// errors with a valid body count as authoritative (a bare 404 from a
	// mid-deploy proxy must not log anyone out).
	HasBody bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: backend returned %d", e.Status)
}

// DefinitiveAuthFailure reports whether this error is authoritative proof of
// an invalid session: 401, 403, or 404 with a valid body.
func (e *Error) DefinitiveAuthFailure() bool {
	if !e.HasBody {
		return false
	}
	switch e.Status {
	case 401, 403, 404:
		return true
	}
	return false
}

// ErrorCode extracts the backend error code from err, or "".
func ErrorCode(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// ErrorMessage extracts the backend message from err, or "".
func ErrorMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
