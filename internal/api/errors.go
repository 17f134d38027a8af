// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	// ErrTypeAuthRequired: 401 from the backend, or a call made without a
	// usable base URL.
	ErrTypeAuthRequired
	// ErrTypeSessionExpired: the backend no longer knows the stored user.
	ErrTypeSessionExpired
	ErrTypeConnection
	ErrTypeTimeout
	// ErrTypeInvalidResponse: a 2xx whose payload failed validation.
	ErrTypeInvalidResponse
	// ErrTypeServer: any other non-2xx. Status and Detail are set.
	ErrTypeServer
	// ErrTypeValidation: 400/422, the backend rejected the request body.
	ErrTypeValidation
)

// String returns a short name for logs.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeAuthRequired:
		return "auth_required"
	case ErrTypeSessionExpired:
		return "session_expired"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeServer:
		return "server"
	case ErrTypeValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string

	// Status, StatusText and Detail are set when the backend answered.
	Status     int
	StatusText string
	Detail     string

	Cause error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches the typed sentinels by type, so errors.Is(err, ErrTimeout)
// holds for every timeout regardless of its message or cause.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	switch t {
	case ErrTimeout, ErrSessionExpired, ErrInvalidResponse:
		return e.Type == t.Type
	}
	return false
}

// Sentinel errors for easy checking.
var (
	ErrTimeout         = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrSessionExpired  = &ClientError{Type: ErrTypeSessionExpired, Message: "User session expired. Please log in again."}
	ErrInvalidResponse = &ClientError{Type: ErrTypeInvalidResponse, Message: "invalid response format"}
	ErrNoBaseURL       = &ClientError{Type: ErrTypeAuthRequired, Message: "backend URL is not configured"}
)

// sessionExpiredDetail is the detail the backend sends for a deleted user.
const sessionExpiredDetail = "User not found"

// =============================================================================
// HELPERS
// =============================================================================

func errorType(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeUnknown
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool { return errorType(err) == ErrTypeTimeout }

// IsConnection reports whether err means the backend could not be reached.
func IsConnection(err error) bool { return errorType(err) == ErrTypeConnection }

// IsSessionExpired reports whether the backend rejected the stored user.
func IsSessionExpired(err error) bool { return errorType(err) == ErrTypeSessionExpired }

// IsInvalidResponse reports whether a 2xx payload failed validation.
func IsInvalidResponse(err error) bool { return errorType(err) == ErrTypeInvalidResponse }

// IsAuthRequired reports whether credentials were rejected or missing.
func IsAuthRequired(err error) bool { return errorType(err) == ErrTypeAuthRequired }

// IsTransport reports whether err happened before any response arrived.
func IsTransport(err error) bool {
	t := errorType(err)
	return t == ErrTypeTimeout || t == ErrTypeConnection
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

// DetailOf returns the backend's detail text when there is one, otherwise
// the error message.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		if ce.Detail != "" {
			return ce.Detail
		}
		return ce.Message
	}
	return err.Error()
}

// StatusTextOf returns the reason phrase of the response carried by err.
func StatusTextOf(err error) string {
	var ce *ClientError
	if errors.As(err, &ce) && ce.StatusText != "" {
		return ce.StatusText
	}
	if code := StatusCode(err); code != 0 {
		return fmt.Sprintf("%d", code)
	}
	return ""
}
