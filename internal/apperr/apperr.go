package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error by how the caller should react to it.
type Kind string

const (
	// KindValidation is a rejected request: nothing was written and the user can fix the input.
	KindValidation Kind = "validation"

	// KindConflict means the store refused a write that passed the checks.
	// Local state is stale and must be refetched.
	KindConflict Kind = "conflict"

	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"

	// KindStore is a transient backend failure. Prior state is retained and the operation may be retried.
	KindStore Kind = "store"
)

// Error codes shared by the server and its clients.
const (
	CodeEmptyTitle            = "empty_title"
	CodeInvalidEmail          = "invalid_email"
	CodeInvalidMode           = "invalid_mode"
	CodeInvalidStatus         = "invalid_status"
	CodeInvalidRequest        = "invalid_request"
	CodeDuplicateSession      = "duplicate_session"
	CodeTaskOccupied          = "task_occupied"
	CodeTaskClosed            = "task_closed"
	CodeEntryEnded            = "entry_ended"
	CodeOtherActiveSessions   = "other_active_sessions"
	CodeActiveSessionConflict = "active_session_conflict"
	CodeNotEntryOwner         = "not_entry_owner"
	CodeNotFound              = "not_found"
	CodeUnauthorized          = "unauthorized"
	CodeStoreFailure          = "store_failure"
)

// Error is the application error carried across service, HTTP and client boundaries.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Conflict creates a conflict error.
func Conflict(code, message string, err error) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Err: err}
}

// NotFound creates a not-found error for the named resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

// Unauthorized creates an authentication error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden creates an authorization error.
func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

// Store wraps a backend failure.
func Store(message string, err error) *Error {
	return &Error{Kind: KindStore, Code: CodeStoreFailure, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindStore for errors that are not *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStore
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// CodeOf returns the code of err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// HTTPStatus maps a kind to the status code used by the API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}
