// Package apperr defines the typed, recoverable errors the verification
// engine returns at the request boundary. Every rejection carries a kind the
// transport layer can map to a status code and a message the employee can act
// on without leaking anyone else's data.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindUnauthenticated
	KindUnauthorized
	KindLivenessFailed
	KindFaceMismatch
	KindOutOfTimeWindow
	KindOutOfGeofence
	KindAlreadyCheckedIn
	KindAlreadyCheckedOut
	KindNotCheckedIn
	KindDeviceConflict
	KindConfigMissing
	KindStorageFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindLivenessFailed:
		return "liveness_failed"
	case KindFaceMismatch:
		return "face_mismatch"
	case KindOutOfTimeWindow:
		return "out_of_time_window"
	case KindOutOfGeofence:
		return "out_of_geofence"
	case KindAlreadyCheckedIn:
		return "already_checked_in"
	case KindAlreadyCheckedOut:
		return "already_checked_out"
	case KindNotCheckedIn:
		return "not_checked_in"
	case KindDeviceConflict:
		return "device_conflict"
	case KindConfigMissing:
		return "config_missing"
	case KindStorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// Error is a kinded application error. Message is user-facing; Err, when set,
// is the wrapped infrastructure cause and stays server-side.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two apperr values by kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a kinded error with a formatted user-facing message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and user-facing message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from any error chain; unkinded errors are treated
// as storage failures so nothing internal leaks to the client.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageFailure
}

// MessageOf returns the user-facing message, or a generic one for unkinded
// errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput, KindLivenessFailed, KindFaceMismatch,
		KindOutOfTimeWindow, KindOutOfGeofence, KindAlreadyCheckedIn,
		KindAlreadyCheckedOut, KindNotCheckedIn, KindDeviceConflict:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindConfigMissing, KindStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
