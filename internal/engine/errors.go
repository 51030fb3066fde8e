package engine

import (
	"errors"
	"fmt"
)

// SessionError is an event the session refused to apply.
//
// Rejected events leave the session unchanged. Run logs them and moves on;
// Dispatch returns them to the caller.
type SessionError struct {
	// Code identifies the error category.
	Code SessionErrorCode

	// Message is a human-readable description.
	Message string

	// Event is the rejected event's type.
	Event EventType

	// FormID is the affected form, when there is one.
	FormID string

	// Err is the underlying cause, if any.
	Err error
}

// SessionErrorCode categorizes session errors.
type SessionErrorCode string

const (
	// ErrCodeUnknownForm indicates the form name is not in the catalog.
	ErrCodeUnknownForm SessionErrorCode = "UNKNOWN_FORM"

	// ErrCodeNotMounted indicates the event addresses a form that is not open.
	ErrCodeNotMounted SessionErrorCode = "NOT_MOUNTED"

	// ErrCodeAlreadyMounted indicates the form is already open.
	ErrCodeAlreadyMounted SessionErrorCode = "ALREADY_MOUNTED"

	// ErrCodeInvalidData indicates form data failed schema validation.
	ErrCodeInvalidData SessionErrorCode = "INVALID_DATA"

	// ErrCodeNoDraft indicates a restore with nothing stored.
	ErrCodeNoDraft SessionErrorCode = "NO_DRAFT"

	// ErrCodeInvalidChoice indicates a decision the guard rejected.
	ErrCodeInvalidChoice SessionErrorCode = "INVALID_CHOICE"

	// ErrCodeInvalidEvent indicates a malformed or unknown event.
	ErrCodeInvalidEvent SessionErrorCode = "INVALID_EVENT"
)

// Error implements the error interface.
func (e *SessionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.FormID != "" {
		msg = fmt.Sprintf("%s (event=%s, form=%s)", msg, e.Event, e.FormID)
	} else if e.Event != "" {
		msg = fmt.Sprintf("%s (event=%s)", msg, e.Event)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the SessionErrorCode of err, or "" when err is not a
// SessionError. Uses errors.As to handle wrapped errors.
func ErrorCode(err error) SessionErrorCode {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotMounted returns true if err reports an event for a closed form.
func IsNotMounted(err error) bool {
	return ErrorCode(err) == ErrCodeNotMounted
}

// IsInvalidData returns true if err reports a schema violation.
func IsInvalidData(err error) bool {
	return ErrorCode(err) == ErrCodeInvalidData
}

func newSessionError(code SessionErrorCode, ev Event, formID, message string, err error) *SessionError {
	return &SessionError{
		Code:    code,
		Message: message,
		Event:   ev.Type,
		FormID:  formID,
		Err:     err,
	}
}
