package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures during a sync run
type ErrorType string

const (
	// ErrorTypeAuth is a failed login: the authenticated marker never
	// appeared after credential submission. Fatal for the current run.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeProfilePage is an inconsistent profile UI: the loading
	// placeholder persisted past the scroll timeout with no new content.
	ErrorTypeProfilePage ErrorType = "profile_page"
	// ErrorTypeParse is an unparsable field. Absorbed at the extraction
	// site, never propagated.
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeSession is a transport failure talking to the browser.
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeNetwork is a transport failure talking to an HTTP
	// collaborator (the index sink).
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error carries the failure class alongside the message
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around an underlying cause
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown when err is
// not a typed error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool { return TypeOf(err) == ErrorTypeAuth }

// IsProfilePage reports whether err is an inconsistent-profile-UI failure
func IsProfilePage(err error) bool { return TypeOf(err) == ErrorTypeProfilePage }

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeAuth, ErrorTypeParse, ErrorTypeProfilePage, ErrorTypeSession:
		return false
	default:
		return false
	}
}
