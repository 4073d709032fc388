package apperrors

import (
	"strings"
)

// ErrorClass represents the category of an error.
type ErrorClass string

const (
	// ErrClassConfig represents configuration-related errors.
	ErrClassConfig ErrorClass = "CONFIG"
	// ErrClassSession represents an expired or missing backend session.
	// It is terminal for the page: the browser is sent back to the entry point.
	ErrClassSession ErrorClass = "SESSION"
	// ErrClassValidation represents a failed required-field check. No request was sent.
	ErrClassValidation ErrorClass = "VALIDATION"
	// ErrClassBackend represents a request the backend answered with a rejection.
	ErrClassBackend ErrorClass = "BACKEND"
	// ErrClassNetwork represents network-related errors.
	ErrClassNetwork ErrorClass = "NETWORK"
	// ErrClassParsing represents parsing-related errors.
	ErrClassParsing ErrorClass = "PARSING"
	// ErrClassUnknown represents unknown or unclassified errors.
	ErrClassUnknown ErrorClass = "UNKNOWN"
)

// ClassifiedError wraps an error with classification metadata.
type ClassifiedError struct {
	// Class represents the category of the error
	Class ErrorClass
	// Operation describes the operation that failed
	Operation string
	// Message is safe to show to the user
	Message string
	// Status is the HTTP status returned by the backend, 0 if none
	Status int
	// Err is the underlying error
	Err error
	// Context provides additional context about the error
	Context map[string]any
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	var bld strings.Builder

	bld.WriteRune('[')
	bld.WriteString(string(e.Class))
	bld.WriteRune(']')

	if e.Operation != "" {
		bld.WriteRune(' ')
		bld.WriteString(e.Operation)
	}

	if e.Message != "" {
		bld.WriteRune(' ')
		bld.WriteString(e.Message)
	}

	if e.Err != nil {
		bld.WriteString(" Error: ")
		bld.WriteString(e.Err.Error())
	}
	return bld.String()
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}
