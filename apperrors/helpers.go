package apperrors

import (
	"errors"
)

// RedirectContextKey holds the location a SESSION error sends the browser to.
const RedirectContextKey = "redirect"

// Wrap creates a classified error.
func Wrap(class ErrorClass, operation string, err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	return &ClassifiedError{
		Class:     class,
		Operation: operation,
		Err:       err,
		Context:   make(map[string]any),
	}
}

// New creates a new classified error whose message is shown to the user.
func New(class ErrorClass, operation string, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]any),
	}
}

// NewSessionExpired returns the terminal error for a 401 answer.
func NewSessionExpired(operation string) *ClassifiedError {
	return New(ErrClassSession, operation, "session expired").
		WithContext(RedirectContextKey, "/")
}

// WithContext adds context to a classified error.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	if e == nil {
		return nil
	}
	if e.Context == nil {
		e.Context = make(map[string]any)
	}

	e.Context[key] = value

	return e
}

// GetClass extracts the error class from an error.
func GetClass(err error) ErrorClass {
	if err == nil {
		return ErrClassUnknown
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	return ErrClassUnknown
}

// GetOperation extracts the operation from an error.
func GetOperation(err error) string {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Operation
	}

	return ""
}

// GetContext extracts context from an error.
func GetContext(err error) map[string]any {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Context
	}

	return nil
}

// IsSessionExpired reports whether err ends the page session.
func IsSessionExpired(err error) bool {
	return GetClass(err) == ErrClassSession
}

// RedirectTarget returns where a session error sends the browser, "/" by default.
func RedirectTarget(err error) string {
	if to, ok := GetContext(err)[RedirectContextKey].(string); ok && to != "" {
		return to
	}
	return "/"
}

// UserMessage returns the user facing message of err, or fallback
// when err carries none.
func UserMessage(err error, fallback string) string {
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return fallback
}
