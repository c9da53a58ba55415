// Package service provides business logic for the application.
package service

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Service errors.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoteNotFound       = errors.New("note not found")
)

// ValidationError reports rejected input. Fields maps input names to messages.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// newValidationError converts ozzo validation output into a ValidationError.
// Returns nil when err is nil.
func newValidationError(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return &ValidationError{Message: err.Error()}
	}

	fields := make(map[string]string, len(errs))
	for name, fieldErr := range errs {
		fields[name] = fieldErr.Error()
	}

	return &ValidationError{Message: errs.Error(), Fields: fields}
}

const errNULMessage = "must not contain NUL characters"

func containsNUL(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}

// noNUL is an ozzo rule rejecting strings that hold a NUL byte.
func noNUL(value interface{}) error {
	v, _ := validation.Indirect(value)
	if s, ok := v.(string); ok && containsNUL(s) {
		return errors.New(errNULMessage)
	}
	return nil
}
