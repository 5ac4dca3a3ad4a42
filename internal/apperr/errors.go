// Package apperr holds the error taxonomy shared by handlers and services.
//
// Three categories map directly to HTTP status codes: validation (400),
// not-found (404) and access (403). Partial failure of a batch is NOT an
// error here; batch components return it inline as part of their result so
// one failing record never aborts an otherwise-successful batch.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing booking, series or session.
	ErrNotFound = errors.New("not found")

	// ErrAccess marks a caller without scope for the requested records.
	ErrAccess = errors.New("access denied")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// Accessf wraps ErrAccess with a formatted message.
func Accessf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrAccess}, args...)...)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsAccess(err error) bool     { return errors.Is(err, ErrAccess) }
