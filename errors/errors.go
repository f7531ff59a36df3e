// Package errors provides error handling for the pipeline.
//
// This package re-exports github.com/cockroachdb/errors so every package
// gets stack traces, wrapping and user-facing hints from one import:
//
//	// Wrap with context
//	if err := loadSource(path); err != nil {
//	    return errors.Wrapf(err, "failed to load %s", path)
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "run `pipeline probe` to see which endpoint failed")
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Join         = crdb.Join
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Common sentinel errors.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")

	// ErrConflict indicates a resource conflict (e.g., duplicate external_ref)
	ErrConflict = New("resource conflict")

	// ErrRateLimited indicates the remote side asked us to slow down
	ErrRateLimited = New("rate limited")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsConflictError checks if an error is or wraps ErrConflict
func IsConflictError(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// IsTransientError reports whether err is worth retrying.
func IsTransientError(err error) bool {
	return err != nil && IsAny(err, ErrTimeout, ErrServiceUnavailable, ErrRateLimited)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}
