package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict: resource already exists")
	ErrInternal       = errors.New("internal server error")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrBadRequest     = errors.New("bad request")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Fulfillment pipeline errors
var (
	// ErrGatewayUnavailable means the payment gateway could not be reached or
	// refused our credentials. Fails closed: callers treat it as a failed
	// payment attempt, never as a reason to retry inside the pipeline.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrResourceExhausted means an atomic claim lost the race: no unit of
	// the requested resource remained available.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrStoreAllocation means the tenant's isolated store could not be
	// created (name collision or invalid name).
	ErrStoreAllocation = errors.New("tenant store allocation failed")

	// ErrProvisioningIncomplete means the tenant row was committed centrally
	// but the store schema or seed step failed afterwards. Requires operator
	// cleanup; must be surfaced, not silently retried.
	ErrProvisioningIncomplete = errors.New("tenant provisioning incomplete")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
