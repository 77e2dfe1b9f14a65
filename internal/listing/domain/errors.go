package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the targeted id or token does not exist
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable means the backing storage could not be reached
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidInput means a field failed coercion or validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrDeliveryEnqueueFailed means the confirmation e-mail request was not
	// handed to the delivery collaborator. Never returned to callers of the
	// submit workflow.
	ErrDeliveryEnqueueFailed = errors.New("delivery enqueue failed")

	// ErrDuplicateToken means the unique index on validation_token rejected
	// an insert
	ErrDuplicateToken = errors.New("duplicate validation token")
)

// InvalidInput wraps ErrInvalidInput with a client-facing reason
func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// StoreUnavailable wraps ErrStoreUnavailable around the driver error
func StoreUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
