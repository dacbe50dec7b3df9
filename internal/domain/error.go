package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrBadCallbackData     = errors.New("malformed callback data")
	ErrStatusUnknown       = errors.New("status is not a valid option for this document")
	ErrUnsupportedProperty = errors.New("property type does not support status writes")
	ErrLockHeld            = errors.New("document is locked by another update")
)

// transportError marks vendor/network failures that are worth retrying,
// as opposed to validation failures that will never succeed.
type transportError struct{ err error }

func (t *transportError) Error() string { return t.err.Error() }
func (t *transportError) Unwrap() error { return t.err }

// Transport wraps err as a retryable transport failure.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &transportError{err: err}
}

// IsRetryable reports whether err (or anything it wraps) is a transport failure.
func IsRetryable(err error) bool {
	var t *transportError
	return errors.As(err, &t)
}
