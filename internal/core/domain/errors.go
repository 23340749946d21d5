package domain

import (
	"errors"
	"fmt"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTemporary           = errors.New("temporary failure")

	ErrMalformedRequest      = errors.New("malformed request")
	ErrUnsupportedFormat     = errors.New("unsupported format")
	ErrCorpusTooShort        = errors.New("corpus too short")
	ErrClassificationParse   = errors.New("classification parse error")
	ErrClassificationTimeout = errors.New("classification timeout")
	ErrInsufficientPods      = errors.New("insufficient points of distinction")
	ErrInvalidState          = errors.New("invalid state transition")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsUserCorrectable reports whether err describes input the caller can fix
// and resubmit without any system-side change.
func IsUserCorrectable(err error) bool {
	return IsKind(err, ErrInvalidInput) ||
		IsKind(err, ErrMalformedRequest) ||
		IsKind(err, ErrCorpusTooShort) ||
		IsKind(err, ErrInsufficientPods)
}
