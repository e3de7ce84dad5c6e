package utils

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the format parsers.
var (
	// ErrTruncated reports a structure that ends before its declared size.
	ErrTruncated = errors.New("structure truncated")

	// ErrSignature reports a block whose magic bytes do not match.
	ErrSignature = errors.New("invalid signature")

	// ErrUnsupported reports a format feature the reader does not implement.
	ErrUnsupported = errors.New("unsupported format feature")
)

// H5Error attaches the name of the failing parse step to an underlying error.
type H5Error struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *H5Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *H5Error) Unwrap() error {
	return e.Cause
}

// WrapError annotates cause with context. A nil cause stays nil.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{
		Context: context,
		Cause:   cause,
	}
}

// Truncated builds an ErrTruncated error naming the structure and the sizes involved.
func Truncated(what string, need, have int) error {
	return fmt.Errorf("%s: need %d bytes, have %d: %w", what, need, have, ErrTruncated)
}
