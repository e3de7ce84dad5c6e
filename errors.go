package mat73

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound reports a variable name absent from the file.
	ErrNotFound = errors.New("variable not found")

	// ErrClosed reports use of a closed File.
	ErrClosed = errors.New("mat73: file closed")

	// ErrNotMATFile reports a file without an HDF5 signature, such as a
	// MAT-file saved with -v7 or earlier.
	ErrNotMATFile = errors.New("not a MATLAB v7.3 file")

	// ErrMetadataParse wraps a failure to decode the class-object metadata.
	ErrMetadataParse = errors.New("class metadata unreadable")

	// ErrAllocationShortfall reports timeseries left without data slots.
	ErrAllocationShortfall = errors.New("timeseries allocation shortfall")

	// ErrUnreadable reports a variable whose payload could not be decoded.
	// Read returns an empty placeholder for it.
	ErrUnreadable = errors.New("variable unreadable")
)

// NotFoundError is returned by Read for an unknown variable. Available lists
// the variables the file does hold.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("variable %q not found. Available: [%s]", e.Name, strings.Join(e.Available, ", "))
}

// Unwrap makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
