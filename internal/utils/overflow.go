package utils

import (
	"fmt"
	"math"
)

// Size limits applied before allocating buffers for file-controlled lengths.
const (
	// MaxChunkSize limits a single decoded chunk to 1GB.
	MaxChunkSize = 1024 * 1024 * 1024

	// MaxDatasetSize limits a fully materialized dataset to 4GB.
	MaxDatasetSize = 4 * 1024 * 1024 * 1024

	// MaxAttributeSize limits attribute payloads to 64MB.
	MaxAttributeSize = 64 * 1024 * 1024

	// MaxMessageCount bounds the number of header messages followed per object.
	MaxMessageCount = 65536
)

// CheckMultiplyOverflow checks if multiplying two uint64 values would overflow.
func CheckMultiplyOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil
	}
	if a > math.MaxUint64/b {
		return fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}
	return nil
}

// SafeMultiply multiplies two uint64 values, failing on overflow.
func SafeMultiply(a, b uint64) (uint64, error) {
	if err := CheckMultiplyOverflow(a, b); err != nil {
		return 0, err
	}
	return a * b, nil
}

// ElementCount multiplies dims together. An empty dims slice counts as one
// element (HDF5 scalar dataspace).
func ElementCount(dims []uint64) (uint64, error) {
	total := uint64(1)
	for i, d := range dims {
		next, err := SafeMultiply(total, d)
		if err != nil {
			return 0, fmt.Errorf("element count overflow at dimension %d: %w", i, err)
		}
		total = next
	}
	return total, nil
}

// StorageSize returns the byte size of a dims-shaped array of elemSize-byte
// elements, bounded by maxSize.
func StorageSize(dims []uint64, elemSize, maxSize uint64) (uint64, error) {
	count, err := ElementCount(dims)
	if err != nil {
		return 0, err
	}
	size, err := SafeMultiply(count, elemSize)
	if err != nil {
		return 0, err
	}
	if size > maxSize {
		return 0, fmt.Errorf("storage size %d exceeds maximum %d", size, maxSize)
	}
	return size, nil
}

// ValidateBufferSize validates that a buffer size is non-zero and within maxSize.
func ValidateBufferSize(size, maxSize uint64, description string) error {
	if size == 0 {
		return fmt.Errorf("%s: size cannot be zero", description)
	}
	if size > maxSize {
		return fmt.Errorf("%s: size %d exceeds maximum %d", description, size, maxSize)
	}
	return nil
}
