package utils

import (
	"encoding/binary"
	"fmt"
)

// UndefinedAddress is the all-ones address HDF5 uses for "not allocated".
const UndefinedAddress = ^uint64(0)

// ReaderAt is the subset of io.ReaderAt the parsers depend on.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// DecodeUint reads an unsigned little- or big-endian integer of 1, 2, 4 or 8
// bytes. Other widths are zero-extended to 8 bytes.
func DecodeUint(data []byte, size int, order binary.ByteOrder) uint64 {
	if size > len(data) {
		size = len(data)
	}

	switch size {
	case 0:
		return 0
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(order.Uint16(data[:2]))
	case 4:
		return uint64(order.Uint32(data[:4]))
	case 8:
		return order.Uint64(data[:8])
	default:
		var buf [8]byte
		if order == binary.BigEndian {
			copy(buf[8-size:], data[:size])
		} else {
			copy(buf[:], data[:size])
		}
		return order.Uint64(buf[:])
	}
}

// IsUndefined reports whether addr is the undefined address for the given
// offset width.
func IsUndefined(addr uint64, offsetSize uint8) bool {
	if offsetSize >= 8 {
		return addr == UndefinedAddress
	}
	return addr == (uint64(1)<<(8*uint(offsetSize)))-1
}

// ReadBytes reads exactly n bytes at offset into a freshly allocated slice.
func ReadBytes(r ReaderAt, offset uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read size %d", n)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	read, err := r.ReadAt(buf, int64(offset))
	if read == n {
		return buf, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, Truncated("read", n, read)
}

// ReadUint64 reads a 64-bit value at the given offset.
func ReadUint64(r ReaderAt, offset int64, order binary.ByteOrder) (uint64, error) {
	buf := GetBuffer(8)
	defer ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, err
	}
	return order.Uint64(buf), nil
}
