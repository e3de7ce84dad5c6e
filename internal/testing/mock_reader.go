// Package testing provides byte-level fixtures for the HDF5 parser tests.
package testing

import (
	"encoding/binary"
	"errors"
	"io"
)

// MockReaderAt serves ReadAt calls from an in-memory byte slice.
type MockReaderAt struct {
	data []byte
}

// NewMockReaderAt creates a new mock reader with the given data.
func NewMockReaderAt(data []byte) *MockReaderAt {
	return &MockReaderAt{data: data}
}

// ReadAt implements io.ReaderAt. Short reads report io.EOF.
func (m *MockReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return n, err
}

// Size returns the length of the underlying data.
func (m *MockReaderAt) Size() int64 {
	return int64(len(m.data))
}

// Image assembles a file image by placing byte blocks at fixed addresses.
// Gaps are zero-filled.
type Image struct {
	data []byte
}

// NewImage returns an empty image.
func NewImage() *Image {
	return &Image{}
}

// Put writes b at addr, growing the image as needed.
func (im *Image) Put(addr uint64, b []byte) *Image {
	end := int(addr) + len(b)
	if end > len(im.data) {
		grown := make([]byte, end)
		copy(grown, im.data)
		im.data = grown
	}
	copy(im.data[addr:], b)
	return im
}

// Bytes returns the assembled image.
func (im *Image) Bytes() []byte {
	return im.data
}

// Reader returns a MockReaderAt over the image.
func (im *Image) Reader() *MockReaderAt {
	return NewMockReaderAt(im.data)
}

// LE16 encodes v as two little-endian bytes.
func LE16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

// LE32 encodes v as four little-endian bytes.
func LE32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

// LE64 encodes v as eight little-endian bytes.
func LE64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// Concat joins byte slices.
func Concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Pad8 appends zero bytes until len(b) is a multiple of 8.
func Pad8(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}
