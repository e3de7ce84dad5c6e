// Package utils provides the byte-level helpers used by the HDF5 readers:
// pooled scratch buffers, width-aware integer decoding, overflow checks and
// contextual errors.
package utils

import "sync"

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 4096)
	},
}

// GetBuffer returns a scratch slice of length size. The slice must not escape
// the caller; hand it back with ReleaseBuffer.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size, size*2)
	}
	buf = buf[:size]
	clear(buf)
	return buf
}

// ReleaseBuffer returns a scratch slice to the pool.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	bufferPool.Put(buf[:0])
}
