package structures

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// LocalHeap holds the data segment of a local heap, where old-style groups
// keep their link names.
type LocalHeap struct {
	Data []byte
}

// LoadLocalHeap reads the local heap at address.
//
// Header: "HEAP", version (1), reserved (3), data segment size (L),
// free list head offset (L), data segment address (O).
func LoadLocalHeap(r io.ReaderAt, address uint64, sb *core.Superblock) (*LocalHeap, error) {
	l := int(sb.LengthSize)
	header, err := utils.ReadBytes(r, address, 8+2*l+int(sb.OffsetSize))
	if err != nil {
		return nil, utils.WrapError("local heap header read failed", err)
	}
	if string(header[0:4]) != "HEAP" {
		return nil, fmt.Errorf("local heap at 0x%x: %w", address, utils.ErrSignature)
	}

	size := sb.DecodeLength(header[8:])
	dataAddr := sb.DecodeAddress(header[8+2*l:])
	if size > utils.MaxAttributeSize {
		return nil, fmt.Errorf("local heap data segment too large: %d", size)
	}

	data, err := utils.ReadBytes(r, dataAddr, int(size))
	if err != nil {
		return nil, utils.WrapError("local heap data read failed", err)
	}
	return &LocalHeap{Data: data}, nil
}

// GetString returns the NUL-terminated string at offset in the data segment.
func (h *LocalHeap) GetString(offset uint64) (string, error) {
	if offset >= uint64(len(h.Data)) {
		return "", errors.New("offset beyond heap data")
	}
	rest := h.Data[offset:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", errors.New("string not null-terminated")
	}
	return string(rest[:end]), nil
}
