package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/mat73/internal/utils"
)

// DataLayoutClass represents the storage layout type.
type DataLayoutClass uint8

// Data layout class constants.
const (
	LayoutCompact    DataLayoutClass = 0
	LayoutContiguous DataLayoutClass = 1
	LayoutChunked    DataLayoutClass = 2
	LayoutVirtual    DataLayoutClass = 3
)

// DataLayoutMessage describes where a dataset's raw data lives.
type DataLayoutMessage struct {
	Version     uint8
	Class       DataLayoutClass
	DataAddress uint64 // contiguous data or chunk B-tree root
	DataSize    uint64
	CompactData []byte

	// ChunkDims has one entry per dataset axis plus a trailing entry holding
	// the element size, as stored in the message.
	ChunkDims []uint64
}

// ParseDataLayoutMessage parses layout message versions 3 and 4. Version 4
// chunked layouts use the newer chunk indexes and are rejected.
func ParseDataLayoutMessage(data []byte, sb *Superblock) (*DataLayoutMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("data layout message too short")
	}

	msg := &DataLayoutMessage{
		Version: data[0],
		Class:   DataLayoutClass(data[1]),
	}
	if msg.Version < 3 || msg.Version > 4 {
		return nil, fmt.Errorf("data layout version %d: %w", msg.Version, utils.ErrUnsupported)
	}

	o := int(sb.OffsetSize)
	l := int(sb.LengthSize)

	switch msg.Class {
	case LayoutCompact:
		if len(data) < 4 {
			return nil, utils.Truncated("compact layout", 4, len(data))
		}
		size := int(sb.Endianness.Uint16(data[2:4]))
		if len(data) < 4+size {
			return nil, utils.Truncated("compact layout data", 4+size, len(data))
		}
		msg.CompactData = data[4 : 4+size]
		msg.DataSize = uint64(size)

	case LayoutContiguous:
		if len(data) < 2+o+l {
			return nil, utils.Truncated("contiguous layout", 2+o+l, len(data))
		}
		msg.DataAddress = sb.DecodeAddress(data[2:])
		msg.DataSize = sb.DecodeLength(data[2+o:])

	case LayoutChunked:
		if msg.Version == 4 {
			return nil, fmt.Errorf("version 4 chunk index: %w", utils.ErrUnsupported)
		}
		// dimensionality (1), B-tree address, dimensionality x 4-byte sizes
		if len(data) < 3 {
			return nil, utils.Truncated("chunked layout", 3, len(data))
		}
		rank := int(data[2])
		if need := 3 + o + rank*4; len(data) < need {
			return nil, utils.Truncated("chunked layout", need, len(data))
		}
		msg.DataAddress = sb.DecodeAddress(data[3:])
		pos := 3 + o
		msg.ChunkDims = make([]uint64, rank)
		for i := range msg.ChunkDims {
			msg.ChunkDims[i] = uint64(sb.Endianness.Uint32(data[pos : pos+4]))
			if msg.ChunkDims[i] == 0 {
				return nil, fmt.Errorf("chunk dimension %d is zero", i)
			}
			pos += 4
		}

	default:
		return nil, fmt.Errorf("layout class %d: %w", msg.Class, utils.ErrUnsupported)
	}

	return msg, nil
}

// String returns human-readable layout description.
func (dl *DataLayoutMessage) String() string {
	switch dl.Class {
	case LayoutCompact:
		return fmt.Sprintf("compact (size=%d)", dl.DataSize)
	case LayoutContiguous:
		return fmt.Sprintf("contiguous (address=0x%X, size=%d)", dl.DataAddress, dl.DataSize)
	case LayoutChunked:
		return fmt.Sprintf("chunked (chunks=%v)", dl.ChunkDims)
	default:
		return "unknown"
	}
}
