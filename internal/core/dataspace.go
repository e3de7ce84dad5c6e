package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/scigolib/mat73/internal/utils"
)

// DataspaceType represents the type of dataspace.
type DataspaceType uint8

// Dataspace type constants.
const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// DataspaceMessage describes the extent of a dataset or attribute. Dimensions
// are in storage (row-major) order; a scalar has no dimensions.
type DataspaceMessage struct {
	Version    uint8
	Type       DataspaceType
	Dimensions []uint64
	MaxDims    []uint64
}

// ParseDataspaceMessage parses a dataspace message. Dimension sizes are
// lengthSize bytes wide.
//
// Version 1: version, rank, flags, reserved (5), dims, [max dims].
// Version 2: version, rank, flags, type, dims, [max dims].
func ParseDataspaceMessage(data []byte, lengthSize uint8) (*DataspaceMessage, error) {
	if len(data) < 4 {
		return nil, errors.New("dataspace message too short")
	}

	ds := &DataspaceMessage{Version: data[0]}
	rank := int(data[1])
	flags := data[2]

	var pos int
	switch ds.Version {
	case 1:
		pos = 8
		ds.Type = DataspaceSimple
		if rank == 0 {
			ds.Type = DataspaceScalar
		}
	case 2:
		pos = 4
		ds.Type = DataspaceType(data[3])
		if ds.Type > DataspaceNull {
			return nil, fmt.Errorf("unknown dataspace type: %d", ds.Type)
		}
	default:
		return nil, fmt.Errorf("unsupported dataspace version: %d", ds.Version)
	}

	if ds.Type != DataspaceSimple || rank == 0 {
		return ds, nil
	}

	width := int(lengthSize)
	count := rank
	if flags&0x01 != 0 {
		count *= 2
	}
	if need := pos + count*width; len(data) < need {
		return nil, utils.Truncated("dataspace dimensions", need, len(data))
	}

	ds.Dimensions = make([]uint64, rank)
	for i := range ds.Dimensions {
		ds.Dimensions[i] = utils.DecodeUint(data[pos:], width, binary.LittleEndian)
		pos += width
	}
	if flags&0x01 != 0 {
		ds.MaxDims = make([]uint64, rank)
		for i := range ds.MaxDims {
			ds.MaxDims[i] = utils.DecodeUint(data[pos:], width, binary.LittleEndian)
			pos += width
		}
	}

	return ds, nil
}

// TotalElements returns the number of elements. Null dataspaces hold none,
// scalars hold one.
func (ds *DataspaceMessage) TotalElements() uint64 {
	switch ds.Type {
	case DataspaceNull:
		return 0
	case DataspaceScalar:
		return 1
	}
	total := uint64(1)
	for _, d := range ds.Dimensions {
		total *= d
	}
	return total
}

// IsScalar reports whether the dataspace is scalar.
func (ds *DataspaceMessage) IsScalar() bool {
	return ds.Type == DataspaceScalar
}

// String returns a description like "[3 x 4]".
func (ds *DataspaceMessage) String() string {
	switch ds.Type {
	case DataspaceScalar:
		return "scalar"
	case DataspaceNull:
		return "null"
	}
	return fmt.Sprintf("%v", ds.Dimensions)
}
