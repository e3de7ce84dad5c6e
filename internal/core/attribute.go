// Package core parses the HDF5 on-disk structures a MATLAB v7.3 reader
// needs: superblock, object headers and their messages, chunk indexes and
// filter pipelines.
package core

import (
	"bytes"
	"fmt"

	"github.com/scigolib/mat73/internal/utils"
)

// Attribute is a parsed attribute message with its raw value bytes.
type Attribute struct {
	Name      string
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Data      []byte
}

// ParseAttributeMessage parses an attribute message (type 0x000C).
//
// All versions start with version (1), flags (1), name size (2), datatype
// size (2) and dataspace size (2). Version 3 adds a name encoding byte.
// Version 1 pads the name, datatype and dataspace fields to multiples of 8
// bytes; later versions do not pad.
func ParseAttributeMessage(data []byte, sb *Superblock) (*Attribute, error) {
	if len(data) < 8 {
		return nil, utils.Truncated("attribute message", 8, len(data))
	}

	version := data[0]
	if version < 1 || version > 3 {
		return nil, fmt.Errorf("unsupported attribute message version: %d", version)
	}

	order := sb.Endianness
	nameSize := int(order.Uint16(data[2:4]))
	typeSize := int(order.Uint16(data[4:6]))
	spaceSize := int(order.Uint16(data[6:8]))

	pos := 8
	if version == 3 {
		pos++
	}

	field := func(size int, what string) ([]byte, error) {
		stored := size
		if version == 1 {
			stored = (size + 7) &^ 7
		}
		if pos+size > len(data) {
			return nil, utils.Truncated("attribute "+what, pos+size, len(data))
		}
		out := data[pos : pos+size]
		pos += stored
		return out, nil
	}

	nameBytes, err := field(nameSize, "name")
	if err != nil {
		return nil, err
	}
	typeBytes, err := field(typeSize, "datatype")
	if err != nil {
		return nil, err
	}
	spaceBytes, err := field(spaceSize, "dataspace")
	if err != nil {
		return nil, err
	}

	attr := &Attribute{Name: string(bytes.TrimRight(nameBytes, "\x00"))}

	attr.Datatype, err = ParseDatatypeMessage(typeBytes)
	if err != nil {
		return nil, utils.WrapError("attribute datatype parse failed", err)
	}
	attr.Dataspace, err = ParseDataspaceMessage(spaceBytes, sb.LengthSize)
	if err != nil {
		return nil, utils.WrapError("attribute dataspace parse failed", err)
	}

	size, err := utils.StorageSize(attr.Dataspace.Dimensions, uint64(attr.Datatype.Size), utils.MaxAttributeSize)
	if err != nil {
		return nil, utils.WrapError("attribute "+attr.Name, err)
	}
	if attr.Dataspace.Type == DataspaceNull {
		size = 0
	}
	if pos > len(data) {
		pos = len(data)
	}
	end := pos + int(size)
	if end > len(data) {
		return nil, utils.Truncated("attribute "+attr.Name+" value", end, len(data))
	}
	attr.Data = append([]byte(nil), data[pos:end]...)

	return attr, nil
}

// Text returns the value of a fixed-length string attribute with padding
// and terminators removed. ok is false for other datatypes.
func (a *Attribute) Text() (string, bool) {
	if a.Datatype == nil || a.Datatype.Class != DatatypeString {
		return "", false
	}
	v := a.Data
	if i := bytes.IndexByte(v, 0); i >= 0 {
		v = v[:i]
	}
	return string(bytes.TrimRight(v, " ")), true
}

// Int returns the first element of an integer attribute. ok is false for
// non-integer datatypes or an empty value.
func (a *Attribute) Int() (int64, bool) {
	if a.Datatype == nil || a.Datatype.Class != DatatypeFixed {
		return 0, false
	}
	size := int(a.Datatype.Size)
	if size == 0 || size > 8 || len(a.Data) < size {
		return 0, false
	}
	u := utils.DecodeUint(a.Data, size, a.Datatype.ByteOrder())
	if a.Datatype.Signed() && size < 8 {
		shift := uint(64 - 8*size)
		//nolint:gosec // G115: sign extension of a narrower two's complement value
		return int64(u<<shift) >> shift, true
	}
	//nolint:gosec // G115: MATLAB attribute integers are small
	return int64(u), true
}
