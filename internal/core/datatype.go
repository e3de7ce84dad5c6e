package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DatatypeClass represents HDF5 datatype class.
type DatatypeClass uint8

// Datatype class constants.
const (
	DatatypeFixed     DatatypeClass = 0
	DatatypeFloat     DatatypeClass = 1
	DatatypeTime      DatatypeClass = 2
	DatatypeString    DatatypeClass = 3
	DatatypeBitfield  DatatypeClass = 4
	DatatypeOpaque    DatatypeClass = 5
	DatatypeCompound  DatatypeClass = 6
	DatatypeReference DatatypeClass = 7
	DatatypeEnum      DatatypeClass = 8
	DatatypeVarLen    DatatypeClass = 9
	DatatypeArray     DatatypeClass = 10
)

// DatatypeMessage is a parsed datatype message. Only the fields the reader
// interprets are decoded; Properties keeps the class-specific remainder.
type DatatypeMessage struct {
	Class         DatatypeClass
	Version       uint8
	Size          uint32
	ClassBitField uint32
	Properties    []byte
}

// ParseDatatypeMessage parses a datatype message.
//
// Bytes 0-3 pack the class (bits 0-3), version (bits 4-7) and a 24-bit class
// bit field. Bytes 4-7 hold the element size.
func ParseDatatypeMessage(data []byte) (*DatatypeMessage, error) {
	if len(data) < 8 {
		return nil, errors.New("datatype message too short")
	}

	classAndVersion := binary.LittleEndian.Uint32(data[0:4])

	dt := &DatatypeMessage{
		//nolint:gosec // G115: masked to 4 bits
		Class: DatatypeClass(classAndVersion & 0x0F),
		//nolint:gosec // G115: masked to 4 bits
		Version:       uint8((classAndVersion >> 4) & 0x0F),
		ClassBitField: (classAndVersion >> 8) & 0x00FFFFFF,
		Size:          binary.LittleEndian.Uint32(data[4:8]),
		Properties:    data[8:],
	}
	if dt.Version == 0 {
		return nil, fmt.Errorf("invalid datatype version 0 for class %d", dt.Class)
	}
	return dt, nil
}

// ByteOrder returns the byte order of numeric types (bit 0 of the bit field).
func (dt *DatatypeMessage) ByteOrder() binary.ByteOrder {
	if dt.ClassBitField&0x01 == 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Signed reports whether a fixed-point type is two's complement (bit 3).
func (dt *DatatypeMessage) Signed() bool {
	return dt.Class == DatatypeFixed && dt.ClassBitField&0x08 != 0
}

// IsObjectReference reports whether the type holds object references.
func (dt *DatatypeMessage) IsObjectReference() bool {
	return dt.Class == DatatypeReference && dt.ClassBitField&0x0F == 0
}

// IsVariableString reports whether the type is a variable-length string.
func (dt *DatatypeMessage) IsVariableString() bool {
	return dt.Class == DatatypeVarLen && dt.ClassBitField&0x0F == 1
}

// StringPadding returns the padding type of a fixed string:
// 0 null-terminated, 1 null-padded, 2 space-padded.
func (dt *DatatypeMessage) StringPadding() uint8 {
	//nolint:gosec // G115: masked to 4 bits
	return uint8(dt.ClassBitField & 0x0F)
}

// String returns a short description like "float64" or "uint16".
func (dt *DatatypeMessage) String() string {
	switch dt.Class {
	case DatatypeFixed:
		if dt.Signed() {
			return fmt.Sprintf("int%d", dt.Size*8)
		}
		return fmt.Sprintf("uint%d", dt.Size*8)
	case DatatypeFloat:
		return fmt.Sprintf("float%d", dt.Size*8)
	case DatatypeString:
		return fmt.Sprintf("string(%d)", dt.Size)
	case DatatypeReference:
		return "reference"
	case DatatypeVarLen:
		return "vlen"
	case DatatypeCompound:
		return "compound"
	default:
		return fmt.Sprintf("class_%d(size=%d)", dt.Class, dt.Size)
	}
}
