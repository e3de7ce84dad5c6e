package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// HDF5 file signature and supported superblock versions.
const (
	Signature = "\x89HDF\r\n\x1a\n"
	Version0  = 0
	Version1  = 1
	Version2  = 2
	Version3  = 3
)

// The signature may follow a user block whose size is a power of two of at
// least 512 bytes. MATLAB always writes a 512-byte user block.
const (
	signatureStep     = 512
	maxSignatureProbe = 1 << 30
)

// ErrNoSignature is returned when no HDF5 signature is found at any probed offset.
var ErrNoSignature = errors.New("no HDF5 signature found")

// Superblock holds the file-level metadata needed to resolve addresses.
//
// Base is the absolute file offset of the signature. Every other address in
// the file is relative to it, so readers wrap the file in an offset reader
// starting at Base.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Base       uint64
	Endianness binary.ByteOrder

	// RootGroup is the object header address of the root group.
	RootGroup uint64

	// RootBTree and RootHeap come from the scratch pad of the root symbol
	// table entry (versions 0 and 1 only). They are zero when absent.
	RootBTree uint64
	RootHeap  uint64

	SuperExtension uint64
	EOFAddress     uint64
}

// FindSignature scans r at 0, 512, 1024, ... for the HDF5 signature and
// returns the offset where it was found.
func FindSignature(r io.ReaderAt, size int64) (int64, error) {
	sig := make([]byte, len(Signature))
	for off := int64(0); off+int64(len(Signature)) <= size && off <= maxSignatureProbe; {
		if _, err := r.ReadAt(sig, off); err != nil && !errors.Is(err, io.EOF) {
			return 0, utils.WrapError("signature read failed", err)
		}
		if string(sig) == Signature {
			return off, nil
		}
		if off == 0 {
			off = signatureStep
		} else {
			off *= 2
		}
	}
	return 0, ErrNoSignature
}

// ReadSuperblock locates and parses the superblock. Versions 0 through 3 are
// supported. The returned addresses are relative to sb.Base.
func ReadSuperblock(r io.ReaderAt, size int64) (*Superblock, error) {
	base, err := FindSignature(r, size)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 128)
	n, err := r.ReadAt(buf, base)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, utils.WrapError("superblock read failed", err)
	}
	buf = buf[:n]
	if n < 12 {
		return nil, utils.Truncated("superblock", 12, n)
	}

	sb := &Superblock{
		Version:    buf[8],
		Endianness: binary.LittleEndian,
		//nolint:gosec // G115: signature offset is non-negative
		Base: uint64(base),
	}

	switch sb.Version {
	case Version0, Version1:
		err = sb.parseLegacy(buf)
	case Version2, Version3:
		err = sb.parseModern(buf)
	default:
		return nil, fmt.Errorf("unsupported superblock version: %d", sb.Version)
	}
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("superblock v%d parse failed", sb.Version), err)
	}

	return sb, nil
}

// parseLegacy decodes superblock versions 0 and 1:
//
//	8      superblock version
//	9..12  free-space, root symbol table, reserved, shared header versions
//	13     size of offsets
//	14     size of lengths
//	16..23 group K values and consistency flags
//	24..27 indexed storage K and reserved (version 1 only)
//	       base, free-space, EOF and driver addresses
//	       root group symbol table entry
func (sb *Superblock) parseLegacy(buf []byte) error {
	if len(buf) < 24 {
		return utils.Truncated("legacy superblock", 24, len(buf))
	}
	sb.OffsetSize = buf[13]
	sb.LengthSize = buf[14]
	if err := validateSizes(sb.OffsetSize, sb.LengthSize); err != nil {
		return err
	}

	pos := 24
	if sb.Version == Version1 {
		pos += 4
	}

	o := int(sb.OffsetSize)
	// Four addresses, then the root entry: name offset, header address,
	// cache type (4), reserved (4), scratch pad (16).
	need := pos + 4*o + 2*o + 8 + 16
	if len(buf) < need {
		return utils.Truncated("legacy superblock", need, len(buf))
	}

	pos += o // base address; the signature offset is authoritative.
	pos += o // free-space info
	sb.EOFAddress = utils.DecodeUint(buf[pos:], o, sb.Endianness)
	pos += o
	pos += o // driver info

	pos += o // link name offset of the root entry
	sb.RootGroup = utils.DecodeUint(buf[pos:], o, sb.Endianness)
	pos += o

	cacheType := sb.Endianness.Uint32(buf[pos : pos+4])
	pos += 8

	if cacheType == 1 {
		sb.RootBTree = utils.DecodeUint(buf[pos:], o, sb.Endianness)
		sb.RootHeap = utils.DecodeUint(buf[pos+o:], o, sb.Endianness)
	}

	return nil
}

// parseModern decodes superblock versions 2 and 3:
//
//	8  version, 9 size of offsets, 10 size of lengths, 11 flags
//	12 base, superblock extension, EOF and root object header addresses
//	   checksum (4)
func (sb *Superblock) parseModern(buf []byte) error {
	sb.OffsetSize = buf[9]
	sb.LengthSize = buf[10]
	if err := validateSizes(sb.OffsetSize, sb.LengthSize); err != nil {
		return err
	}

	o := int(sb.OffsetSize)
	need := 12 + 4*o + 4
	if len(buf) < need {
		return utils.Truncated("superblock", need, len(buf))
	}

	pos := 12 + o // base address; the signature offset is authoritative.
	sb.SuperExtension = utils.DecodeUint(buf[pos:], o, sb.Endianness)
	pos += o
	sb.EOFAddress = utils.DecodeUint(buf[pos:], o, sb.Endianness)
	pos += o
	sb.RootGroup = utils.DecodeUint(buf[pos:], o, sb.Endianness)

	return nil
}

func validateSizes(offsetSize, lengthSize uint8) error {
	valid := func(v uint8) bool { return v == 2 || v == 4 || v == 8 }
	if !valid(offsetSize) || !valid(lengthSize) {
		return fmt.Errorf("invalid sizes: offset=%d, length=%d", offsetSize, lengthSize)
	}
	return nil
}

// DecodeAddress reads an OffsetSize-wide address from data.
func (sb *Superblock) DecodeAddress(data []byte) uint64 {
	return utils.DecodeUint(data, int(sb.OffsetSize), sb.Endianness)
}

// DecodeLength reads a LengthSize-wide length from data.
func (sb *Superblock) DecodeLength(data []byte) uint64 {
	return utils.DecodeUint(data, int(sb.LengthSize), sb.Endianness)
}

// IsUndefined reports whether addr is the undefined address for this file.
func (sb *Superblock) IsUndefined(addr uint64) bool {
	return utils.IsUndefined(addr, sb.OffsetSize)
}
