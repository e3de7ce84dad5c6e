package structures

import (
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// SymbolTableNode is a symbol table node ("SNOD"): the leaf storage of an
// old-style group B-tree.
type SymbolTableNode struct {
	Version uint8
	Entries []SymbolTableEntry
}

// ParseSymbolTableNode parses a symbol table node.
//
// Header: "SNOD", version (1), reserved (1), symbol count (2). Each entry is
// name offset (O), object header address (O), cache type (4), reserved (4)
// and a 16-byte scratch pad.
func ParseSymbolTableNode(r io.ReaderAt, address uint64, sb *core.Superblock) (*SymbolTableNode, error) {
	header, err := utils.ReadBytes(r, address, 8)
	if err != nil {
		return nil, utils.WrapError("SNOD header read failed", err)
	}
	if string(header[0:4]) != "SNOD" {
		return nil, fmt.Errorf("SNOD at 0x%x: %w", address, utils.ErrSignature)
	}
	if header[4] != 1 {
		return nil, fmt.Errorf("unsupported SNOD version: %d", header[4])
	}

	count := int(sb.Endianness.Uint16(header[6:8]))
	node := &SymbolTableNode{Version: header[4]}
	if count == 0 {
		return node, nil
	}

	o := int(sb.OffsetSize)
	entrySize := 2*o + 8 + 16
	data, err := utils.ReadBytes(r, address+8, count*entrySize)
	if err != nil {
		return nil, utils.WrapError("SNOD entries read failed", err)
	}

	node.Entries = make([]SymbolTableEntry, count)
	for i := range node.Entries {
		node.Entries[i] = decodeEntry(data[i*entrySize:], sb)
	}
	return node, nil
}

func decodeEntry(data []byte, sb *core.Superblock) SymbolTableEntry {
	o := int(sb.OffsetSize)
	e := SymbolTableEntry{
		LinkNameOffset: sb.DecodeAddress(data),
		ObjectAddress:  sb.DecodeAddress(data[o:]),
		CacheType:      sb.Endianness.Uint32(data[2*o:]),
	}
	if e.CacheType == CacheTypeSymbolTable {
		scratch := data[2*o+8:]
		e.CachedBTreeAddr = sb.DecodeAddress(scratch)
		e.CachedHeapAddr = sb.DecodeAddress(scratch[o:])
	}
	return e
}
