package structures

import (
	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// Cache type constants for symbol table entries.
const (
	// CacheTypeNone indicates no cached information.
	CacheTypeNone uint32 = 0
	// CacheTypeSymbolTable indicates cached B-tree and heap addresses.
	CacheTypeSymbolTable uint32 = 1
	// CacheTypeSoftLink indicates a soft link; the object address is undefined.
	CacheTypeSoftLink uint32 = 2
)

// SymbolTableEntry is one entry of a symbol table node or of the superblock
// root entry.
type SymbolTableEntry struct {
	LinkNameOffset  uint64
	ObjectAddress   uint64
	CacheType       uint32
	CachedBTreeAddr uint64
	CachedHeapAddr  uint64
}

// SymbolTableMessage is the symbol table message (0x0011) of an old-style
// group: the addresses of its B-tree and local heap.
type SymbolTableMessage struct {
	BTreeAddress uint64
	HeapAddress  uint64
}

// ParseSymbolTableMessage parses a symbol table message.
func ParseSymbolTableMessage(data []byte, sb *core.Superblock) (*SymbolTableMessage, error) {
	o := int(sb.OffsetSize)
	if len(data) < 2*o {
		return nil, utils.Truncated("symbol table message", 2*o, len(data))
	}
	return &SymbolTableMessage{
		BTreeAddress: sb.DecodeAddress(data),
		HeapAddress:  sb.DecodeAddress(data[o:]),
	}, nil
}
