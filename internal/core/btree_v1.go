package core

import (
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// maxBTreeDepth bounds recursion through corrupt or cyclic B-trees.
const maxBTreeDepth = 32

// BTreeV1Node is a version 1 B-tree node ("TREE").
type BTreeV1Node struct {
	NodeType     uint8 // 0 = group, 1 = raw data chunks
	NodeLevel    uint8 // 0 = leaf
	EntriesUsed  uint16
	LeftSibling  uint64
	RightSibling uint64

	// Keys has EntriesUsed+1 raw keys; Children has EntriesUsed addresses.
	Keys     [][]byte
	Children []uint64
}

// ReadBTreeV1Node reads one node. keySize is the size of a key for this
// node type: the heap offset width for groups, 8+8*dims for chunk trees.
func ReadBTreeV1Node(r io.ReaderAt, address uint64, sb *Superblock, keySize int) (*BTreeV1Node, error) {
	o := int(sb.OffsetSize)
	headerSize := 8 + 2*o

	header, err := utils.ReadBytes(r, address, headerSize)
	if err != nil {
		return nil, utils.WrapError("B-tree node header read failed", err)
	}
	if string(header[:4]) != "TREE" {
		return nil, fmt.Errorf("B-tree node at 0x%x: %w", address, utils.ErrSignature)
	}

	node := &BTreeV1Node{
		NodeType:     header[4],
		NodeLevel:    header[5],
		EntriesUsed:  sb.Endianness.Uint16(header[6:8]),
		LeftSibling:  sb.DecodeAddress(header[8:]),
		RightSibling: sb.DecodeAddress(header[8+o:]),
	}
	if node.EntriesUsed == 0 {
		return node, nil
	}

	n := int(node.EntriesUsed)
	body, err := utils.ReadBytes(r, address+uint64(headerSize), n*(keySize+o)+keySize)
	if err != nil {
		return nil, utils.WrapError("B-tree node body read failed", err)
	}

	node.Keys = make([][]byte, 0, n+1)
	node.Children = make([]uint64, 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		node.Keys = append(node.Keys, body[pos:pos+keySize])
		pos += keySize
		node.Children = append(node.Children, sb.DecodeAddress(body[pos:]))
		pos += o
	}
	node.Keys = append(node.Keys, body[pos:pos+keySize])

	return node, nil
}

// ChunkEntry locates one stored chunk of a chunked dataset.
type ChunkEntry struct {
	Offsets    []uint64 // element offset of the chunk origin, per axis
	Nbytes     uint32   // stored (filtered) size
	FilterMask uint32
	Address    uint64
}

// CollectChunks walks a raw-data chunk B-tree and returns every chunk.
// rank is the dataset rank; keys carry rank+1 offsets, the last being the
// byte offset within an element, which is always zero.
func CollectChunks(r io.ReaderAt, root uint64, sb *Superblock, rank int) ([]ChunkEntry, error) {
	keySize := 8 + 8*(rank+1)
	var chunks []ChunkEntry

	var walk func(addr uint64, depth int) error
	walk = func(addr uint64, depth int) error {
		if depth > maxBTreeDepth {
			return fmt.Errorf("chunk B-tree deeper than %d levels", maxBTreeDepth)
		}
		node, err := ReadBTreeV1Node(r, addr, sb, keySize)
		if err != nil {
			return err
		}
		if node.NodeType != 1 {
			return fmt.Errorf("expected chunk B-tree (type 1), got type %d", node.NodeType)
		}
		for i, child := range node.Children {
			if node.NodeLevel > 0 {
				if err := walk(child, depth+1); err != nil {
					return utils.WrapError(fmt.Sprintf("child node 0x%x", child), err)
				}
				continue
			}
			key := node.Keys[i]
			entry := ChunkEntry{
				Nbytes:     sb.Endianness.Uint32(key[0:4]),
				FilterMask: sb.Endianness.Uint32(key[4:8]),
				Address:    child,
				Offsets:    make([]uint64, rank),
			}
			for d := 0; d < rank; d++ {
				entry.Offsets[d] = sb.Endianness.Uint64(key[8+8*d:])
			}
			chunks = append(chunks, entry)
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return chunks, nil
}
