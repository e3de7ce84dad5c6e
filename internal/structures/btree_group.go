package structures

import (
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

const maxGroupTreeDepth = 32

// ReadGroupBTreeEntries walks a group B-tree (type 0) from its root and
// returns the entries of every symbol table node it reaches, in key order.
// Keys are heap offsets of Size-of-Lengths width; leaf children are SNODs
// and internal children are further B-tree nodes.
func ReadGroupBTreeEntries(r io.ReaderAt, address uint64, sb *core.Superblock) ([]SymbolTableEntry, error) {
	var entries []SymbolTableEntry
	visited := make(map[uint64]bool)

	var walk func(addr uint64, depth int) error
	walk = func(addr uint64, depth int) error {
		if depth > maxGroupTreeDepth {
			return fmt.Errorf("group B-tree deeper than %d levels", maxGroupTreeDepth)
		}
		if visited[addr] {
			return fmt.Errorf("group B-tree cycle at 0x%x", addr)
		}
		visited[addr] = true

		node, err := core.ReadBTreeV1Node(r, addr, sb, int(sb.LengthSize))
		if err != nil {
			return err
		}
		if node.NodeType != 0 {
			return fmt.Errorf("expected group B-tree (type 0), got type %d", node.NodeType)
		}

		for _, child := range node.Children {
			if sb.IsUndefined(child) || child == 0 {
				continue
			}
			if node.NodeLevel > 0 {
				if err := walk(child, depth+1); err != nil {
					return err
				}
				continue
			}
			snod, err := ParseSymbolTableNode(r, child, sb)
			if err != nil {
				return utils.WrapError(fmt.Sprintf("symbol table node 0x%x", child), err)
			}
			entries = append(entries, snod.Entries...)
		}
		return nil
	}

	if err := walk(address, 0); err != nil {
		return nil, utils.WrapError("group B-tree read failed", err)
	}
	return entries, nil
}
