// Package structures resolves HDF5 group membership: symbol tables, local
// heaps, group B-trees and link messages.
package structures

import (
	"fmt"
	"io"
	"sort"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// Link is one named hard link of a group.
type Link struct {
	Name    string
	Address uint64
}

// ReadLinks lists the hard links of the group described by header, sorted by
// name. Old-style groups (symbol table message) and compact new-style groups
// (link messages) are supported; dense link storage is not.
func ReadLinks(r io.ReaderAt, header *core.ObjectHeader, sb *core.Superblock) ([]Link, error) {
	if msg := header.Message(core.MsgSymbolTable); msg != nil {
		stab, err := ParseSymbolTableMessage(msg.Data, sb)
		if err != nil {
			return nil, err
		}
		return ReadSymbolTableLinks(r, stab, sb)
	}

	var links []Link
	for _, msg := range header.MessagesOf(core.MsgLink) {
		lm, err := ParseLinkMessage(msg.Data, sb)
		if err != nil {
			return nil, utils.WrapError("link message parse failed", err)
		}
		if !lm.IsHardLink() {
			continue
		}
		links = append(links, Link{Name: lm.Name, Address: lm.ObjectAddress})
	}

	if len(links) == 0 {
		if msg := header.Message(core.MsgLinkInfo); msg != nil && hasDenseLinks(msg.Data, sb) {
			return nil, fmt.Errorf("dense link storage: %w", utils.ErrUnsupported)
		}
	}

	sort.Slice(links, func(i, j int) bool { return links[i].Name < links[j].Name })
	return links, nil
}

// ReadSymbolTableLinks resolves every entry of an old-style group through its
// B-tree and local heap.
func ReadSymbolTableLinks(r io.ReaderAt, stab *SymbolTableMessage, sb *core.Superblock) ([]Link, error) {
	heap, err := LoadLocalHeap(r, stab.HeapAddress, sb)
	if err != nil {
		return nil, err
	}
	entries, err := ReadGroupBTreeEntries(r, stab.BTreeAddress, sb)
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(entries))
	for _, e := range entries {
		if e.CacheType == CacheTypeSoftLink || sb.IsUndefined(e.ObjectAddress) {
			continue
		}
		name, err := heap.GetString(e.LinkNameOffset)
		if err != nil {
			return nil, utils.WrapError("link name read failed", err)
		}
		links = append(links, Link{Name: name, Address: e.ObjectAddress})
	}
	return links, nil
}

// hasDenseLinks reports whether a link info message points at a fractal heap.
// Layout: version, flags, [max creation index (8)], fractal heap address, ...
func hasDenseLinks(data []byte, sb *core.Superblock) bool {
	if len(data) < 2 {
		return false
	}
	pos := 2
	if data[1]&0x01 != 0 {
		pos += 8
	}
	if len(data) < pos+int(sb.OffsetSize) {
		return false
	}
	return !sb.IsUndefined(sb.DecodeAddress(data[pos:]))
}
