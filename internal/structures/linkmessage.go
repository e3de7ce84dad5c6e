package structures

import (
	"encoding/binary"
	"fmt"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// LinkType represents the type of link.
type LinkType uint8

// Link type constants.
const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// LinkMessage is a parsed link message (0x0006) of a compact group.
type LinkMessage struct {
	Version       uint8
	Flags         uint8
	Type          LinkType
	Name          string
	CreationOrder int64
	ObjectAddress uint64 // hard links
	TargetPath    string // soft links
}

// Link message flag bits.
const (
	flagNameSizeMask       = 0x03
	flagStoreCreationOrder = 0x04
	flagStoreLinkType      = 0x08
	flagStoreCharset       = 0x10
)

// ParseLinkMessage parses a version 1 link message.
//
// Layout: version, flags, [link type], [creation order (8)], [charset],
// name length (1, 2, 4 or 8 bytes per flags bits 0-1), name, link info.
func ParseLinkMessage(data []byte, sb *core.Superblock) (*LinkMessage, error) {
	if len(data) < 2 {
		return nil, utils.Truncated("link message", 2, len(data))
	}

	msg := &LinkMessage{Version: data[0], Flags: data[1]}
	if msg.Version != 1 {
		return nil, fmt.Errorf("unsupported link message version: %d", msg.Version)
	}

	pos := 2
	take := func(n int, what string) ([]byte, error) {
		if pos+n > len(data) {
			return nil, utils.Truncated("link "+what, pos+n, len(data))
		}
		out := data[pos : pos+n]
		pos += n
		return out, nil
	}

	if msg.Flags&flagStoreLinkType != 0 {
		b, err := take(1, "type")
		if err != nil {
			return nil, err
		}
		msg.Type = LinkType(b[0])
	}
	if msg.Flags&flagStoreCreationOrder != 0 {
		b, err := take(8, "creation order")
		if err != nil {
			return nil, err
		}
		//nolint:gosec // G115: creation order is stored as a signed 64-bit value
		msg.CreationOrder = int64(binary.LittleEndian.Uint64(b))
	}
	if msg.Flags&flagStoreCharset != 0 {
		if _, err := take(1, "charset"); err != nil {
			return nil, err
		}
	}

	width := 1 << (msg.Flags & flagNameSizeMask)
	b, err := take(width, "name length")
	if err != nil {
		return nil, err
	}
	nameLen := utils.DecodeUint(b, width, binary.LittleEndian)
	if nameLen == 0 || nameLen > uint64(len(data)) {
		return nil, fmt.Errorf("invalid link name length: %d", nameLen)
	}
	name, err := take(int(nameLen), "name")
	if err != nil {
		return nil, err
	}
	msg.Name = string(name)

	switch msg.Type {
	case LinkTypeHard:
		b, err := take(int(sb.OffsetSize), "address")
		if err != nil {
			return nil, err
		}
		msg.ObjectAddress = sb.DecodeAddress(b)
	case LinkTypeSoft:
		b, err := take(2, "target length")
		if err != nil {
			return nil, err
		}
		target, err := take(int(binary.LittleEndian.Uint16(b)), "target")
		if err != nil {
			return nil, err
		}
		msg.TargetPath = string(target)
	}

	return msg, nil
}

// IsHardLink reports whether the link points directly at an object header.
func (m *LinkMessage) IsHardLink() bool {
	return m.Type == LinkTypeHard
}
