package core

import (
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// ObjectType identifies the kind of object an object header describes.
type ObjectType uint8

// Object type constants.
const (
	ObjectTypeUnknown ObjectType = iota
	ObjectTypeGroup
	ObjectTypeDataset
	ObjectTypeDatatype
)

// String returns the object type name.
func (t ObjectType) String() string {
	switch t {
	case ObjectTypeGroup:
		return "group"
	case ObjectTypeDataset:
		return "dataset"
	case ObjectTypeDatatype:
		return "datatype"
	default:
		return "unknown"
	}
}

// MessageType identifies a header message.
type MessageType uint16

// Header message types used by the reader.
const (
	MsgNil            MessageType = 0x00
	MsgDataspace      MessageType = 0x01
	MsgLinkInfo       MessageType = 0x02
	MsgDatatype       MessageType = 0x03
	MsgFillValueOld   MessageType = 0x04
	MsgFillValue      MessageType = 0x05
	MsgLink           MessageType = 0x06
	MsgDataLayout     MessageType = 0x08
	MsgGroupInfo      MessageType = 0x0A
	MsgFilterPipeline MessageType = 0x0B
	MsgAttribute      MessageType = 0x0C
	MsgName           MessageType = 0x0D
	MsgModTime        MessageType = 0x0E
	MsgAttributeInfo  MessageType = 0x0F
	MsgContinuation   MessageType = 0x10
	MsgSymbolTable    MessageType = 0x11
)

// HeaderMessage is one raw message of an object header.
type HeaderMessage struct {
	Type  MessageType
	Flags uint8
	Data  []byte
}

// ObjectHeader is a parsed object header. Messages from every continuation
// block are flattened in file order.
type ObjectHeader struct {
	Address    uint64
	Version    uint8
	Type       ObjectType
	Messages   []*HeaderMessage
	Attributes []*Attribute
}

// ReadObjectHeader reads the object header at address. Version 1 headers
// (no signature) and version 2 headers ("OHDR") are supported, including
// continuation blocks.
func ReadObjectHeader(r io.ReaderAt, address uint64, sb *Superblock) (*ObjectHeader, error) {
	if address == 0 || sb.IsUndefined(address) {
		return nil, fmt.Errorf("invalid object header address 0x%x", address)
	}

	prefix, err := utils.ReadBytes(r, address, 4)
	if err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}

	header := &ObjectHeader{Address: address}

	switch {
	case string(prefix) == "OHDR":
		header.Version = 2
		header.Messages, err = parseV2Header(r, address, sb)
	case prefix[0] == 1 && prefix[1] == 0:
		header.Version = 1
		header.Messages, err = parseV1Header(r, address, sb)
	default:
		return nil, fmt.Errorf("object header at 0x%x: % x: %w", address, prefix, utils.ErrSignature)
	}
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("v%d header parse failed", header.Version), err)
	}

	header.Type = determineObjectType(header.Messages)

	for _, msg := range header.Messages {
		if msg.Type != MsgAttribute {
			continue
		}
		attr, err := ParseAttributeMessage(msg.Data, sb)
		if err != nil {
			// A single malformed attribute does not hide the object.
			continue
		}
		header.Attributes = append(header.Attributes, attr)
	}

	return header, nil
}

func determineObjectType(messages []*HeaderMessage) ObjectType {
	for _, msg := range messages {
		switch msg.Type {
		case MsgSymbolTable, MsgLinkInfo, MsgLink, MsgGroupInfo:
			return ObjectTypeGroup
		case MsgDataspace, MsgDataLayout:
			return ObjectTypeDataset
		}
	}
	for _, msg := range messages {
		if msg.Type == MsgDatatype {
			return ObjectTypeDatatype
		}
	}
	// An empty v1 group header has no messages besides nil padding.
	return ObjectTypeUnknown
}

// Message returns the first message of type t, or nil.
func (h *ObjectHeader) Message(t MessageType) *HeaderMessage {
	for _, msg := range h.Messages {
		if msg.Type == t {
			return msg
		}
	}
	return nil
}

// MessagesOf returns every message of type t in header order.
func (h *ObjectHeader) MessagesOf(t MessageType) []*HeaderMessage {
	var out []*HeaderMessage
	for _, msg := range h.Messages {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

// Attribute returns the attribute with the given name, or nil.
func (h *ObjectHeader) Attribute(name string) *Attribute {
	for _, a := range h.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// HasDenseAttributes reports whether the header stores attributes in a
// fractal heap, which this reader does not follow.
func (h *ObjectHeader) HasDenseAttributes(sb *Superblock) bool {
	msg := h.Message(MsgAttributeInfo)
	if msg == nil || len(msg.Data) < 2 {
		return false
	}
	// version, flags, optional max creation index, fractal heap address
	pos := 2
	if msg.Data[1]&0x01 != 0 {
		pos += 2
	}
	if len(msg.Data) < pos+int(sb.OffsetSize) {
		return false
	}
	return !sb.IsUndefined(sb.DecodeAddress(msg.Data[pos:]))
}

// continuation is the target of a continuation message.
type continuation struct {
	Address uint64
	Length  uint64
}

func parseContinuation(data []byte, sb *Superblock) (continuation, error) {
	need := int(sb.OffsetSize) + int(sb.LengthSize)
	if len(data) < need {
		return continuation{}, utils.Truncated("continuation message", need, len(data))
	}
	c := continuation{
		Address: sb.DecodeAddress(data),
		Length:  sb.DecodeLength(data[sb.OffsetSize:]),
	}
	if c.Length == 0 {
		return continuation{}, fmt.Errorf("empty continuation block at 0x%x", c.Address)
	}
	if c.Length > utils.MaxChunkSize {
		return continuation{}, fmt.Errorf("continuation block too large: %d", c.Length)
	}
	return c, nil
}

// followContinuations parses every continuation block reachable from msgs
// with parseBlock, appending the messages it yields.
func followContinuations(
	msgs []*HeaderMessage,
	sb *Superblock,
	parseBlock func(c continuation) ([]*HeaderMessage, error),
) ([]*HeaderMessage, error) {
	seen := make(map[uint64]bool)
	for i := 0; i < len(msgs); i++ {
		if len(msgs) > utils.MaxMessageCount {
			return nil, fmt.Errorf("object header exceeds %d messages", utils.MaxMessageCount)
		}
		if msgs[i].Type != MsgContinuation {
			continue
		}
		c, err := parseContinuation(msgs[i].Data, sb)
		if err != nil {
			return nil, err
		}
		if seen[c.Address] {
			return nil, fmt.Errorf("continuation loop at 0x%x", c.Address)
		}
		seen[c.Address] = true

		more, err := parseBlock(c)
		if err != nil {
			return nil, utils.WrapError("continuation block parse failed", err)
		}
		msgs = append(msgs, more...)
	}
	return msgs, nil
}
