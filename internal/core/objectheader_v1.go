package core

import (
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// parseV1Header parses a version 1 object header.
//
// Prefix (16 bytes): version (1), reserved (1), message count (2),
// reference count (4), header data size (4), padding (4). Each message is
// type (2), size (2), flags (1), reserved (3), data; messages are aligned to
// 8 bytes. Continuation blocks hold bare messages in the same format.
func parseV1Header(r io.ReaderAt, headerAddr uint64, sb *Superblock) ([]*HeaderMessage, error) {
	prefix, err := utils.ReadBytes(r, headerAddr, 16)
	if err != nil {
		return nil, utils.WrapError("v1 header read failed", err)
	}

	numMessages := int(sb.Endianness.Uint16(prefix[2:4]))
	headerSize := uint64(sb.Endianness.Uint32(prefix[8:12]))
	if headerSize > utils.MaxChunkSize {
		return nil, fmt.Errorf("v1 header size too large: %d", headerSize)
	}

	block, err := utils.ReadBytes(r, headerAddr+16, int(headerSize))
	if err != nil {
		return nil, utils.WrapError("v1 header block read failed", err)
	}

	messages, err := parseV1Messages(block, sb)
	if err != nil {
		return nil, err
	}

	messages, err = followContinuations(messages, sb, func(c continuation) ([]*HeaderMessage, error) {
		data, err := utils.ReadBytes(r, c.Address, int(c.Length))
		if err != nil {
			return nil, err
		}
		return parseV1Messages(data, sb)
	})
	if err != nil {
		return nil, err
	}

	if len(messages) > utils.MaxMessageCount || (numMessages > 0 && len(messages) == 0) {
		return nil, fmt.Errorf("v1 header declares %d messages, found %d", numMessages, len(messages))
	}

	return dropNil(messages), nil
}

// dropNil removes nil (padding) messages.
func dropNil(messages []*HeaderMessage) []*HeaderMessage {
	out := messages[:0]
	for _, msg := range messages {
		if msg.Type != MsgNil {
			out = append(out, msg)
		}
	}
	return out
}

// parseV1Messages decodes the messages packed in one v1 block.
func parseV1Messages(block []byte, sb *Superblock) ([]*HeaderMessage, error) {
	var messages []*HeaderMessage
	pos := 0

	for pos+8 <= len(block) {
		msgType := MessageType(sb.Endianness.Uint16(block[pos : pos+2]))
		msgSize := int(sb.Endianness.Uint16(block[pos+2 : pos+4]))
		flags := block[pos+4]

		start := pos + 8
		if start+msgSize > len(block) {
			return nil, utils.Truncated(fmt.Sprintf("v1 message type 0x%x", uint16(msgType)), start+msgSize, len(block))
		}

		messages = append(messages, &HeaderMessage{
			Type:  msgType,
			Flags: flags,
			Data:  block[start : start+msgSize],
		})

		// Message data is padded to a multiple of 8 bytes.
		pos = start + ((msgSize + 7) &^ 7)
	}

	return messages, nil
}
