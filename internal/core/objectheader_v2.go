package core

import (
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// Version 2 header flag bits.
const (
	ohdrChunkSizeMask    = 0x03
	ohdrTrackCreation    = 0x04
	ohdrPhaseChange      = 0x10
	ohdrStoreTimes       = 0x20
	ohdrSignatureLength  = 4
	ohdrChecksumLength   = 4
	ohdrMaxPrefixLength  = 4 + 1 + 1 + 16 + 4 + 8
	ohdrContinuationSign = "OCHK"
)

// parseV2Header parses a version 2 object header.
//
// Prefix: "OHDR", version (1), flags (1), optional times (16), optional
// attribute phase change values (4), size of chunk 0 (1, 2, 4 or 8 bytes
// per flags bits 0-1). Messages are type (1), size (2), flags (1),
// optional creation order (2), data. The chunk is followed by a checksum.
// Continuation blocks start with "OCHK" and end with a checksum.
// Checksums are not verified.
func parseV2Header(r io.ReaderAt, headerAddr uint64, sb *Superblock) ([]*HeaderMessage, error) {
	prefix := make([]byte, ohdrMaxPrefixLength)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	n, err := r.ReadAt(prefix, int64(headerAddr))
	if n < 7 {
		return nil, utils.WrapError("v2 header read failed", err)
	}
	prefix = prefix[:n]

	version := prefix[4]
	if version != 2 {
		return nil, fmt.Errorf("unsupported OHDR version: %d", version)
	}
	flags := prefix[5]

	pos := 6
	if flags&ohdrStoreTimes != 0 {
		pos += 16
	}
	if flags&ohdrPhaseChange != 0 {
		pos += 4
	}

	sizeBytes := 1 << (flags & ohdrChunkSizeMask)
	if pos+sizeBytes > len(prefix) {
		return nil, utils.Truncated("OHDR prefix", pos+sizeBytes, len(prefix))
	}
	chunkSize := utils.DecodeUint(prefix[pos:], sizeBytes, sb.Endianness)
	pos += sizeBytes

	if chunkSize > utils.MaxChunkSize {
		return nil, fmt.Errorf("OHDR chunk too large: %d", chunkSize)
	}

	//nolint:gosec // G115: pos is bounded by ohdrMaxPrefixLength
	block, err := utils.ReadBytes(r, headerAddr+uint64(pos), int(chunkSize))
	if err != nil {
		return nil, utils.WrapError("OHDR chunk read failed", err)
	}

	trackCreation := flags&ohdrTrackCreation != 0
	messages, err := parseV2Messages(block, trackCreation, sb)
	if err != nil {
		return nil, err
	}

	messages, err = followContinuations(messages, sb, func(c continuation) ([]*HeaderMessage, error) {
		data, err := utils.ReadBytes(r, c.Address, int(c.Length))
		if err != nil {
			return nil, err
		}
		if len(data) < ohdrSignatureLength+ohdrChecksumLength {
			return nil, utils.Truncated("OCHK block", ohdrSignatureLength+ohdrChecksumLength, len(data))
		}
		if string(data[:ohdrSignatureLength]) != ohdrContinuationSign {
			return nil, fmt.Errorf("continuation at 0x%x: %w", c.Address, utils.ErrSignature)
		}
		return parseV2Messages(data[ohdrSignatureLength:len(data)-ohdrChecksumLength], trackCreation, sb)
	})
	if err != nil {
		return nil, err
	}

	return dropNil(messages), nil
}

// parseV2Messages decodes the messages packed in one v2 chunk. Trailing bytes
// too short to hold a message header are gap space.
func parseV2Messages(block []byte, trackCreation bool, sb *Superblock) ([]*HeaderMessage, error) {
	headerLen := 4
	if trackCreation {
		headerLen += 2
	}

	var messages []*HeaderMessage
	pos := 0
	for pos+headerLen <= len(block) {
		msgType := MessageType(block[pos])
		msgSize := int(sb.Endianness.Uint16(block[pos+1 : pos+3]))
		flags := block[pos+3]

		start := pos + headerLen
		if start+msgSize > len(block) {
			return nil, utils.Truncated(fmt.Sprintf("v2 message type 0x%x", uint16(msgType)), start+msgSize, len(block))
		}

		messages = append(messages, &HeaderMessage{
			Type:  msgType,
			Flags: flags,
			Data:  block[start : start+msgSize],
		})
		pos = start + msgSize
	}
	return messages, nil
}
