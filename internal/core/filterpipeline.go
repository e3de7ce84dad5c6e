package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/scigolib/mat73/internal/utils"
)

// FilterID represents HDF5 filter identifiers.
type FilterID uint16

// Filter identifiers.
const (
	FilterDeflate     FilterID = 1
	FilterShuffle     FilterID = 2
	FilterFletcher    FilterID = 3
	FilterSZIP        FilterID = 4
	FilterNBit        FilterID = 5
	FilterScaleOffset FilterID = 6
)

// ErrChecksum reports a Fletcher32 mismatch.
var ErrChecksum = errors.New("fletcher32 checksum mismatch")

// FilterPipelineMessage lists the filters applied to each chunk, in the
// order they were applied when writing.
type FilterPipelineMessage struct {
	Version uint8
	Filters []Filter
}

// Filter is one pipeline stage.
type Filter struct {
	ID         FilterID
	Flags      uint16
	Name       string
	ClientData []uint32
}

// Optional reports whether a failure of this filter may be ignored.
func (f Filter) Optional() bool {
	return f.Flags&0x0001 != 0
}

// ParseFilterPipelineMessage parses filter pipeline message versions 1 and 2.
//
// Version 1 stores a name length for every filter and pads names and client
// data to 8 bytes. Version 2 stores a name only for filter IDs >= 256 and
// has no padding.
func ParseFilterPipelineMessage(data []byte) (*FilterPipelineMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("filter pipeline message too short")
	}

	p := &FilterPipelineMessage{Version: data[0]}
	count := int(data[1])

	pos := 2
	switch p.Version {
	case 1:
		pos += 6
	case 2:
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version: %d", p.Version)
	}

	le := binary.LittleEndian
	need := func(n int, what string) error {
		if pos+n > len(data) {
			return utils.Truncated(what, pos+n, len(data))
		}
		return nil
	}

	for i := 0; i < count; i++ {
		if err := need(2, "filter id"); err != nil {
			return nil, err
		}
		f := Filter{ID: FilterID(le.Uint16(data[pos:]))}
		pos += 2

		nameLen := 0
		if p.Version == 1 || f.ID >= 256 {
			if err := need(2, "filter name length"); err != nil {
				return nil, err
			}
			nameLen = int(le.Uint16(data[pos:]))
			pos += 2
		}

		if err := need(4, "filter flags"); err != nil {
			return nil, err
		}
		f.Flags = le.Uint16(data[pos:])
		numValues := int(le.Uint16(data[pos+2:]))
		pos += 4

		if nameLen > 0 {
			stored := nameLen
			if p.Version == 1 {
				stored = (nameLen + 7) &^ 7
			}
			if err := need(stored, "filter name"); err != nil {
				return nil, err
			}
			f.Name = string(bytes.TrimRight(data[pos:pos+nameLen], "\x00"))
			pos += stored
		}

		if err := need(numValues*4, "filter client data"); err != nil {
			return nil, err
		}
		f.ClientData = make([]uint32, numValues)
		for j := range f.ClientData {
			f.ClientData[j] = le.Uint32(data[pos:])
			pos += 4
		}
		if p.Version == 1 && numValues%2 == 1 {
			pos += 4
		}

		p.Filters = append(p.Filters, f)
	}

	return p, nil
}

// ApplyFilters reverses the pipeline on one chunk. Bit i of mask set means
// filter i was skipped when the chunk was written.
func (p *FilterPipelineMessage) ApplyFilters(data []byte, mask uint32) ([]byte, error) {
	if p == nil {
		return data, nil
	}

	out := data
	for i := len(p.Filters) - 1; i >= 0; i-- {
		if i < 32 && mask&(1<<uint(i)) != 0 {
			continue
		}
		f := p.Filters[i]
		next, err := applyFilter(f, out)
		if err != nil {
			if f.Optional() {
				continue
			}
			return nil, fmt.Errorf("filter %d (%s) failed: %w", f.ID, filterName(f.ID), err)
		}
		out = next
	}
	return out, nil
}

func applyFilter(f Filter, data []byte) ([]byte, error) {
	switch f.ID {
	case FilterDeflate:
		return inflate(data)
	case FilterShuffle:
		if len(f.ClientData) == 0 {
			return nil, errors.New("shuffle filter missing element size")
		}
		return unshuffle(data, int(f.ClientData[0]))
	case FilterFletcher:
		return verifyFletcher32(data)
	default:
		return nil, fmt.Errorf("filter %s: %w", filterName(f.ID), utils.ErrUnsupported)
	}
}

// inflate decodes a zlib stream.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader creation failed: %w", err)
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(io.LimitReader(zr, utils.MaxChunkSize+1))
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	if len(out) > utils.MaxChunkSize {
		return nil, fmt.Errorf("inflated chunk exceeds %d bytes", utils.MaxChunkSize)
	}
	return out, nil
}

// unshuffle regroups bytes stored as [all byte 0][all byte 1]... back into
// elements. A trailing remainder shorter than one element is copied as is.
func unshuffle(data []byte, elemSize int) ([]byte, error) {
	if elemSize <= 0 {
		return nil, fmt.Errorf("invalid shuffle element size: %d", elemSize)
	}
	if elemSize == 1 || len(data) < elemSize {
		return data, nil
	}

	n := len(data) / elemSize
	out := make([]byte, len(data))
	for b := 0; b < elemSize; b++ {
		src := data[b*n : (b+1)*n]
		for e, v := range src {
			out[e*elemSize+b] = v
		}
	}
	copy(out[n*elemSize:], data[n*elemSize:])
	return out, nil
}

// verifyFletcher32 checks and strips the trailing 4-byte checksum. Both byte
// orders of the stored sum are accepted; old writers stored it swapped.
func verifyFletcher32(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("data too short for Fletcher32 checksum")
	}
	body := data[:len(data)-4]
	stored := data[len(data)-4:]
	sum := Fletcher32(body)
	if binary.LittleEndian.Uint32(stored) != sum && binary.BigEndian.Uint32(stored) != sum {
		return nil, ErrChecksum
	}
	return body, nil
}

// Fletcher32 computes the HDF5 variant of the Fletcher checksum over 16-bit
// big-endian words.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	words := len(data) / 2
	pos := 0
	for words > 0 {
		block := words
		if block > 360 {
			block = 360
		}
		words -= block
		for ; block > 0; block-- {
			sum1 += uint32(data[pos])<<8 | uint32(data[pos+1])
			pos += 2
			sum2 += sum1
		}
		sum1 = (sum1 & 0xffff) + (sum1 >> 16)
		sum2 = (sum2 & 0xffff) + (sum2 >> 16)
	}
	if len(data)%2 == 1 {
		sum1 += uint32(data[pos]) << 8
		sum2 += sum1
		sum1 = (sum1 & 0xffff) + (sum1 >> 16)
		sum2 = (sum2 & 0xffff) + (sum2 >> 16)
	}
	sum1 = (sum1 & 0xffff) + (sum1 >> 16)
	sum2 = (sum2 & 0xffff) + (sum2 >> 16)
	return sum2<<16 | sum1
}

func filterName(id FilterID) string {
	switch id {
	case FilterDeflate:
		return "deflate"
	case FilterShuffle:
		return "shuffle"
	case FilterFletcher:
		return "fletcher32"
	case FilterSZIP:
		return "szip"
	case FilterNBit:
		return "nbit"
	case FilterScaleOffset:
		return "scaleoffset"
	default:
		return fmt.Sprintf("filter-%d", id)
	}
}
