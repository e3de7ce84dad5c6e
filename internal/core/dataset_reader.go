package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// DatasetInfo is the metadata of a dataset, available without reading data.
type DatasetInfo struct {
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Layout    *DataLayoutMessage
	Filters   *FilterPipelineMessage
}

// ReadDatasetInfo extracts datatype, dataspace, layout and filter messages.
func ReadDatasetInfo(header *ObjectHeader, sb *Superblock) (*DatasetInfo, error) {
	typeMsg := header.Message(MsgDatatype)
	spaceMsg := header.Message(MsgDataspace)
	layoutMsg := header.Message(MsgDataLayout)

	switch {
	case typeMsg == nil:
		return nil, errors.New("datatype message not found")
	case spaceMsg == nil:
		return nil, errors.New("dataspace message not found")
	case layoutMsg == nil:
		return nil, errors.New("data layout message not found")
	}

	info := &DatasetInfo{}
	var err error
	if info.Datatype, err = ParseDatatypeMessage(typeMsg.Data); err != nil {
		return nil, utils.WrapError("datatype parse failed", err)
	}
	if info.Dataspace, err = ParseDataspaceMessage(spaceMsg.Data, sb.LengthSize); err != nil {
		return nil, utils.WrapError("dataspace parse failed", err)
	}
	if info.Layout, err = ParseDataLayoutMessage(layoutMsg.Data, sb); err != nil {
		return nil, utils.WrapError("layout parse failed", err)
	}
	if msg := header.Message(MsgFilterPipeline); msg != nil {
		if info.Filters, err = ParseFilterPipelineMessage(msg.Data); err != nil {
			return nil, utils.WrapError("filter pipeline parse failed", err)
		}
	}
	return info, nil
}

// ReadDatasetRaw reads the full raw payload of a dataset in storage
// (row-major) element order. Unallocated storage reads as zeros.
func ReadDatasetRaw(r io.ReaderAt, info *DatasetInfo, sb *Superblock) ([]byte, error) {
	elemSize := uint64(info.Datatype.Size)
	if elemSize == 0 {
		return nil, errors.New("datatype has zero size")
	}
	if info.Dataspace.Type == DataspaceNull {
		return []byte{}, nil
	}

	total, err := utils.StorageSize(info.Dataspace.Dimensions, elemSize, utils.MaxDatasetSize)
	if err != nil {
		return nil, utils.WrapError("dataset size", err)
	}
	if total == 0 {
		return []byte{}, nil
	}

	layout := info.Layout
	switch layout.Class {
	case LayoutCompact:
		if uint64(len(layout.CompactData)) < total {
			return nil, utils.Truncated("compact data", int(total), len(layout.CompactData))
		}
		return append([]byte(nil), layout.CompactData[:total]...), nil

	case LayoutContiguous:
		if sb.IsUndefined(layout.DataAddress) {
			return make([]byte, total), nil
		}
		if layout.DataSize < total {
			return nil, fmt.Errorf("contiguous storage holds %d bytes, need %d", layout.DataSize, total)
		}
		data, err := utils.ReadBytes(r, layout.DataAddress, int(total))
		if err != nil {
			return nil, utils.WrapError("contiguous data read failed", err)
		}
		return data, nil

	case LayoutChunked:
		return readChunked(r, info, sb, total)

	default:
		return nil, fmt.Errorf("layout class %d: %w", layout.Class, utils.ErrUnsupported)
	}
}

// readChunked assembles every stored chunk into one row-major buffer.
func readChunked(r io.ReaderAt, info *DatasetInfo, sb *Superblock, total uint64) ([]byte, error) {
	dims := info.Dataspace.Dimensions
	rank := len(dims)
	layout := info.Layout
	if len(layout.ChunkDims) != rank+1 {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(layout.ChunkDims)-1, rank)
	}
	chunkDims := layout.ChunkDims[:rank]
	elemSize := int(info.Datatype.Size)

	chunkBytes, err := utils.StorageSize(chunkDims, uint64(elemSize), utils.MaxChunkSize)
	if err != nil {
		return nil, utils.WrapError("chunk size", err)
	}

	out := make([]byte, total)
	if sb.IsUndefined(layout.DataAddress) {
		return out, nil
	}

	chunks, err := CollectChunks(r, layout.DataAddress, sb, rank)
	if err != nil {
		return nil, utils.WrapError("chunk index read failed", err)
	}

	for _, c := range chunks {
		stored, err := utils.ReadBytes(r, c.Address, int(c.Nbytes))
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("chunk at 0x%x read failed", c.Address), err)
		}
		raw, err := info.Filters.ApplyFilters(stored, c.FilterMask)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("chunk at 0x%x decode failed", c.Address), err)
		}
		if uint64(len(raw)) < chunkBytes {
			return nil, utils.Truncated("decoded chunk", int(chunkBytes), len(raw))
		}
		copyChunk(out, raw, dims, chunkDims, c.Offsets, elemSize)
	}

	return out, nil
}

// copyChunk scatters one decoded chunk into the full array, clipping the
// parts of edge chunks that fall outside the dataset extent.
func copyChunk(dst, chunk []byte, dims, chunkDims, origin []uint64, elemSize int) {
	rank := len(dims)
	if rank == 0 {
		copy(dst, chunk[:elemSize])
		return
	}
	for d := 0; d < rank; d++ {
		if origin[d] >= dims[d] {
			return
		}
	}

	last := rank - 1
	run := chunkDims[last]
	if origin[last]+run > dims[last] {
		run = dims[last] - origin[last]
	}
	runBytes := int(run) * elemSize

	// Row-major strides, in elements, of the dataset and of the chunk.
	dstStride := make([]uint64, rank)
	srcStride := make([]uint64, rank)
	dstStride[last], srcStride[last] = 1, 1
	for d := last - 1; d >= 0; d-- {
		dstStride[d] = dstStride[d+1] * dims[d+1]
		srcStride[d] = srcStride[d+1] * chunkDims[d+1]
	}

	idx := make([]uint64, rank)
	for {
		var src, dstOff uint64
		inside := true
		for d := 0; d < last; d++ {
			if origin[d]+idx[d] >= dims[d] {
				inside = false
				break
			}
			src += idx[d] * srcStride[d]
			dstOff += (origin[d] + idx[d]) * dstStride[d]
		}
		if inside {
			dstOff += origin[last]
			s := int(src) * elemSize
			t := int(dstOff) * elemSize
			copy(dst[t:t+runBytes], chunk[s:s+runBytes])
		}

		// Advance the outer index (all axes but the last).
		d := last - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < chunkDims[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}
