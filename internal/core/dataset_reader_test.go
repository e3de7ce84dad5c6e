package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	mock "github.com/scigolib/mat73/internal/testing"
)

func TestReadDatasetRaw_Contiguous(t *testing.T) {
	b := mock.NewH5Builder(512)
	payload := mock.Float64s(1, 2, 3, 4, 5, 6)
	ds := b.Dataset(mock.Float64, []uint64{2, 3}, payload)
	root := b.Group([]mock.Entry{{Name: "x", Address: ds}})
	sb, r := sectionFile(t, b.Finish(root))

	h, err := ReadObjectHeader(r, ds, sb)
	require.NoError(t, err)
	info, err := ReadDatasetInfo(h, sb)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3}, info.Dataspace.Dimensions)
	require.Equal(t, "float64", info.Datatype.String())
	require.Nil(t, info.Filters)

	raw, err := ReadDatasetRaw(r, info, sb)
	require.NoError(t, err)
	require.Equal(t, payload, raw)
}

func TestReadDatasetRaw_Chunked(t *testing.T) {
	// 5x3 uint16 in 2x2 chunks: edge chunks are clipped on both axes.
	values := make([]uint16, 15)
	for i := range values {
		values[i] = uint16(i + 1)
	}
	payload := mock.Uint16s(values...)

	b := mock.NewH5Builder(0)
	ds := b.ChunkedDataset(mock.Uint16, []uint64{5, 3}, []uint64{2, 2}, payload)
	root := b.Group([]mock.Entry{{Name: "c", Address: ds}})
	sb, r := sectionFile(t, b.Finish(root))

	h, err := ReadObjectHeader(r, ds, sb)
	require.NoError(t, err)
	info, err := ReadDatasetInfo(h, sb)
	require.NoError(t, err)
	require.NotNil(t, info.Filters)
	require.Equal(t, []uint64{2, 2, 2}, info.Layout.ChunkDims)

	chunks, err := CollectChunks(r, info.Layout.DataAddress, sb, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 6)
	require.Equal(t, []uint64{4, 2}, chunks[5].Offsets)

	raw, err := ReadDatasetRaw(r, info, sb)
	require.NoError(t, err)
	require.Equal(t, payload, raw)
}

func TestReadDatasetRaw_Empty(t *testing.T) {
	b := mock.NewH5Builder(512)
	ds := b.Dataset(mock.Uint64, []uint64{2}, mock.Concat(mock.LE64(0), mock.LE64(0)))
	empty := b.Dataset(mock.Float64, []uint64{0, 0}, nil)
	root := b.Group([]mock.Entry{{Name: "a", Address: ds}, {Name: "e", Address: empty}})
	sb, r := sectionFile(t, b.Finish(root))

	h, err := ReadObjectHeader(r, empty, sb)
	require.NoError(t, err)
	info, err := ReadDatasetInfo(h, sb)
	require.NoError(t, err)
	raw, err := ReadDatasetRaw(r, info, sb)
	require.NoError(t, err)
	require.Empty(t, raw)
}

func TestReadDatasetInfo_MissingMessages(t *testing.T) {
	sb := testSuperblock()
	h := &ObjectHeader{Messages: []*HeaderMessage{{Type: MsgDataspace, Data: scalarSpace()}}}

	_, err := ReadDatasetInfo(h, sb)
	require.ErrorContains(t, err, "datatype message not found")
}

func TestReadDatasetRaw_Compact(t *testing.T) {
	sb := testSuperblock()
	h := &ObjectHeader{Messages: []*HeaderMessage{
		{Type: MsgDataspace, Data: simpleSpace(2)},
		{Type: MsgDatatype, Data: mock.Concat([]byte{0x10, 0, 0, 0}, mock.LE32(2))},
		{Type: MsgDataLayout, Data: mock.Concat([]byte{3, 0}, mock.LE16(4), []byte{7, 0, 9, 0})},
	}}
	info, err := ReadDatasetInfo(h, sb)
	require.NoError(t, err)

	raw, err := ReadDatasetRaw(nil, info, sb)
	require.NoError(t, err)
	require.Equal(t, []byte{7, 0, 9, 0}, raw)
}

func TestReadDatasetRaw_ContiguousTooSmall(t *testing.T) {
	sb := testSuperblock()
	h := &ObjectHeader{Messages: []*HeaderMessage{
		{Type: MsgDataspace, Data: simpleSpace(4)},
		{Type: MsgDatatype, Data: float64Type()},
		{Type: MsgDataLayout, Data: mock.Concat([]byte{3, 1}, mock.LE64(0x40), mock.LE64(8))},
	}}
	info, err := ReadDatasetInfo(h, sb)
	require.NoError(t, err)

	_, err = ReadDatasetRaw(mock.NewMockReaderAt(make([]byte, 256)), info, sb)
	require.ErrorContains(t, err, "contiguous storage holds 8 bytes")
}

func TestCopyChunk_Clipping(t *testing.T) {
	dims := []uint64{3, 3}
	chunkDims := []uint64{2, 2}
	dst := make([]byte, 9)
	copyChunk(dst, []byte{1, 2, 3, 4}, dims, chunkDims, []uint64{2, 2}, 1)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 1}, dst)

	copyChunk(dst, []byte{5, 6, 7, 8}, dims, chunkDims, []uint64{0, 2}, 1)
	require.Equal(t, []byte{0, 0, 5, 0, 0, 7, 0, 0, 1}, dst)
}
