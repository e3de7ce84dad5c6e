package core

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	mock "github.com/scigolib/mat73/internal/testing"
	"github.com/scigolib/mat73/internal/utils"
)

func testSuperblock() *Superblock {
	return &Superblock{OffsetSize: 8, LengthSize: 8, Endianness: binary.LittleEndian}
}

func v1Message(typ uint16, data []byte) []byte {
	data = mock.Pad8(append([]byte(nil), data...))
	return mock.Concat(mock.LE16(typ), mock.LE16(uint16(len(data))), []byte{0, 0, 0, 0}, data)
}

func v1Header(messages ...[]byte) []byte {
	body := mock.Concat(messages...)
	return mock.Concat([]byte{1, 0}, mock.LE16(uint16(len(messages))), mock.LE32(1), mock.LE32(uint32(len(body))), mock.LE32(0), body)
}

func scalarSpace() []byte { return []byte{1, 0, 0, 0, 0, 0, 0, 0} }

func simpleSpace(dims ...uint64) []byte {
	out := []byte{1, byte(len(dims)), 0, 0, 0, 0, 0, 0}
	for _, d := range dims {
		out = append(out, mock.LE64(d)...)
	}
	return out
}

func float64Type() []byte {
	return mock.Concat([]byte{0x11, 0x20, 63, 0}, mock.LE32(8), mock.LE16(0), mock.LE16(64), []byte{52, 11, 0, 52}, mock.LE32(1023))
}

func stringType(n uint32) []byte {
	return mock.Concat([]byte{0x13, 0, 0, 0}, mock.LE32(n))
}

func v1Attribute(name string, dt, ds, value []byte) []byte {
	nameBytes := append([]byte(name), 0)
	return mock.Concat([]byte{1, 0}, mock.LE16(uint16(len(nameBytes))), mock.LE16(uint16(len(dt))), mock.LE16(uint16(len(ds))),
		mock.Pad8(nameBytes), mock.Pad8(append([]byte(nil), dt...)), mock.Pad8(append([]byte(nil), ds...)), value)
}

func TestReadObjectHeader_V1Dataset(t *testing.T) {
	sb := testSuperblock()
	layout := mock.Concat([]byte{3, 1}, mock.LE64(0x400), mock.LE64(24))
	header := v1Header(
		v1Message(uint16(MsgDataspace), simpleSpace(3, 1)),
		v1Message(uint16(MsgDatatype), float64Type()),
		v1Message(uint16(MsgDataLayout), layout),
		v1Message(uint16(MsgAttribute), v1Attribute("MATLAB_class", stringType(6), scalarSpace(), []byte("double"))),
	)
	r := mock.NewImage().Put(0x100, header).Reader()

	h, err := ReadObjectHeader(r, 0x100, sb)
	require.NoError(t, err)
	require.Equal(t, uint8(1), h.Version)
	require.Equal(t, ObjectTypeDataset, h.Type)
	require.Len(t, h.Messages, 4)
	require.Len(t, h.MessagesOf(MsgDataspace), 1)

	attr := h.Attribute("MATLAB_class")
	require.NotNil(t, attr)
	text, ok := attr.Text()
	require.True(t, ok)
	require.Equal(t, "double", text)
	require.Nil(t, h.Attribute("missing"))
	require.False(t, h.HasDenseAttributes(sb))
}

func TestReadObjectHeader_V1Continuation(t *testing.T) {
	sb := testSuperblock()
	block := v1Message(uint16(MsgAttribute), v1Attribute("MATLAB_class", stringType(6), scalarSpace(), []byte("struct")))
	header := v1Header(
		v1Message(uint16(MsgSymbolTable), mock.Concat(mock.LE64(0x10), mock.LE64(0x20))),
		v1Message(uint16(MsgContinuation), mock.Concat(mock.LE64(0x300), mock.LE64(uint64(len(block))))),
	)
	r := mock.NewImage().Put(0x100, header).Put(0x300, block).Reader()

	h, err := ReadObjectHeader(r, 0x100, sb)
	require.NoError(t, err)
	require.Equal(t, ObjectTypeGroup, h.Type)

	attr := h.Attribute("MATLAB_class")
	require.NotNil(t, attr)
	text, _ := attr.Text()
	require.Equal(t, "struct", text)
}

func TestReadObjectHeader_V1ContinuationLoop(t *testing.T) {
	sb := testSuperblock()
	loop := v1Message(uint16(MsgContinuation), mock.Concat(mock.LE64(0x300), mock.LE64(24)))
	header := v1Header(loop)
	r := mock.NewImage().Put(0x100, header).Put(0x300, loop).Reader()

	_, err := ReadObjectHeader(r, 0x100, sb)
	require.ErrorContains(t, err, "continuation loop")
}

func TestReadObjectHeader_V2(t *testing.T) {
	sb := testSuperblock()
	msg := func(typ byte, data []byte) []byte {
		return mock.Concat([]byte{typ}, mock.LE16(uint16(len(data))), []byte{0}, data)
	}
	attr := mock.Concat(
		[]byte{3, 0}, mock.LE16(5), mock.LE16(8), mock.LE16(4), []byte{0},
		[]byte("flag\x00"), []byte{0x10, 0, 0, 0}, mock.LE32(1), []byte{2, 0, 0, 0}, []byte{7},
	)
	ochk := mock.Concat([]byte("OCHK"), msg(byte(MsgAttribute), attr), mock.LE32(0))
	body := mock.Concat(
		msg(byte(MsgDataspace), mock.Concat([]byte{2, 1, 0, 1}, mock.LE64(5))),
		msg(byte(MsgDatatype), float64Type()),
		msg(byte(MsgDataLayout), mock.Concat([]byte{3, 1}, mock.LE64(0x800), mock.LE64(40))),
		msg(byte(MsgContinuation), mock.Concat(mock.LE64(0x400), mock.LE64(uint64(len(ochk))))),
	)
	header := mock.Concat([]byte("OHDR"), []byte{2, 0, byte(len(body))}, body, mock.LE32(0))
	r := mock.NewImage().Put(0x100, header).Put(0x400, ochk).Reader()

	h, err := ReadObjectHeader(r, 0x100, sb)
	require.NoError(t, err)
	require.Equal(t, uint8(2), h.Version)
	require.Equal(t, ObjectTypeDataset, h.Type)
	require.Len(t, h.Messages, 5)

	flag := h.Attribute("flag")
	require.NotNil(t, flag)
	v, ok := flag.Int()
	require.True(t, ok)
	require.Equal(t, int64(7), v)
}

func TestReadObjectHeader_V2BadContinuation(t *testing.T) {
	sb := testSuperblock()
	body := mock.Concat([]byte{byte(MsgContinuation)}, mock.LE16(16), []byte{0}, mock.LE64(0x400), mock.LE64(16))
	header := mock.Concat([]byte("OHDR"), []byte{2, 0, byte(len(body))}, body, mock.LE32(0))
	r := mock.NewImage().Put(0x100, header).Put(0x400, []byte("XXXXxxxxxxxxxxxx")).Reader()

	_, err := ReadObjectHeader(r, 0x100, sb)
	require.ErrorIs(t, err, utils.ErrSignature)
}

func TestReadObjectHeader_V2WithCreationOrder(t *testing.T) {
	sb := testSuperblock()
	msg := func(typ byte, data []byte) []byte {
		return mock.Concat([]byte{typ}, mock.LE16(uint16(len(data))), []byte{0}, mock.LE16(0), data)
	}
	body := mock.Concat(
		msg(byte(MsgLinkInfo), mock.Concat([]byte{0, 0}, mock.LE64(^uint64(0)), mock.LE64(^uint64(0)))),
		msg(byte(MsgGroupInfo), []byte{0, 0}),
	)
	header := mock.Concat([]byte("OHDR"), []byte{2, ohdrTrackCreation}, []byte{byte(len(body))}, body, mock.LE32(0))
	r := mock.NewImage().Put(0x80, header).Reader()

	h, err := ReadObjectHeader(r, 0x80, sb)
	require.NoError(t, err)
	require.Equal(t, uint8(2), h.Version)
	require.Equal(t, ObjectTypeGroup, h.Type)
	require.Len(t, h.Messages, 2)
}

func TestReadObjectHeader_Invalid(t *testing.T) {
	sb := testSuperblock()
	r := mock.NewImage().Put(0x100, []byte{9, 9, 9, 9, 0, 0, 0, 0}).Reader()

	_, err := ReadObjectHeader(r, 0, sb)
	require.Error(t, err)

	_, err = ReadObjectHeader(r, ^uint64(0), sb)
	require.Error(t, err)

	_, err = ReadObjectHeader(r, 0x100, sb)
	require.Error(t, err)
}

func TestObjectType_String(t *testing.T) {
	require.Equal(t, "group", ObjectTypeGroup.String())
	require.Equal(t, "dataset", ObjectTypeDataset.String())
}
