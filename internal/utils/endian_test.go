package utils

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	mock "github.com/scigolib/mat73/internal/testing"
)

func TestDecodeUint(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	tests := []struct {
		name  string
		size  int
		order binary.ByteOrder
		want  uint64
	}{
		{"one byte", 1, binary.LittleEndian, 0x01},
		{"two bytes LE", 2, binary.LittleEndian, 0x0201},
		{"two bytes BE", 2, binary.BigEndian, 0x0102},
		{"four bytes LE", 4, binary.LittleEndian, 0x04030201},
		{"eight bytes LE", 8, binary.LittleEndian, 0x0807060504030201},
		{"eight bytes BE", 8, binary.BigEndian, 0x0102030405060708},
		{"three bytes LE", 3, binary.LittleEndian, 0x030201},
		{"three bytes BE", 3, binary.BigEndian, 0x010203},
		{"zero width", 0, binary.LittleEndian, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DecodeUint(data, tt.size, tt.order))
		})
	}
}

func TestDecodeUint_ShortInput(t *testing.T) {
	require.Equal(t, uint64(0x0201), DecodeUint([]byte{0x01, 0x02}, 8, binary.LittleEndian))
}

func TestIsUndefined(t *testing.T) {
	require.True(t, IsUndefined(UndefinedAddress, 8))
	require.True(t, IsUndefined(0xFFFFFFFF, 4))
	require.False(t, IsUndefined(0xFFFFFFFF, 8))
	require.False(t, IsUndefined(0x200, 8))
}

func TestReadBytes(t *testing.T) {
	r := mock.NewMockReaderAt([]byte("0123456789"))

	got, err := ReadBytes(r, 2, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("2345"), got)

	got, err = ReadBytes(r, 0, 0)
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = ReadBytes(r, 8, 4)
	require.Error(t, err)
}

func TestReadUint64(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[8:], 0xDEADBEEF)

	v, err := ReadUint64(mock.NewMockReaderAt(buf), 8, binary.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, uint64(0xDEADBEEF), v)
}
