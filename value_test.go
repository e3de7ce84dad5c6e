package mat73

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/mat73/internal/container"
	ct "github.com/scigolib/mat73/internal/container/containertest"
)

func TestMatlabShape(t *testing.T) {
	tests := []struct {
		name string
		dims []uint64
		want []int
	}{
		{"scalar dataspace", nil, nil},
		{"one dimension", []uint64{5}, []int{5}},
		{"one element", []uint64{1, 1}, nil},
		{"row", []uint64{5, 1}, []int{5}},
		{"column", []uint64{1, 5}, []int{5}},
		{"trailing singletons", []uint64{5, 1, 1}, []int{5}},
		{"matrix", []uint64{3, 4}, []int{4, 3}},
		{"cube", []uint64{2, 3, 4}, []int{4, 3, 2}},
		{"empty", []uint64{0, 0}, []int{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, matlabShape(tt.dims))
		})
	}
}

func TestMaterialize(t *testing.T) {
	// MATLAB [1 2 3; 4 5 6] is stored column-major with dims reversed.
	ds := ct.Float64s([]uint64{3, 2}, 1, 4, 2, 5, 3, 6)

	a, err := materialize(ds, Double)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, a.Shape)
	require.Equal(t, []float64{1, 4, 2, 5, 3, 6}, a.Data)
	require.Equal(t, 6, a.Len())
	require.False(t, a.IsScalar())

	b, err := materialize(ds, Double)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("second materialization differs (-first +second):\n%s", diff)
	}
	a.Data.([]float64)[0] = 99
	require.InDelta(t, 1.0, b.Data.([]float64)[0], 0)
}

func TestMaterialize_Classes(t *testing.T) {
	t.Run("int32 from signed storage", func(t *testing.T) {
		ds := ct.Uint32s([]uint64{2}, 0xFFFFFFFF, 7)
		ds.Type = ct.Int32
		a, err := materialize(ds, Int32)
		require.NoError(t, err)
		require.Equal(t, []int32{-1, 7}, a.Data)
	})

	t.Run("logical", func(t *testing.T) {
		a, err := materialize(ct.Bytes([]uint64{3, 1}, []byte{1, 0, 1}), Logical)
		require.NoError(t, err)
		require.Equal(t, []bool{true, false, true}, a.Data)
		require.Equal(t, []int{3}, a.Shape)
		require.Equal(t, []float64{1, 0, 1}, a.Float64s())
	})

	t.Run("scalar uint16", func(t *testing.T) {
		a, err := materialize(ct.Uint16s(nil, 513), Uint16)
		require.NoError(t, err)
		require.True(t, a.IsScalar())
		require.Equal(t, []uint16{513}, a.Data)
	})

	t.Run("truncated", func(t *testing.T) {
		ds := ct.Float64s([]uint64{4}, 1, 2)
		_, err := materialize(ds, Double)
		require.Error(t, err)
	})

	t.Run("reference payload", func(t *testing.T) {
		_, err := materialize(ct.RawRefs([]uint64{1}, 0x100), Double)
		require.Error(t, err)
	})
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		ds   *container.Dataset
		want Text
	}{
		{"row", ct.Chars("hello"), "hello"},
		{"column of single chars", ct.Uint16s([]uint64{1, 3}, 'a', 'b', 'c'), "abc"},
		{"matrix", ct.Uint16s([]uint64{3, 2}, 'a', 'd', 'b', 'e', 'c', 'f'), "abc\ndef"},
		{"surrogate pair", ct.Uint16s([]uint64{2, 1}, 0xD83D, 0xDE00), "\U0001F600"},
		{"uint8 codes", ct.Bytes([]uint64{3, 1}, []byte{'h', 0xE9, '!'}), "hé!"},
		{"empty", ct.Uint16s([]uint64{0, 0}), ""},
		{"utf-16 bytes", &container.Dataset{
			Shape: container.Shape{Dims: []uint64{4}, Type: container.ElementType{Class: container.ClassOther, Size: 1}},
			Raw:   []byte{'o', 0, 'k', 0},
		}, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeText(tt.ds)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRecord(t *testing.T) {
	r := NewRecord()
	r.Set("b", Text("x"))
	r.Set("a", placeholder())
	r.Set("b", Text("y"))

	require.Equal(t, []string{"b", "a"}, r.Keys())
	require.Equal(t, 2, r.Len())
	v, ok := r.Get("b")
	require.True(t, ok)
	require.Equal(t, Text("y"), v)
	_, ok = r.Get("c")
	require.False(t, ok)
	require.Equal(t, "{b, a}", r.String())

	var zero Record
	zero.Set("k", Text(""))
	require.Equal(t, 1, zero.Len())
}

func TestParseClass(t *testing.T) {
	for _, c := range []Class{Double, Single, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Logical} {
		got, ok := ParseClass(c.String())
		require.True(t, ok)
		require.Equal(t, c, got)
	}
	_, ok := ParseClass("cell")
	require.False(t, ok)
	require.Equal(t, "Class(42)", Class(42).String())
	require.Equal(t, "timeseries", KindTimeseries.String())
}

func TestSummarize(t *testing.T) {
	ts := &Timeseries{
		Time: &Array{Class: Double, Shape: []int{3}, Data: []float64{0, 1, 2}},
		Data: &Array{Class: Double, Shape: []int{3}, Data: []float64{5, 6, 7}},
	}
	withTS := NewRecord()
	withTS.Set("speed", ts)
	withTS.Set("label", Text("run"))
	plain := NewRecord()
	plain.Set("a", Text(""))
	plain.Set("b", Text(""))

	tests := []struct {
		v    Value
		want string
	}{
		{&Array{Class: Double, Shape: []int{3, 4}, Data: make([]float64, 12)}, "3x4 double"},
		{&Array{Class: Int32, Data: []int32{1}}, "scalar int32"},
		{Text("héllo"), "5 chars"},
		{&Sequence{Elems: []Value{Text("a"), placeholder()}}, "2 elements"},
		{ts, "3 samples"},
		{withTS, "speed: 3"},
		{plain, "2 fields"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Summarize(tt.v))
	}
}

func TestArray_Describe(t *testing.T) {
	a := &Array{Class: Int16, Shape: []int{4}, Data: []int16{-2, 4, 10, 0}}
	s, ok := a.Describe()
	require.True(t, ok)
	require.Equal(t, Stats{Min: -2, Max: 10, Mean: 3, Count: 4}, s)

	_, ok = placeholder().Describe()
	require.False(t, ok)
}
