package testing

import (
	"math"

	"github.com/scigolib/mat73/internal/mcos/mcostest"
)

const (
	attrClass        = "MATLAB_class"
	attrIntDecode    = "MATLAB_int_decode"
	attrObjectDecode = "MATLAB_object_decode"

	sampleLen = 500
)

// SampleMAT returns a MAT-file image holding what MATLAB writes for
//
//	A = magic(4); label = 'bench run'; ok = [true false true];
//	items = {pi, 'two'}; params.gain = 2.5; params.speed = timeseries(...);
//	wave = reshape(sin(0:0.01:10.23), 32, 32); rpm = timeseries(...);
//
// with both timeseries backed by 500-sample time and data vectors.
func SampleMAT() []byte {
	b := NewH5Builder(512)
	class := func(tag string) Attr { return StringAttr(attrClass, tag) }

	meta := mcostest.New()
	ts := meta.Class("", "timeseries")
	meta.Object(ts, 1, []string{"Data", "Time", "Name", "Quality"}, "UserData")
	meta.Object(ts, 2, []string{"Data", "Time", "Name"})
	blob := meta.Bytes()
	object := func(id uint32) uint64 {
		return b.Dataset(Uint32, []uint64{6, 1}, Uint32s(0xDD000000, 2, 1, 1, id, ts),
			class("timeseries"), Int32Attr(attrObjectDecode, 3))
	}

	magic := b.Dataset(Float64, []uint64{4, 4},
		Float64s(16, 5, 9, 4, 2, 11, 7, 14, 3, 10, 6, 15, 13, 8, 12, 1), class("double"))
	label := b.Dataset(Uint16, []uint64{9, 1}, UTF16("bench run"),
		class("char"), Int32Attr(attrIntDecode, 2))
	ok := b.Dataset(Uint8, []uint64{3, 1}, []byte{1, 0, 1},
		class("logical"), Int32Attr(attrIntDecode, 1))

	pi := b.Dataset(Float64, []uint64{1, 1}, Float64s(math.Pi), class("double"))
	two := b.Dataset(Uint16, []uint64{3, 1}, UTF16("two"), class("char"), Int32Attr(attrIntDecode, 2))
	refs := b.Group([]Entry{{Name: "a", Address: pi}, {Name: "b", Address: two}})
	items := b.Dataset(Reference, []uint64{2, 1}, Refs(pi, two), class("cell"))

	gain := b.Dataset(Float64, []uint64{1, 1}, Float64s(2.5), class("double"))
	params := b.Group([]Entry{{Name: "gain", Address: gain}, {Name: "speed", Address: object(2)}}, class("struct"))

	wave := make([]float64, 1024)
	for i := range wave {
		wave[i] = math.Sin(float64(i) / 100)
	}
	waveDS := b.ChunkedDataset(Float64, []uint64{32, 32}, []uint64{16, 16}, Float64s(wave...), class("double"))

	vec := func(start, step float64) []float64 {
		out := make([]float64, sampleLen)
		for i := range out {
			out[i] = start + step*float64(i)
		}
		return out
	}
	pool := Refs(
		b.Dataset(Uint8, []uint64{uint64(len(blob)), 1}, blob),
		b.Dataset(Float64, []uint64{1, sampleLen}, Float64s(vec(0, 0.01)...)),
		b.Dataset(Float64, []uint64{sampleLen, 1}, Float64s(vec(800, 2)...)),
		b.Dataset(Float64, []uint64{1, sampleLen}, Float64s(vec(0, 0.02)...)),
		b.Dataset(Float64, []uint64{sampleLen, 1}, Float64s(vec(10, 0.5)...)),
	)
	sys := b.Group([]Entry{{Name: "MCOS", Address: b.Dataset(Reference, []uint64{5, 1}, pool, class("FileWrapper__"))}})

	root := b.Group([]Entry{
		{Name: "#refs#", Address: refs},
		{Name: "#subsystem#", Address: sys},
		{Name: "A", Address: magic},
		{Name: "label", Address: label},
		{Name: "ok", Address: ok},
		{Name: "items", Address: items},
		{Name: "params", Address: params},
		{Name: "wave", Address: waveDS},
		{Name: "rpm", Address: object(1)},
	})
	return b.Finish(root)
}
