package testing

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/klauspost/compress/zlib"
)

const undefined = ^uint64(0)

// DType is an encoded HDF5 datatype message.
type DType struct {
	Class byte
	Bits  [3]byte
	Size  uint32
	Props []byte
}

// Datatypes used by MATLAB v7.3 files.
var (
	Float64 = DType{Class: 1, Bits: [3]byte{0x20, 63, 0}, Size: 8,
		Props: Concat(LE16(0), LE16(64), []byte{52, 11, 0, 52}, LE32(1023))}
	Float32 = DType{Class: 1, Bits: [3]byte{0x20, 31, 0}, Size: 4,
		Props: Concat(LE16(0), LE16(32), []byte{23, 8, 0, 23}, LE32(127))}
	Uint8     = uintType(1, false)
	Uint16    = uintType(2, false)
	Uint32    = uintType(4, false)
	Uint64    = uintType(8, false)
	Int8      = uintType(1, true)
	Int16     = uintType(2, true)
	Int32     = uintType(4, true)
	Int64     = uintType(8, true)
	Reference = DType{Class: 7, Size: 8}
)

func uintType(size uint32, signed bool) DType {
	dt := DType{Class: 0, Size: size, Props: Concat(LE16(0), LE16(uint16(size*8)))}
	if signed {
		dt.Bits[0] = 0x08
	}
	return dt
}

// FixedString returns a null-terminated ASCII string type of n bytes.
func FixedString(n uint32) DType {
	return DType{Class: 3, Size: n}
}

func (t DType) encode() []byte {
	return Concat([]byte{t.Class | 0x10, t.Bits[0], t.Bits[1], t.Bits[2]}, LE32(t.Size), t.Props)
}

// Attr is an attribute to attach to an object.
type Attr struct {
	Name string
	Type DType
	Dims []uint64 // nil for scalar
	Data []byte
}

// StringAttr returns a scalar fixed-length string attribute, the encoding
// MATLAB uses for MATLAB_class.
func StringAttr(name, value string) Attr {
	return Attr{Name: name, Type: FixedString(uint32(len(value))), Data: []byte(value)}
}

// Uint8Attr returns a scalar uint8 attribute.
func Uint8Attr(name string, v uint8) Attr {
	return Attr{Name: name, Type: Uint8, Data: []byte{v}}
}

// Int32Attr returns a scalar int32 attribute.
func Int32Attr(name string, v int32) Attr {
	//nolint:gosec // G115: two's complement encoding
	return Attr{Name: name, Type: Int32, Data: LE32(uint32(v))}
}

// Entry names a child of a group.
type Entry struct {
	Name    string
	Address uint64
}

// H5Builder writes a minimal HDF5 file in the layout MATLAB produces:
// superblock version 0 after a user block, version 1 object headers,
// symbol-table groups and contiguous or chunked datasets.
type H5Builder struct {
	img  *Image
	base uint64
	next uint64
	stab map[uint64][2]uint64
}

// NewH5Builder returns a builder whose superblock follows a user block of
// the given size (0 or a power of two >= 512).
func NewH5Builder(userBlock int) *H5Builder {
	b := &H5Builder{
		img:  NewImage(),
		base: uint64(userBlock),
		next: 96,
		stab: make(map[uint64][2]uint64),
	}
	if userBlock > 0 {
		hdr := make([]byte, userBlock)
		copy(hdr, "MATLAB 7.3 MAT-file, Platform: GLNXA64, Created on: Mon Jan  1 00:00:00 2024 HDF5 schema 1.00 .")
		b.img.Put(0, hdr)
	}
	return b
}

// alloc reserves n bytes (8-byte aligned) and returns the relative address.
func (b *H5Builder) alloc(n int) uint64 {
	addr := b.next
	b.next += uint64((n + 7) &^ 7)
	if b.next == addr {
		b.next += 8
	}
	return addr
}

func (b *H5Builder) put(addr uint64, data []byte) {
	b.img.Put(b.base+addr, data)
}

// Raw stores bytes and returns their address.
func (b *H5Builder) Raw(data []byte) uint64 {
	addr := b.alloc(len(data))
	b.put(addr, data)
	return addr
}

type message struct {
	typ  uint16
	data []byte
}

func (b *H5Builder) objectHeader(msgs []message) uint64 {
	var body []byte
	for _, m := range msgs {
		data := Pad8(append([]byte(nil), m.data...))
		body = append(body, LE16(m.typ)...)
		body = append(body, LE16(uint16(len(data)))...)
		body = append(body, 0, 0, 0, 0)
		body = append(body, data...)
	}
	prefix := Concat([]byte{1, 0}, LE16(uint16(len(msgs))), LE32(1), LE32(uint32(len(body))), LE32(0))
	return b.Raw(Concat(prefix, body))
}

func dataspace(dims []uint64) []byte {
	out := []byte{1, byte(len(dims)), 0, 0, 0, 0, 0, 0}
	for _, d := range dims {
		out = append(out, LE64(d)...)
	}
	return out
}

func attribute(a Attr) []byte {
	name := append([]byte(a.Name), 0)
	dt := a.Type.encode()
	ds := dataspace(a.Dims)
	return Concat(
		[]byte{1, 0}, LE16(uint16(len(name))), LE16(uint16(len(dt))), LE16(uint16(len(ds))),
		Pad8(name), Pad8(dt), Pad8(ds), a.Data,
	)
}

func attrMessages(attrs []Attr) []message {
	out := make([]message, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, message{typ: 0x0C, data: attribute(a)})
	}
	return out
}

// Dataset stores a contiguous dataset with storage-order dims and returns
// its object header address.
func (b *H5Builder) Dataset(t DType, dims []uint64, data []byte, attrs ...Attr) uint64 {
	addr := undefined
	if len(data) > 0 {
		addr = b.Raw(data)
	}
	layout := Concat([]byte{3, 1}, LE64(addr), LE64(uint64(len(data))))
	msgs := []message{
		{typ: 0x01, data: dataspace(dims)},
		{typ: 0x03, data: t.encode()},
		{typ: 0x08, data: layout},
	}
	return b.objectHeader(append(msgs, attrMessages(attrs)...))
}

// ChunkedDataset stores a deflate-compressed chunked dataset.
func (b *H5Builder) ChunkedDataset(t DType, dims, chunk []uint64, data []byte, attrs ...Attr) uint64 {
	rank := len(dims)
	elem := int(t.Size)

	type stored struct {
		origin []uint64
		addr   uint64
		size   int
	}
	var chunks []stored

	origin := make([]uint64, rank)
	for {
		raw := extractChunk(data, dims, chunk, origin, elem)
		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		_, _ = zw.Write(raw)
		_ = zw.Close()
		chunks = append(chunks, stored{
			origin: append([]uint64(nil), origin...),
			addr:   b.Raw(zbuf.Bytes()),
			size:   zbuf.Len(),
		})

		d := rank - 1
		for ; d >= 0; d-- {
			origin[d] += chunk[d]
			if origin[d] < dims[d] {
				break
			}
			origin[d] = 0
		}
		if d < 0 {
			break
		}
	}

	key := func(nbytes int, off []uint64) []byte {
		k := Concat(LE32(uint32(nbytes)), LE32(0))
		for _, o := range off {
			k = append(k, LE64(o)...)
		}
		return append(k, LE64(0)...)
	}
	node := Concat([]byte("TREE"), []byte{1, 0}, LE16(uint16(len(chunks))), LE64(undefined), LE64(undefined))
	for _, c := range chunks {
		node = append(node, key(c.size, c.origin)...)
		node = append(node, LE64(c.addr)...)
	}
	end := make([]uint64, rank)
	copy(end, dims)
	node = append(node, key(0, end)...)
	tree := b.Raw(node)

	layout := Concat([]byte{3, 2, byte(rank + 1)}, LE64(tree))
	for _, c := range chunk {
		layout = append(layout, LE32(uint32(c))...)
	}
	layout = append(layout, LE32(uint32(elem))...)

	pipeline := Concat([]byte{1, 1, 0, 0, 0, 0, 0, 0}, LE16(1), LE16(0), LE16(0), LE16(1), LE32(6), LE32(0))

	msgs := []message{
		{typ: 0x01, data: dataspace(dims)},
		{typ: 0x03, data: t.encode()},
		{typ: 0x0B, data: pipeline},
		{typ: 0x08, data: layout},
	}
	return b.objectHeader(append(msgs, attrMessages(attrs)...))
}

// extractChunk copies the chunk at origin out of row-major data, zero
// filling the parts beyond the dataset extent.
func extractChunk(data []byte, dims, chunk, origin []uint64, elem int) []byte {
	rank := len(dims)
	n := 1
	for _, c := range chunk {
		n *= int(c)
	}
	out := make([]byte, n*elem)
	idx := make([]uint64, rank)
	for i := 0; i < n; i++ {
		rem := i
		for d := rank - 1; d >= 0; d-- {
			idx[d] = uint64(rem) % chunk[d]
			rem /= int(chunk[d])
		}
		src := 0
		inside := true
		for d := 0; d < rank; d++ {
			p := origin[d] + idx[d]
			if p >= dims[d] {
				inside = false
				break
			}
			src = src*int(dims[d]) + int(p)
		}
		if inside {
			copy(out[i*elem:(i+1)*elem], data[src*elem:(src+1)*elem])
		}
	}
	return out
}

// Group stores an old-style group (symbol table, B-tree, SNOD, local heap)
// and returns its object header address.
func (b *H5Builder) Group(entries []Entry, attrs ...Attr) uint64 {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	heapData := []byte{0}
	offsets := make([]uint64, len(sorted))
	for i, e := range sorted {
		offsets[i] = uint64(len(heapData))
		heapData = append(heapData, append([]byte(e.Name), 0)...)
	}
	heapData = Pad8(heapData)
	dataAddr := b.Raw(heapData)
	heap := b.Raw(Concat([]byte("HEAP"), []byte{0, 0, 0, 0}, LE64(uint64(len(heapData))), LE64(undefined), LE64(dataAddr)))

	snod := Concat([]byte("SNOD"), []byte{1, 0}, LE16(uint16(len(sorted))))
	for i, e := range sorted {
		snod = append(snod, LE64(offsets[i])...)
		snod = append(snod, LE64(e.Address)...)
		snod = append(snod, make([]byte, 24)...)
	}
	snodAddr := b.Raw(snod)

	lastKey := uint64(0)
	if len(offsets) > 0 {
		lastKey = offsets[len(offsets)-1]
	}
	tree := b.Raw(Concat([]byte("TREE"), []byte{0, 0}, LE16(1), LE64(undefined), LE64(undefined),
		LE64(0), LE64(snodAddr), LE64(lastKey)))

	msgs := []message{{typ: 0x11, data: Concat(LE64(tree), LE64(heap))}}
	addr := b.objectHeader(append(msgs, attrMessages(attrs)...))
	b.stab[addr] = [2]uint64{tree, heap}
	return addr
}

// Finish writes the superblock for root and returns the file image.
func (b *H5Builder) Finish(root uint64) []byte {
	stab := b.stab[root]
	sb := Concat(
		[]byte("\x89HDF\r\n\x1a\n"), []byte{0, 0, 0, 0, 0, 8, 8, 0}, LE16(4), LE16(16), LE32(0),
		LE64(0), LE64(undefined), LE64(b.next), LE64(undefined),
		LE64(0), LE64(root), LE32(1), LE32(0), LE64(stab[0]), LE64(stab[1]),
	)
	b.put(0, sb)
	return b.img.Bytes()
}

// Float64s encodes values little-endian.
func Float64s(v ...float64) []byte {
	out := make([]byte, 0, 8*len(v))
	for _, f := range v {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(f))
	}
	return out
}

// Uint16s encodes values little-endian.
func Uint16s(v ...uint16) []byte {
	out := make([]byte, 0, 2*len(v))
	for _, x := range v {
		out = binary.LittleEndian.AppendUint16(out, x)
	}
	return out
}

// Uint32s encodes values little-endian.
func Uint32s(v ...uint32) []byte {
	out := make([]byte, 0, 4*len(v))
	for _, x := range v {
		out = binary.LittleEndian.AppendUint32(out, x)
	}
	return out
}

// Refs encodes object references.
func Refs(addrs ...uint64) []byte {
	out := make([]byte, 0, 8*len(addrs))
	for _, a := range addrs {
		out = binary.LittleEndian.AppendUint64(out, a)
	}
	return out
}

// UTF16 encodes s as MATLAB char codes (one uint16 per rune in the BMP).
func UTF16(s string) []byte {
	var codes []uint16
	for _, r := range s {
		codes = append(codes, uint16(r))
	}
	return Uint16s(codes...)
}
