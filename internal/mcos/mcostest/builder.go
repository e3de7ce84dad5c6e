// Package mcostest builds MCOS metadata blobs for tests.
package mcostest

import "encoding/binary"

// Builder accumulates names, classes and objects.
type Builder struct {
	version uint32
	names   []string
	index   map[string]uint32
	classes [][2]uint32
	objects []object
}

type object struct {
	class   uint32
	id      uint32
	saved   []string
	dynamic []string
}

// New returns a builder for a version 3 blob.
func New() *Builder {
	return &Builder{version: 3, index: make(map[string]uint32)}
}

// Version overrides the version word.
func (b *Builder) Version(v uint32) *Builder {
	b.version = v
	return b
}

func (b *Builder) name(s string) uint32 {
	if s == "" {
		return 0
	}
	if i, ok := b.index[s]; ok {
		return i
	}
	b.names = append(b.names, s)
	b.index[s] = uint32(len(b.names))
	return b.index[s]
}

// Class declares a class and returns its 1-based index.
func (b *Builder) Class(pkg, name string) uint32 {
	b.classes = append(b.classes, [2]uint32{b.name(pkg), b.name(name)})
	return uint32(len(b.classes))
}

// Object declares an instance of class with saved and dynamic properties.
func (b *Builder) Object(class, id uint32, saved []string, dynamic ...string) *Builder {
	for _, p := range saved {
		b.name(p)
	}
	for _, p := range dynamic {
		b.name(p)
	}
	b.objects = append(b.objects, object{class: class, id: id, saved: saved, dynamic: dynamic})
	return b
}

// Bytes encodes the blob.
func (b *Builder) Bytes() []byte {
	le := binary.LittleEndian

	var names []byte
	for _, n := range b.names {
		names = append(names, n...)
		names = append(names, 0)
	}
	names = pad8(names)

	classes := make([]byte, 16)
	for _, c := range b.classes {
		classes = le.AppendUint32(classes, c[0])
		classes = le.AppendUint32(classes, c[1])
		classes = append(classes, make([]byte, 8)...)
	}

	saved := make([]byte, 8)
	dynamic := make([]byte, 8)
	objects := make([]byte, 24)
	var savedN, dynN uint32
	for _, o := range b.objects {
		var si, di uint32
		if len(o.saved) > 0 {
			savedN++
			si = savedN
			saved = append(saved, b.block(o.saved)...)
		}
		if len(o.dynamic) > 0 {
			dynN++
			di = dynN
			dynamic = append(dynamic, b.block(o.dynamic)...)
		}
		for _, w := range []uint32{o.class, 0, 0, si, di, o.id} {
			objects = le.AppendUint32(objects, w)
		}
	}

	out := le.AppendUint32(nil, b.version)
	out = le.AppendUint32(out, uint32(len(b.names)))
	offset := uint32(40 + len(names))
	regions := [][]byte{classes, saved, objects, dynamic}
	for i := 0; i < 8; i++ {
		out = le.AppendUint32(out, offset)
		if i < len(regions) {
			offset += uint32(len(regions[i]))
		}
	}
	out = append(out, names...)
	for _, r := range regions {
		out = append(out, r...)
	}
	return out
}

func (b *Builder) block(props []string) []byte {
	le := binary.LittleEndian
	out := le.AppendUint32(nil, uint32(len(props)))
	for _, p := range props {
		out = le.AppendUint32(out, b.name(p))
		out = le.AppendUint32(out, 1)
		out = le.AppendUint32(out, 0)
	}
	return pad8(out)
}

func pad8(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}
