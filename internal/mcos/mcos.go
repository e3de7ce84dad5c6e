// Package mcos parses the class-object metadata blob MATLAB stores in the
// first element of #subsystem#/MCOS.
//
// The blob is a sequence of little-endian uint32 words:
//
//	0      version
//	4      number of names
//	8..39  eight region offsets
//	40     NUL-terminated names, padded to 8 bytes
//
// Region 1 holds class records (package name index, class name index, 0, 0),
// regions 2 and 4 hold property blocks for saved and dynamic properties, and
// region 3 holds object records (class index, 0, 0, saved block, dynamic
// block, object id). Record 0 of every region is a zero placeholder. Name
// indices are 1-based.
package mcos

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("malformed MCOS metadata")

// ParseError locates a parse failure inside the blob.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mcos: %s at byte %d", e.Reason, e.Offset)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

const (
	headerSize   = 40
	regionCount  = 8
	classWords   = 4
	objectWords  = 6
	propertySize = 12
	maxVersion   = 4
)

// Property is one saved or dynamic property of an object.
type Property struct {
	Name  string
	Flag  uint32
	Value uint32
}

// Object is one class-object instance.
type Object struct {
	ID         uint32
	ClassIndex int
	Properties []Property
}

// Class is one entry of the registry.
type Class struct {
	Index     int // 1-based, as referenced by object records and payloads
	Package   string
	Name      string
	Instances []uint32 // object ids in record order

	props []string
	set   map[string]bool
}

// QualifiedName returns "pkg.Name", or Name without a package.
func (c *Class) QualifiedName() string {
	if c.Package == "" {
		return c.Name
	}
	return c.Package + "." + c.Name
}

// Properties returns the union of property names declared by the class's
// instances, in first-seen order.
func (c *Class) Properties() []string {
	return append([]string(nil), c.props...)
}

// HasProperties reports whether every name is a declared property.
func (c *Class) HasProperties(names ...string) bool {
	for _, n := range names {
		if !c.set[n] {
			return false
		}
	}
	return true
}

func (c *Class) addProperty(name string) {
	if c.set[name] {
		return
	}
	c.set[name] = true
	c.props = append(c.props, name)
}

// Registry is the parsed blob.
type Registry struct {
	Version uint32
	Names   []string
	Classes []*Class
	Objects []*Object
}

// Empty returns a registry with no classes.
func Empty() *Registry {
	return &Registry{}
}

// Class returns the class whose name or qualified name equals name.
func (r *Registry) Class(name string) (*Class, bool) {
	for _, c := range r.Classes {
		if c.Name == name || c.QualifiedName() == name {
			return c, true
		}
	}
	return nil, false
}

// Object returns the object with the given id.
func (r *Registry) Object(id uint32) (*Object, bool) {
	for _, o := range r.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// Shaped returns the classes declaring every one of the required properties.
func (r *Registry) Shaped(required ...string) []*Class {
	var out []*Class
	for _, c := range r.Classes {
		if c.HasProperties(required...) {
			out = append(out, c)
		}
	}
	return out
}

// IsShaped reports whether class name exists and declares every required
// property.
func (r *Registry) IsShaped(name string, required ...string) bool {
	c, ok := r.Class(name)
	return ok && c.HasProperties(required...)
}

// Parse decodes a metadata blob.
func Parse(blob []byte) (*Registry, error) {
	if len(blob) < headerSize {
		return nil, &ParseError{Offset: len(blob), Reason: "blob shorter than header"}
	}
	le := binary.LittleEndian
	reg := &Registry{Version: le.Uint32(blob)}
	if reg.Version == 0 || reg.Version > maxVersion {
		return nil, &ParseError{Offset: 0, Reason: fmt.Sprintf("unsupported version %d", reg.Version)}
	}
	numNames := int(le.Uint32(blob[4:]))

	var offsets [regionCount]int
	prev := headerSize
	for i := range offsets {
		offsets[i] = int(le.Uint32(blob[8+4*i:]))
		if offsets[i] < prev || offsets[i] > len(blob) {
			return nil, &ParseError{Offset: 8 + 4*i, Reason: fmt.Sprintf("region offset %d out of order", offsets[i])}
		}
		prev = offsets[i]
	}

	names, err := parseNames(blob[headerSize:offsets[0]], numNames)
	if err != nil {
		return nil, err
	}
	reg.Names = names
	name := func(idx uint32, at int) (string, error) {
		if idx == 0 {
			return "", nil
		}
		if int(idx) > len(names) {
			return "", &ParseError{Offset: at, Reason: fmt.Sprintf("name index %d beyond %d names", idx, len(names))}
		}
		return names[idx-1], nil
	}

	// Region 1: class records.
	for pos := offsets[0] + classWords*4; pos+classWords*4 <= offsets[1]; pos += classWords * 4 {
		pkg, err := name(le.Uint32(blob[pos:]), pos)
		if err != nil {
			return nil, err
		}
		cls, err := name(le.Uint32(blob[pos+4:]), pos+4)
		if err != nil {
			return nil, err
		}
		reg.Classes = append(reg.Classes, &Class{
			Index:   len(reg.Classes) + 1,
			Package: pkg,
			Name:    cls,
			set:     make(map[string]bool),
		})
	}

	saved, err := parseBlocks(blob, offsets[1], offsets[2], name)
	if err != nil {
		return nil, err
	}
	dynamic, err := parseBlocks(blob, offsets[3], offsets[4], name)
	if err != nil {
		return nil, err
	}

	// Region 3: object records.
	for pos := offsets[2] + objectWords*4; pos+objectWords*4 <= offsets[3]; pos += objectWords * 4 {
		classIdx := int(le.Uint32(blob[pos:]))
		savedIdx := int(le.Uint32(blob[pos+12:]))
		dynIdx := int(le.Uint32(blob[pos+16:]))
		obj := &Object{ID: le.Uint32(blob[pos+20:]), ClassIndex: classIdx}

		if classIdx < 1 || classIdx > len(reg.Classes) {
			return nil, &ParseError{Offset: pos, Reason: fmt.Sprintf("object class index %d beyond %d classes", classIdx, len(reg.Classes))}
		}
		for _, ref := range []struct {
			idx    int
			blocks [][]Property
		}{{savedIdx, saved}, {dynIdx, dynamic}} {
			if ref.idx == 0 {
				continue
			}
			if ref.idx >= len(ref.blocks) {
				return nil, &ParseError{Offset: pos, Reason: fmt.Sprintf("property block %d beyond %d blocks", ref.idx, len(ref.blocks)-1)}
			}
			obj.Properties = append(obj.Properties, ref.blocks[ref.idx]...)
		}

		cls := reg.Classes[classIdx-1]
		cls.Instances = append(cls.Instances, obj.ID)
		for _, p := range obj.Properties {
			cls.addProperty(p.Name)
		}
		reg.Objects = append(reg.Objects, obj)
	}

	return reg, nil
}

// parseNames splits count NUL-terminated names. Every name takes at least
// its terminator, so a count above the region size is rejected before
// allocating.
func parseNames(data []byte, count int) ([]string, error) {
	if count < 0 || count > len(data) {
		return nil, &ParseError{Offset: 4, Reason: fmt.Sprintf("%d names exceed %d-byte name region", count, len(data))}
	}
	names := make([]string, 0, count)
	start := 0
	for i, b := range data {
		if len(names) == count {
			break
		}
		if b == 0 {
			names = append(names, string(data[start:i]))
			start = i + 1
		}
	}
	if len(names) < count {
		return nil, &ParseError{Offset: headerSize + len(data), Reason: fmt.Sprintf("found %d of %d names", len(names), count)}
	}
	return names, nil
}

// parseBlocks splits a property region into blocks. Block 0 is the 8-byte
// placeholder and stays empty.
func parseBlocks(blob []byte, start, end int, name func(uint32, int) (string, error)) ([][]Property, error) {
	blocks := [][]Property{nil}
	if end-start < 8 {
		return blocks, nil
	}
	le := binary.LittleEndian
	for pos := start + 8; pos+4 <= end; {
		count := int(le.Uint32(blob[pos:]))
		size := 4 + count*propertySize
		if count < 0 || pos+size > end {
			return nil, &ParseError{Offset: pos, Reason: fmt.Sprintf("property block of %d entries overruns region", count)}
		}
		props := make([]Property, count)
		for i := range props {
			at := pos + 4 + i*propertySize
			n, err := name(le.Uint32(blob[at:]), at)
			if err != nil {
				return nil, err
			}
			props[i] = Property{Name: n, Flag: le.Uint32(blob[at+4:]), Value: le.Uint32(blob[at+8:])}
		}
		blocks = append(blocks, props)
		pos += (size + 7) &^ 7
	}
	return blocks, nil
}
