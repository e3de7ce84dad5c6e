// Package containertest provides an in-memory container.Container for tests
// of the value decoder.
package containertest

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"github.com/scigolib/mat73/internal/container"
)

// Container is an in-memory object graph. References are assigned in
// creation order starting at 0x100.
type Container struct {
	root   *Object
	refs   map[container.Reference]*Object
	next   container.Reference
	closed bool
}

// New returns a container with an empty root group.
func New() *Container {
	c := &Container{refs: make(map[container.Reference]*Object), next: 0x100}
	c.root = c.Group()
	return c
}

// Object is one group or dataset.
type Object struct {
	c        *Container
	ref      container.Reference
	group    bool
	attrs    []*container.Attribute
	links    []link
	dataset  *container.Dataset
	readErr  error
	children error
}

type link struct {
	name string
	obj  *Object
}

// Group creates a detached group.
func (c *Container) Group(attrs ...*container.Attribute) *Object {
	return c.add(&Object{group: true, attrs: attrs})
}

// Dataset creates a detached dataset.
func (c *Container) Dataset(ds *container.Dataset, attrs ...*container.Attribute) *Object {
	return c.add(&Object{dataset: ds, attrs: attrs})
}

func (c *Container) add(o *Object) *Object {
	o.c = c
	o.ref = c.next
	c.next += 0x10
	c.refs[o.ref] = o
	return o
}

// Link adds obj to the root group under name.
func (c *Container) Link(name string, obj *Object) *Object {
	return c.root.Link(name, obj)
}

// Root implements container.Container.
func (c *Container) Root() (container.Node, error) {
	if c.closed {
		return nil, container.ErrClosed
	}
	return node{Object: c.root, name: "/"}, nil
}

// Deref implements container.Container.
func (c *Container) Deref(ref container.Reference) (container.Node, error) {
	if c.closed {
		return nil, container.ErrClosed
	}
	if ref == 0 {
		return nil, container.ErrNullReference
	}
	o, ok := c.refs[ref]
	if !ok {
		return nil, container.ErrDanglingReference
	}
	return node{Object: o}, nil
}

// Close implements container.Container.
func (c *Container) Close() error {
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Container) Closed() bool {
	return c.closed
}

// Ref returns the reference of o.
func (o *Object) Ref() container.Reference {
	return o.ref
}

// Link adds child to the group o under name and returns o.
func (o *Object) Link(name string, child *Object) *Object {
	o.links = append(o.links, link{name: name, obj: child})
	return o
}

// SetData replaces the payload of a dataset, for payloads that reference
// the dataset itself.
func (o *Object) SetData(ds *container.Dataset) *Object {
	o.dataset = ds
	return o
}

// FailRead makes reads of the dataset fail with err.
func (o *Object) FailRead(err error) *Object {
	o.readErr = err
	return o
}

// FailChildren makes member listing of the group fail with err.
func (o *Object) FailChildren(err error) *Object {
	o.children = err
	return o
}

// node is an Object seen through a link name.
type node struct {
	*Object
	name string
}

func (n node) Name() string { return n.name }

func (n node) Ref() container.Reference { return n.ref }

func (n node) IsGroup() bool { return n.group }

func (n node) Attr(name string) (*container.Attribute, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

func (n node) Children() ([]container.Node, error) {
	if !n.group {
		return nil, container.ErrNotGroup
	}
	if n.children != nil {
		return nil, n.children
	}
	links := append([]link(nil), n.links...)
	sort.SliceStable(links, func(i, j int) bool { return links[i].name < links[j].name })
	out := make([]container.Node, len(links))
	for i, l := range links {
		out[i] = node{Object: l.obj, name: l.name}
	}
	return out, nil
}

func (n node) Describe() (container.Shape, error) {
	if n.group || n.dataset == nil {
		return container.Shape{}, container.ErrNotDataset
	}
	return n.dataset.Shape, nil
}

func (n node) Read() (*container.Dataset, error) {
	if n.group || n.dataset == nil {
		return nil, container.ErrNotDataset
	}
	if n.readErr != nil {
		return nil, n.readErr
	}
	ds := *n.dataset
	ds.Raw = append([]byte(nil), n.dataset.Raw...)
	return &ds, nil
}

// Element types.
var (
	Float64 = container.ElementType{Class: container.ClassFloat, Size: 8, Order: binary.LittleEndian}
	Float32 = container.ElementType{Class: container.ClassFloat, Size: 4, Order: binary.LittleEndian}
	Uint8   = container.ElementType{Class: container.ClassInteger, Size: 1, Order: binary.LittleEndian}
	Uint16  = container.ElementType{Class: container.ClassInteger, Size: 2, Order: binary.LittleEndian}
	Uint32  = container.ElementType{Class: container.ClassInteger, Size: 4, Order: binary.LittleEndian}
	Uint64  = container.ElementType{Class: container.ClassInteger, Size: 8, Order: binary.LittleEndian}
	Int32   = container.ElementType{Class: container.ClassInteger, Size: 4, Signed: true, Order: binary.LittleEndian}
	Ref     = container.ElementType{Class: container.ClassReference, Size: 8, Order: binary.LittleEndian}
)

// ErrInjected is a convenience error for FailRead and FailChildren.
var ErrInjected = errors.New("injected failure")

// Class returns a MATLAB_class attribute.
func Class(tag string) *container.Attribute {
	return &container.Attribute{
		Name: container.AttrClass,
		Type: container.ElementType{Class: container.ClassString, Size: len(tag)},
		Raw:  []byte(tag),
	}
}

// IntAttr returns a scalar uint32 attribute.
func IntAttr(name string, v uint32) *container.Attribute {
	return &container.Attribute{Name: name, Type: Uint32, Raw: binary.LittleEndian.AppendUint32(nil, v)}
}

// Empty returns MATLAB_empty = 1.
func Empty() *container.Attribute {
	return &container.Attribute{Name: container.AttrEmpty, Type: Uint8, Raw: []byte{1}}
}

// Float64s returns a float64 dataset with storage-order dims.
func Float64s(dims []uint64, v ...float64) *container.Dataset {
	raw := make([]byte, 0, 8*len(v))
	for _, f := range v {
		raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(f))
	}
	return &container.Dataset{Shape: container.Shape{Dims: dims, Type: Float64}, Raw: raw}
}

// Uint16s returns a uint16 dataset.
func Uint16s(dims []uint64, v ...uint16) *container.Dataset {
	raw := make([]byte, 0, 2*len(v))
	for _, x := range v {
		raw = binary.LittleEndian.AppendUint16(raw, x)
	}
	return &container.Dataset{Shape: container.Shape{Dims: dims, Type: Uint16}, Raw: raw}
}

// Uint32s returns a uint32 dataset.
func Uint32s(dims []uint64, v ...uint32) *container.Dataset {
	raw := make([]byte, 0, 4*len(v))
	for _, x := range v {
		raw = binary.LittleEndian.AppendUint32(raw, x)
	}
	return &container.Dataset{Shape: container.Shape{Dims: dims, Type: Uint32}, Raw: raw}
}

// Uint64s returns a uint64 dataset.
func Uint64s(dims []uint64, v ...uint64) *container.Dataset {
	raw := make([]byte, 0, 8*len(v))
	for _, x := range v {
		raw = binary.LittleEndian.AppendUint64(raw, x)
	}
	return &container.Dataset{Shape: container.Shape{Dims: dims, Type: Uint64}, Raw: raw}
}

// Bytes returns a uint8 dataset.
func Bytes(dims []uint64, v []byte) *container.Dataset {
	return &container.Dataset{Shape: container.Shape{Dims: dims, Type: Uint8}, Raw: append([]byte(nil), v...)}
}

// Chars returns the uint16 dataset MATLAB writes for a 1xN char row.
func Chars(s string) *container.Dataset {
	var codes []uint16
	for _, r := range s {
		codes = append(codes, uint16(r))
	}
	return Uint16s([]uint64{uint64(len(codes)), 1}, codes...)
}

// Refs returns a reference dataset pointing at objs; a nil entry is a null
// reference.
func Refs(dims []uint64, objs ...*Object) *container.Dataset {
	raw := make([]byte, 0, 8*len(objs))
	for _, o := range objs {
		var ref uint64
		if o != nil {
			ref = uint64(o.ref)
		}
		raw = binary.LittleEndian.AppendUint64(raw, ref)
	}
	return &container.Dataset{Shape: container.Shape{Dims: dims, Type: Ref}, Raw: raw}
}

// RawRefs returns a reference dataset of arbitrary addresses.
func RawRefs(dims []uint64, refs ...uint64) *container.Dataset {
	raw := make([]byte, 0, 8*len(refs))
	for _, r := range refs {
		raw = binary.LittleEndian.AppendUint64(raw, r)
	}
	return &container.Dataset{Shape: container.Shape{Dims: dims, Type: Ref}, Raw: raw}
}
