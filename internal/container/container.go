// Package container is the access layer between the MATLAB value decoder
// and the HDF5 file: attribute lookup, dataset reads, group iteration and
// reference dereferencing behind small interfaces.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Errors returned by containers.
var (
	ErrNullReference     = errors.New("null reference")
	ErrDanglingReference = errors.New("dangling reference")
	ErrNotDataset        = errors.New("node is not a dataset")
	ErrNotGroup          = errors.New("node is not a group")
	ErrClosed            = errors.New("container closed")
)

// Attribute names MATLAB attaches to v7.3 variables.
const (
	AttrClass        = "MATLAB_class"
	AttrEmpty        = "MATLAB_empty"
	AttrIntDecode    = "MATLAB_int_decode"
	AttrObjectDecode = "MATLAB_object_decode"
	AttrFields       = "MATLAB_fields"
)

// Reference is an object reference: the address of an object header.
type Reference uint64

// ElementClass is the storage class of dataset or attribute elements.
type ElementClass uint8

// Element classes.
const (
	ClassOther ElementClass = iota
	ClassInteger
	ClassFloat
	ClassString
	ClassReference
)

// ElementType describes one stored element.
type ElementType struct {
	Class  ElementClass
	Size   int
	Signed bool
	Order  binary.ByteOrder
}

// String returns names like "float64", "uint16", "string" or "reference".
func (t ElementType) String() string {
	switch t.Class {
	case ClassInteger:
		if t.Signed {
			return fmt.Sprintf("int%d", t.Size*8)
		}
		return fmt.Sprintf("uint%d", t.Size*8)
	case ClassFloat:
		return fmt.Sprintf("float%d", t.Size*8)
	case ClassString:
		return "string"
	case ClassReference:
		return "reference"
	default:
		return fmt.Sprintf("opaque%d", t.Size*8)
	}
}

// Shape is dataset metadata: storage-order dims (nil for a scalar) and the
// element type.
type Shape struct {
	Dims []uint64
	Type ElementType
}

// Len returns the number of elements.
func (s Shape) Len() int {
	n := 1
	for _, d := range s.Dims {
		n *= int(d)
	}
	return n
}

// Attribute is a decoded attribute.
type Attribute struct {
	Name string
	Type ElementType
	Dims []uint64
	Raw  []byte
}

// Text returns a string attribute's value without padding.
func (a *Attribute) Text() (string, bool) {
	if a == nil || a.Type.Class != ClassString {
		return "", false
	}
	end := len(a.Raw)
	for i, b := range a.Raw {
		if b == 0 {
			end = i
			break
		}
	}
	for end > 0 && a.Raw[end-1] == ' ' {
		end--
	}
	return string(a.Raw[:end]), true
}

// Int returns the first element of an integer attribute.
func (a *Attribute) Int() (int64, bool) {
	if a == nil || a.Type.Class != ClassInteger || a.Type.Size == 0 || len(a.Raw) < a.Type.Size {
		return 0, false
	}
	return decodeInt(a.Raw, a.Type), true
}

// Dataset is a fully read dataset payload in storage (row-major) order.
type Dataset struct {
	Shape
	Raw []byte
}

// References decodes the payload of a reference dataset.
func (d *Dataset) References() ([]Reference, error) {
	if d.Type.Class != ClassReference {
		return nil, fmt.Errorf("dataset of %s holds no references", d.Type)
	}
	size := d.Type.Size
	if size == 0 || len(d.Raw)%size != 0 {
		return nil, fmt.Errorf("reference payload of %d bytes is not a multiple of %d", len(d.Raw), size)
	}
	refs := make([]Reference, len(d.Raw)/size)
	for i := range refs {
		refs[i] = Reference(decodeUint(d.Raw[i*size:(i+1)*size], d.Type.Order))
	}
	return refs, nil
}

// Uint returns element i of an integer dataset as uint64.
func (d *Dataset) Uint(i int) (uint64, bool) {
	size := d.Type.Size
	if d.Type.Class != ClassInteger || size == 0 || (i+1)*size > len(d.Raw) {
		return 0, false
	}
	return decodeUint(d.Raw[i*size:(i+1)*size], d.Type.Order), true
}

// Int returns element i of an integer dataset, sign-extended when the type
// is signed.
func (d *Dataset) Int(i int) (int64, bool) {
	size := d.Type.Size
	if d.Type.Class != ClassInteger || size == 0 || (i+1)*size > len(d.Raw) {
		return 0, false
	}
	return decodeInt(d.Raw[i*size:(i+1)*size], d.Type), true
}

// Float returns element i of a numeric dataset as float64.
func (d *Dataset) Float(i int) (float64, bool) {
	size := d.Type.Size
	if size == 0 || (i+1)*size > len(d.Raw) {
		return 0, false
	}
	b := d.Raw[i*size : (i+1)*size]
	switch {
	case d.Type.Class == ClassFloat && size == 8:
		return math.Float64frombits(d.Type.Order.Uint64(b)), true
	case d.Type.Class == ClassFloat && size == 4:
		return float64(math.Float32frombits(d.Type.Order.Uint32(b))), true
	case d.Type.Class == ClassInteger && d.Type.Signed:
		return float64(decodeInt(b, d.Type)), true
	case d.Type.Class == ClassInteger:
		return float64(decodeUint(b, d.Type.Order)), true
	}
	return 0, false
}

// Node is one object of the container graph.
type Node interface {
	// Name is the link name the node was reached through; dereferenced
	// nodes have an empty name.
	Name() string
	Ref() Reference
	IsGroup() bool
	Attr(name string) (*Attribute, bool)
	// Children lists a group's members ordered by name.
	Children() ([]Node, error)
	// Describe returns dataset metadata without reading the payload.
	Describe() (Shape, error)
	Read() (*Dataset, error)
}

// Container is an open file.
type Container interface {
	Root() (Node, error)
	Deref(ref Reference) (Node, error)
	Close() error
}

// ClassTag returns the MATLAB_class attribute of n, or "".
func ClassTag(n Node) string {
	a, ok := n.Attr(AttrClass)
	if !ok {
		return ""
	}
	s, _ := a.Text()
	return s
}

// IsEmpty reports whether n carries a non-zero MATLAB_empty attribute.
func IsEmpty(n Node) bool {
	a, ok := n.Attr(AttrEmpty)
	if !ok {
		return false
	}
	v, ok := a.Int()
	return ok && v != 0
}

// IntAttr returns an integer attribute of n.
func IntAttr(n Node, name string) (int64, bool) {
	a, ok := n.Attr(name)
	if !ok {
		return 0, false
	}
	return a.Int()
}

// Child returns the member of a group with the given name.
func Child(n Node, name string) (Node, bool, error) {
	children, err := n.Children()
	if err != nil {
		return nil, false, err
	}
	for _, c := range children {
		if c.Name() == name {
			return c, true, nil
		}
	}
	return nil, false, nil
}

func decodeUint(b []byte, order binary.ByteOrder) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	return 0
}

func decodeInt(b []byte, t ElementType) int64 {
	u := decodeUint(b[:t.Size], t.Order)
	if !t.Signed || t.Size >= 8 {
		//nolint:gosec // G115: reinterpretation of stored bits
		return int64(u)
	}
	shift := uint(64 - 8*t.Size)
	//nolint:gosec // G115: sign extension
	return int64(u<<shift) >> shift
}
