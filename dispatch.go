package mat73

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/scigolib/mat73/internal/container"
)

// Class tags with a dedicated decoder besides the numeric classes.
const (
	tagChar   = "char"
	tagCell   = "cell"
	tagStruct = "struct"
)

// objectDecodeClass is the MATLAB_object_decode value of class objects.
const objectDecodeClass = 3

// session is the state of one Read call: the chain of nodes being resolved
// and the path of link names leading to the current node.
type session struct {
	f        *File
	log      *slog.Logger
	visiting map[container.Reference]bool
	path     []string
}

func (f *File) newSession(name string) *session {
	return &session{
		f:        f,
		log:      f.log.With("var", name),
		visiting: make(map[container.Reference]bool),
	}
}

func (s *session) pathString() string {
	return strings.Join(s.path, "/")
}

// child resolves n under the path segment seg.
func (s *session) child(n container.Node, seg string) (Value, error) {
	s.path = append(s.path, seg)
	defer func() { s.path = s.path[:len(s.path)-1] }()
	return s.dispatch(n)
}

// dispatch maps a node to its value by class tag.
func (s *session) dispatch(n container.Node) (Value, error) {
	ref := n.Ref()
	if s.visiting[ref] {
		s.log.Warn("reference cycle", "path", s.pathString(), "ref", fmt.Sprintf("0x%x", uint64(ref)))
		return placeholder(), nil
	}
	if len(s.path) > s.f.opts.maxDepth {
		s.log.Warn("nesting too deep", "path", s.pathString(), "limit", s.f.opts.maxDepth)
		return placeholder(), nil
	}
	s.visiting[ref] = true
	defer delete(s.visiting, ref)

	tag := container.ClassTag(n)
	if container.IsEmpty(n) {
		return s.empty(n, tag), nil
	}
	if n.IsGroup() {
		if tag != "" && tag != tagStruct {
			s.log.Debug("group with class tag read as record", "path", s.pathString(), "class", tag)
		}
		rec, err := s.resolveRecord(n)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}

	if class, ok := ParseClass(tag); ok {
		ds, err := n.Read()
		if err != nil {
			return nil, err
		}
		a, err := materialize(ds, class)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	switch tag {
	case tagChar:
		ds, err := n.Read()
		if err != nil {
			return nil, err
		}
		return decodeText(ds)
	case tagCell:
		ds, err := n.Read()
		if err != nil {
			return nil, err
		}
		seq, err := s.resolveCell(ds)
		if err != nil {
			return nil, err
		}
		return seq, nil
	case tagStruct, "":
		ds, err := n.Read()
		if err != nil {
			return nil, err
		}
		if ds.Type.Class == container.ClassReference {
			seq, err := s.resolveCell(ds)
			if err != nil {
				return nil, err
			}
			if seq.Len() == 1 {
				return seq.Elems[0], nil
			}
			return seq, nil
		}
		return s.raw(ds, tag), nil
	}

	return s.object(n, tag)
}

// object resolves a dataset tagged with a class name: a timeseries when the
// class declares the required properties, otherwise a raw record.
func (s *session) object(n container.Node, tag string) (Value, error) {
	if decode, ok := container.IntAttr(n, container.AttrObjectDecode); ok && decode != objectDecodeClass {
		s.log.Debug("unexpected object decode", "path", s.pathString(), "class", tag, "decode", decode)
	}

	sub := s.f.subsystem()
	if sub.registry.IsShaped(tag, s.f.opts.required...) {
		return s.f.readTimeseries(s.log, s.pathString()), nil
	}

	ds, err := n.Read()
	if err != nil {
		return nil, err
	}
	s.log.Debug("unsupported class, returning raw payload", "path", s.pathString(), "class", tag)
	rec := NewRecord()
	rec.Set("Class", Text(tag))
	rec.Set("Payload", s.raw(ds, tag))
	return rec, nil
}

// raw returns a payload in its stored element type.
func (s *session) raw(ds *container.Dataset, tag string) Value {
	switch ds.Type.Class {
	case container.ClassString:
		if t, err := decodeText(ds); err == nil {
			return t
		}
	case container.ClassReference:
		refs, err := ds.References()
		if err == nil {
			out := make([]uint64, len(refs))
			for i, r := range refs {
				out[i] = uint64(r)
			}
			return &Array{Class: Uint64, Shape: matlabShape(ds.Dims), Data: out}
		}
	}
	if class, ok := nativeClass(ds.Type); ok {
		if a, err := materialize(ds, class); err == nil {
			return a
		}
	}
	s.log.Debug("payload not decodable", "path", s.pathString(), "class", tag, "dtype", ds.Type.String())
	return placeholder()
}

// empty returns the empty value of a MATLAB_empty node. The payload of such
// a node holds its MATLAB dimensions.
func (s *session) empty(n container.Node, tag string) Value {
	shape := []int{0, 0}
	if !n.IsGroup() {
		if ds, err := n.Read(); err == nil && ds.Type.Class == container.ClassInteger {
			dims := make([]int, 0, ds.Len())
			for i := 0; i < ds.Len(); i++ {
				d, _ := ds.Uint(i)
				dims = append(dims, int(d))
			}
			if len(dims) > 0 {
				shape = dims
			}
		}
	}

	switch tag {
	case tagChar:
		return Text("")
	case tagCell:
		return &Sequence{Elems: []Value{}, Shape: shape}
	case tagStruct:
		return NewRecord()
	}
	if class, ok := ParseClass(tag); ok {
		return emptyArray(class, shape)
	}
	return emptyArray(Double, shape)
}
