package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/structures"
	"github.com/scigolib/mat73/internal/utils"
)

// File is a Container backed by an HDF5 file. It is safe for concurrent
// use; reads are serialized on one mutex.
type File struct {
	osFile *os.File
	r      io.ReaderAt
	sb     *core.Superblock

	mu      sync.Mutex
	headers map[uint64]*core.ObjectHeader
	closed  bool
}

// Open opens an HDF5 file from disk.
func Open(filename string) (*File, error) {
	//nolint:gosec // G304: caller-chosen path
	f, err := os.Open(filename)
	if err != nil {
		return nil, utils.WrapError("file open failed", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, utils.WrapError("file stat failed", err)
	}
	file, err := New(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	file.osFile = f
	return file, nil
}

// New reads the superblock of an HDF5 image of the given size. A user block
// in front of the signature is skipped.
func New(r io.ReaderAt, size int64) (*File, error) {
	sb, err := core.ReadSuperblock(r, size)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G115: base lies inside the file
	base := int64(sb.Base)
	return &File{
		r:       io.NewSectionReader(r, base, size-base),
		sb:      sb,
		headers: make(map[uint64]*core.ObjectHeader),
	}, nil
}

// Superblock returns the parsed superblock.
func (f *File) Superblock() *core.Superblock {
	return f.sb
}

// Root returns the root group.
func (f *File) Root() (Node, error) {
	return f.node("/", f.sb.RootGroup)
}

// Deref resolves an object reference.
func (f *File) Deref(ref Reference) (Node, error) {
	addr := uint64(ref)
	if addr == 0 || f.sb.IsUndefined(addr) {
		return nil, ErrNullReference
	}
	n, err := f.node("", addr)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w 0x%x: %w", ErrDanglingReference, addr, err)
	}
	return n, nil
}

// Close releases the underlying file. Closing twice is a no-op.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.headers = nil
	if f.osFile != nil {
		return f.osFile.Close()
	}
	return nil
}

func (f *File) node(name string, addr uint64) (*object, error) {
	h, err := f.header(addr)
	if err != nil {
		return nil, err
	}
	return &object{file: f, name: name, header: h}, nil
}

func (f *File) header(addr uint64) (*core.ObjectHeader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if h, ok := f.headers[addr]; ok {
		return h, nil
	}
	h, err := core.ReadObjectHeader(f.r, addr, f.sb)
	if err != nil {
		return nil, err
	}
	f.headers[addr] = h
	return h, nil
}

// object is one HDF5 group or dataset.
type object struct {
	file   *File
	name   string
	header *core.ObjectHeader
}

func (o *object) Name() string { return o.name }

func (o *object) Ref() Reference { return Reference(o.header.Address) }

func (o *object) IsGroup() bool {
	return o.header.Type == core.ObjectTypeGroup
}

func (o *object) Attr(name string) (*Attribute, bool) {
	a := o.header.Attribute(name)
	if a == nil {
		return nil, false
	}
	attr := &Attribute{Name: a.Name, Type: elementType(a.Datatype), Raw: a.Data}
	if a.Dataspace != nil {
		attr.Dims = a.Dataspace.Dimensions
	}
	return attr, true
}

func (o *object) Children() ([]Node, error) {
	if !o.IsGroup() {
		return nil, ErrNotGroup
	}
	f := o.file
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	links, err := structures.ReadLinks(f.r, o.header, f.sb)
	f.mu.Unlock()
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("group %q members", o.name), err)
	}

	nodes := make([]Node, 0, len(links))
	for _, l := range links {
		child, err := f.node(l.Name, l.Address)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("member %q", l.Name), err)
		}
		nodes = append(nodes, child)
	}
	return nodes, nil
}

func (o *object) Describe() (Shape, error) {
	info, err := o.info()
	if err != nil {
		return Shape{}, err
	}
	return shapeOf(info), nil
}

func (o *object) Read() (*Dataset, error) {
	info, err := o.info()
	if err != nil {
		return nil, err
	}
	f := o.file
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	raw, err := core.ReadDatasetRaw(f.r, info, f.sb)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("dataset %q read failed", o.name), err)
	}
	return &Dataset{Shape: shapeOf(info), Raw: raw}, nil
}

func (o *object) info() (*core.DatasetInfo, error) {
	if o.header.Type != core.ObjectTypeDataset {
		return nil, ErrNotDataset
	}
	return core.ReadDatasetInfo(o.header, o.file.sb)
}

func shapeOf(info *core.DatasetInfo) Shape {
	var dims []uint64
	switch info.Dataspace.Type {
	case core.DataspaceSimple:
		dims = info.Dataspace.Dimensions
	case core.DataspaceNull:
		dims = []uint64{0}
	}
	return Shape{Dims: dims, Type: elementType(info.Datatype)}
}

func elementType(dt *core.DatatypeMessage) ElementType {
	t := ElementType{Size: int(dt.Size), Order: dt.ByteOrder()}
	switch {
	case dt.Class == core.DatatypeFixed:
		t.Class = ClassInteger
		t.Signed = dt.Signed()
	case dt.Class == core.DatatypeFloat:
		t.Class = ClassFloat
	case dt.Class == core.DatatypeString:
		t.Class = ClassString
	case dt.IsObjectReference():
		t.Class = ClassReference
	default:
		t.Class = ClassOther
	}
	return t
}
