// Package mat73 reads variables from MATLAB v7.3 MAT-files without a MATLAB
// runtime. A v7.3 MAT-file is an HDF5 file behind a 512-byte user block;
// variables are its top-level groups and datasets, typed by a MATLAB_class
// attribute.
//
// Read materializes one variable as a Value: an *Array for numeric and
// logical classes, Text for char, a *Sequence for cell, a *Record for struct
// and a *Timeseries for timeseries objects.
package mat73

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scigolib/mat73/internal/container"
	"github.com/scigolib/mat73/internal/core"
)

// File is an open MAT-file. A File may be shared by goroutines; reads of the
// underlying file are serialized.
type File struct {
	c    container.Container
	opts options
	log  *slog.Logger
	id   string

	mu     sync.Mutex
	sub    *subsystem
	diags  []error
	closed bool
}

// Open opens a MAT-file for reading.
func Open(filename string, opts ...Option) (*File, error) {
	c, err := container.Open(filename)
	if err != nil {
		return nil, openError(filename, err)
	}
	return newFile(c, filename, opts...), nil
}

// OpenReader reads a MAT-file image of the given size from r. Closing the
// File does not close r.
func OpenReader(r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	c, err := container.New(r, size)
	if err != nil {
		return nil, openError("reader", err)
	}
	return newFile(c, "", opts...), nil
}

func openError(name string, err error) error {
	if errors.Is(err, core.ErrNoSignature) {
		return fmt.Errorf("%s: %w", name, ErrNotMATFile)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func newFile(c container.Container, name string, opts ...Option) *File {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	id := uuid.NewString()
	return &File{
		c:    c,
		opts: o,
		id:   id,
		log:  o.logger.With("session", id, "file", name),
	}
}

// ReadFile opens filename, reads one variable and closes the file.
func ReadFile(filename, name string, opts ...Option) (v Value, err error) {
	f, err := Open(filename, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return f.Read(name)
}

// Close releases the file. It is safe to call Close multiple times.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.sub = nil
	return f.c.Close()
}

// Session returns the id attached to this File's log records.
func (f *File) Session() string {
	return f.id
}

// Diagnostics returns the problems met while decoding: errors matching
// ErrMetadataParse, ErrAllocationShortfall or ErrUnreadable.
func (f *File) Diagnostics() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.diags...)
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// variables returns the top-level nodes, internal ones excluded.
func (f *File) variables() ([]container.Node, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	root, err := f.c.Root()
	if err != nil {
		return nil, err
	}
	children, err := root.Children()
	if err != nil {
		return nil, err
	}
	out := children[:0]
	for _, c := range children {
		if !strings.HasPrefix(c.Name(), "#") {
			out = append(out, c)
		}
	}
	return out, nil
}

// Variables returns the names of the variables in the file, sorted.
func (f *File) Variables() ([]string, error) {
	nodes, err := f.variables()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	sort.Strings(names)
	return names, nil
}

// Read materializes the variable name. An unknown name yields a
// *NotFoundError listing the variables the file holds.
func (f *File) Read(name string) (Value, error) {
	nodes, err := f.variables()
	if err != nil {
		return nil, err
	}

	var node container.Node
	available := make([]string, 0, len(nodes))
	for _, n := range nodes {
		available = append(available, n.Name())
		if n.Name() == name {
			node = n
		}
	}
	if node == nil {
		sort.Strings(available)
		return nil, &NotFoundError{Name: name, Available: available}
	}

	if f.log.Enabled(context.Background(), slog.LevelDebug) {
		info := f.describe(node, name)
		f.log.Debug("reading variable", "name", name, "class", info.Class, "shape", info.Dims, "dtype", info.dtype)
	}

	v, err := f.newSession(name).child(node, name)
	if err != nil {
		err = fmt.Errorf("%w: %q: %w", ErrUnreadable, name, err)
		f.mu.Lock()
		f.diags = append(f.diags, err)
		f.mu.Unlock()
		f.log.Warn("variable unreadable", "name", name, "error", err)
		return placeholder(), nil
	}
	return v, nil
}

// VariableInfo describes a variable without materializing it.
type VariableInfo struct {
	Name    string
	Class   string
	Dims    []int // MATLAB size vector
	Empty   bool
	Bytes   int64 // stored payload size
	Summary string

	dtype string
}

// ListVariables describes every variable, ordered by name.
func (f *File) ListVariables() ([]VariableInfo, error) {
	nodes, err := f.variables()
	if err != nil {
		return nil, err
	}
	out := make([]VariableInfo, len(nodes))
	for i, n := range nodes {
		out[i] = f.describe(n, n.Name())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Walk visits every variable and, depth first, every field of struct
// variables. Paths are slash-joined field names.
func (f *File) Walk(fn func(path string, info VariableInfo)) error {
	nodes, err := f.variables()
	if err != nil {
		return err
	}
	seen := make(map[container.Reference]bool)
	var walk func(n container.Node, path string, depth int)
	walk = func(n container.Node, path string, depth int) {
		fn(path, f.describe(n, path))
		if !n.IsGroup() || seen[n.Ref()] || depth >= f.opts.maxDepth {
			return
		}
		seen[n.Ref()] = true
		children, err := n.Children()
		if err != nil {
			return
		}
		for _, c := range children {
			walk(c, path+"/"+c.Name(), depth+1)
		}
	}
	for _, n := range nodes {
		walk(n, n.Name(), 1)
	}
	return nil
}

func (f *File) describe(n container.Node, path string) VariableInfo {
	info := VariableInfo{Name: n.Name(), Class: container.ClassTag(n), Empty: container.IsEmpty(n)}

	if n.IsGroup() {
		if info.Class == "" {
			info.Class = tagStruct
		}
		info.Dims = []int{1, 1}
		info.dtype = "group"
		if children, err := n.Children(); err == nil {
			info.Summary = fmt.Sprintf("%d fields", len(children))
		}
		return info
	}

	shape, err := n.Describe()
	if err != nil {
		return info
	}
	info.dtype = shape.Type.String()
	info.Dims = matlabDims(shape.Dims)
	if len(info.Dims) == 0 {
		info.Dims = []int{1, 1}
	}
	if info.Empty {
		info.Summary = "empty"
		if ds, err := n.Read(); err == nil {
			dims := make([]int, 0, ds.Len())
			for i := 0; i < ds.Len(); i++ {
				d, _ := ds.Uint(i)
				dims = append(dims, int(d))
			}
			info.Dims = dims
		}
		return info
	}
	info.Bytes = int64(shape.Len() * shape.Type.Size)

	switch {
	case info.Class == tagChar:
		info.Summary = fmt.Sprintf("%d chars", shape.Len())
	case info.Class == tagCell:
		info.Summary = fmt.Sprintf("%d elements", shape.Len())
	case isBuiltinClass(info.Class) || info.Class == "":
		info.Summary = formatShape(info.Dims) + " " + info.Class
	default:
		info.Summary = f.describeObject(info.Class, path)
	}
	info.Summary = strings.TrimSpace(info.Summary)
	return info
}

func (f *File) describeObject(class, path string) string {
	sub := f.subsystem()
	if !sub.registry.IsShaped(class, f.opts.required...) {
		return class + " object"
	}
	pair, ok := sub.alloc[path]
	if !ok {
		return "0 samples"
	}
	n, err := f.c.Deref(sub.pool[pair.Time])
	if err != nil {
		return "timeseries"
	}
	shape, err := n.Describe()
	if err != nil {
		return "timeseries"
	}
	return fmt.Sprintf("%d samples", shape.Len())
}

func isBuiltinClass(tag string) bool {
	_, ok := ParseClass(tag)
	return ok || tag == tagChar || tag == tagCell || tag == tagStruct
}
