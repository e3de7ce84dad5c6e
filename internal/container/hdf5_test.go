package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	mock "github.com/scigolib/mat73/internal/testing"
)

type fixture struct {
	file  *File
	ts    uint64
	items uint64
	blob  uint64
}

func buildFixture(t *testing.T) fixture {
	t.Helper()
	b := mock.NewH5Builder(512)
	x := b.Dataset(mock.Float64, []uint64{3, 2}, mock.Float64s(1, 2, 3, 4, 5, 6), mock.StringAttr(AttrClass, "double"))
	name := b.Dataset(mock.Uint16, []uint64{2, 1}, mock.UTF16("hi"),
		mock.StringAttr(AttrClass, "char"), mock.Int32Attr(AttrIntDecode, 2))
	empty := b.Dataset(mock.Uint64, []uint64{2}, mock.Refs(0, 0),
		mock.StringAttr(AttrClass, "double"), mock.Uint8Attr(AttrEmpty, 1))
	items := b.Dataset(mock.Reference, []uint64{2, 1}, mock.Refs(x, name), mock.StringAttr(AttrClass, "cell"))
	s := b.Group([]mock.Entry{{Name: "a", Address: x}}, mock.StringAttr(AttrClass, "struct"))
	blob := b.Raw([]byte{0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE})
	root := b.Group([]mock.Entry{
		{Name: "x", Address: x},
		{Name: "name", Address: name},
		{Name: "empty", Address: empty},
		{Name: "items", Address: items},
		{Name: "s", Address: s},
	})

	data := b.Finish(root)
	r := mock.NewMockReaderAt(data)
	f, err := New(r, r.Size())
	require.NoError(t, err)
	return fixture{file: f, ts: s, items: items, blob: blob}
}

func names(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name()
	}
	return out
}

func TestFile_Root(t *testing.T) {
	fx := buildFixture(t)
	f := fx.file
	require.Equal(t, uint64(512), f.Superblock().Base)

	root, err := f.Root()
	require.NoError(t, err)
	require.True(t, root.IsGroup())
	require.Equal(t, "/", root.Name())

	children, err := root.Children()
	require.NoError(t, err)
	require.Equal(t, []string{"empty", "items", "name", "s", "x"}, names(children))

	_, err = root.Read()
	require.ErrorIs(t, err, ErrNotDataset)
	_, err = root.Describe()
	require.ErrorIs(t, err, ErrNotDataset)
}

func TestFile_Datasets(t *testing.T) {
	fx := buildFixture(t)
	root, err := fx.file.Root()
	require.NoError(t, err)

	x, ok, err := Child(root, "x")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, x.IsGroup())
	require.Equal(t, "double", ClassTag(x))
	require.False(t, IsEmpty(x))

	shape, err := x.Describe()
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 2}, shape.Dims)
	require.Equal(t, "float64", shape.Type.String())
	require.Equal(t, 6, shape.Len())

	ds, err := x.Read()
	require.NoError(t, err)
	v, ok := ds.Float(4)
	require.True(t, ok)
	require.InDelta(t, 5.0, v, 0)

	_, err = x.Children()
	require.ErrorIs(t, err, ErrNotGroup)

	name, ok, err := Child(root, "name")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "char", ClassTag(name))
	decode, ok := IntAttr(name, AttrIntDecode)
	require.True(t, ok)
	require.Equal(t, int64(2), decode)
	ds, err = name.Read()
	require.NoError(t, err)
	c, ok := ds.Uint(1)
	require.True(t, ok)
	require.Equal(t, uint64('i'), c)

	empty, ok, err := Child(root, "empty")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, IsEmpty(empty))

	_, ok, err = Child(root, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFile_Deref(t *testing.T) {
	fx := buildFixture(t)
	f := fx.file

	items, err := f.Deref(Reference(fx.items))
	require.NoError(t, err)
	require.Empty(t, items.Name())
	require.Equal(t, Reference(fx.items), items.Ref())

	ds, err := items.Read()
	require.NoError(t, err)
	refs, err := ds.References()
	require.NoError(t, err)
	require.Len(t, refs, 2)

	x, err := f.Deref(refs[0])
	require.NoError(t, err)
	require.Equal(t, "double", ClassTag(x))

	s, err := f.Deref(Reference(fx.ts))
	require.NoError(t, err)
	require.True(t, s.IsGroup())
	children, err := s.Children()
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, names(children))

	_, err = f.Deref(0)
	require.ErrorIs(t, err, ErrNullReference)
	_, err = f.Deref(Reference(^uint64(0)))
	require.ErrorIs(t, err, ErrNullReference)

	_, err = f.Deref(Reference(fx.blob))
	require.ErrorIs(t, err, ErrDanglingReference)
	_, err = f.Deref(0x100000)
	require.ErrorIs(t, err, ErrDanglingReference)
}

func TestFile_ReferencesOnNumericDataset(t *testing.T) {
	fx := buildFixture(t)
	root, err := fx.file.Root()
	require.NoError(t, err)
	x, _, err := Child(root, "x")
	require.NoError(t, err)
	ds, err := x.Read()
	require.NoError(t, err)
	_, err = ds.References()
	require.Error(t, err)
}

func TestFile_Close(t *testing.T) {
	fx := buildFixture(t)
	f := fx.file
	root, err := f.Root()
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Root()
	require.ErrorIs(t, err, ErrClosed)
	_, err = f.Deref(Reference(fx.items))
	require.ErrorIs(t, err, ErrClosed)
	_, err = root.Children()
	require.ErrorIs(t, err, ErrClosed)
}

func TestOpen(t *testing.T) {
	b := mock.NewH5Builder(512)
	x := b.Dataset(mock.Float64, nil, mock.Float64s(42), mock.StringAttr(AttrClass, "double"))
	root := b.Group([]mock.Entry{{Name: "x", Address: x}})

	path := filepath.Join(t.TempDir(), "scalar.mat")
	require.NoError(t, os.WriteFile(path, b.Finish(root), 0o600))

	f, err := Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	root2, err := f.Root()
	require.NoError(t, err)
	node, ok, err := Child(root2, "x")
	require.NoError(t, err)
	require.True(t, ok)
	shape, err := node.Describe()
	require.NoError(t, err)
	require.Nil(t, shape.Dims)

	_, err = Open(filepath.Join(t.TempDir(), "missing.mat"))
	require.Error(t, err)
}

func TestAttribute_Text(t *testing.T) {
	a := &Attribute{Type: ElementType{Class: ClassString, Size: 8}, Raw: []byte("cell  \x00\x00")}
	s, ok := a.Text()
	require.True(t, ok)
	require.Equal(t, "cell", s)

	_, ok = (&Attribute{Type: ElementType{Class: ClassInteger, Size: 1}, Raw: []byte{1}}).Text()
	require.False(t, ok)

	var missing *Attribute
	_, ok = missing.Int()
	require.False(t, ok)
}
