package mat73

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/mat73/internal/container"
	ct "github.com/scigolib/mat73/internal/container/containertest"
	"github.com/scigolib/mat73/internal/mcos/mcostest"
)

const samples = 150

// series returns count values starting at start.
func series(start float64, count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

// tsFixture assembles timeseries objects, their metadata blob and the
// subsystem pool that backs them.
type tsFixture struct {
	c     *ct.Container
	names *mcostest.Builder
	class uint32
}

func newTSFixture() *tsFixture {
	b := mcostest.New()
	return &tsFixture{c: ct.New(), names: b, class: b.Class("", "timeseries")}
}

// object returns a timeseries dataset with the given object id.
func (fx *tsFixture) object(id uint32) *ct.Object {
	fx.names.Object(fx.class, id, []string{"Data", "Time"}, "Name")
	return fx.c.Dataset(ct.Uint32s([]uint64{6, 1}, objectMarker, 2, 1, 1, id, fx.class),
		ct.Class("timeseries"), ct.IntAttr(container.AttrObjectDecode, 3))
}

// finish writes #subsystem#/MCOS with the metadata blob followed by pool.
func (fx *tsFixture) finish(blob []byte, pool ...*ct.Object) *ct.Container {
	if blob == nil {
		blob = fx.names.Bytes()
	}
	meta := fx.c.Dataset(ct.Bytes([]uint64{uint64(len(blob)), 1}, blob), ct.Class("uint8"))
	refs := ct.Refs([]uint64{uint64(len(pool) + 1), 1}, append([]*ct.Object{meta}, pool...)...)
	sys := fx.c.Group().Link("MCOS", fx.c.Dataset(refs, ct.Class("FileWrapper__")))
	fx.c.Link("#subsystem#", sys)
	return fx.c
}

func (fx *tsFixture) timeVec(start float64) *ct.Object {
	return fx.c.Dataset(ct.Float64s([]uint64{1, samples}, series(start, samples)...))
}

func (fx *tsFixture) dataVec(start float64) *ct.Object {
	return fx.c.Dataset(ct.Float64s([]uint64{samples, 1}, series(start, samples)...))
}

func readTS(t *testing.T, f *File, name string) *Timeseries {
	t.Helper()
	v, err := f.Read(name)
	require.NoError(t, err)
	ts, ok := v.(*Timeseries)
	require.True(t, ok, "%s is %T", name, v)
	return ts
}

func TestTimeseries_AlternatingPairs(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("tsA", fx.object(1))
	fx.c.Link("tsB", fx.object(2))
	c := fx.finish(nil, fx.timeVec(0), fx.dataVec(1000), fx.timeVec(10), fx.dataVec(2000))
	f := openFake(t, c)

	a := readTS(t, f, "tsA")
	require.Equal(t, []int{samples}, a.Time.Shape)
	if diff := cmp.Diff(series(0, samples), a.Time.Data); diff != "" {
		t.Fatalf("tsA time (-want +got):\n%s", diff)
	}
	require.Equal(t, series(1000, samples), a.Data.Data)
	require.Equal(t, samples, a.Samples())

	b := readTS(t, f, "tsB")
	require.Equal(t, series(10, samples), b.Time.Data)
	require.Equal(t, series(2000, samples), b.Data.Data)
	require.Empty(t, f.Diagnostics())
}

func TestTimeseries_RefIndexOrdering(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("first", fx.object(3))
	fx.c.Link("second", fx.object(1))
	c := fx.finish(nil, fx.timeVec(0), fx.dataVec(100), fx.timeVec(50), fx.dataVec(200))
	f := openFake(t, c)

	require.Equal(t, series(0, samples), readTS(t, f, "second").Time.Data)
	require.Equal(t, series(50, samples), readTS(t, f, "first").Time.Data)
}

func TestTimeseries_StructField(t *testing.T) {
	fx := newTSFixture()
	s := fx.c.Group(ct.Class("struct")).
		Link("speed", fx.object(2)).
		Link("gain", fx.c.Dataset(ct.Float64s(nil, 4), ct.Class("double")))
	fx.c.Link("s", s)
	fx.c.Link("top", fx.object(1))
	c := fx.finish(nil, fx.timeVec(0), fx.dataVec(1), fx.timeVec(7), fx.dataVec(8))
	f := openFake(t, c)

	v, err := f.Read("s")
	require.NoError(t, err)
	rec := v.(*Record)
	speed, ok := rec.Get("speed")
	require.True(t, ok)
	require.Equal(t, series(7, samples), speed.(*Timeseries).Time.Data)
	require.Equal(t, "speed: 150", Summarize(rec))

	infos, err := f.ListVariables()
	require.NoError(t, err)
	require.Equal(t, "top", infos[1].Name)
	require.Equal(t, "150 samples", infos[1].Summary)
}

func TestTimeseries_Shortfall(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("a", fx.object(1))
	fx.c.Link("b", fx.object(2))
	fx.c.Link("c", fx.object(3))
	c := fx.finish(nil, fx.timeVec(0), fx.dataVec(1), fx.timeVec(2), fx.dataVec(3))
	f := openFake(t, c)

	late := readTS(t, f, "c")
	require.Equal(t, 0, late.Samples())
	require.Equal(t, 0, late.Data.Len())
	require.Equal(t, samples, readTS(t, f, "b").Samples())

	diags := f.Diagnostics()
	require.Len(t, diags, 1)
	require.ErrorIs(t, diags[0], ErrAllocationShortfall)
	require.Contains(t, diags[0].Error(), "c")
}

func TestTimeseries_IneligibleSlotsSkipped(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("ts", fx.object(1))
	small := fx.c.Dataset(ct.Float64s([]uint64{1, 3}, 1, 2, 3))
	ints := fx.c.Dataset(ct.Uint32s([]uint64{samples, 1}, make([]uint32, samples)...))
	empty := fx.c.Dataset(ct.Float64s([]uint64{1, samples}, series(0, samples)...), ct.Empty())
	c := fx.finish(nil, small, ints, empty, fx.timeVec(5), fx.dataVec(6))
	f := openFake(t, c)

	ts := readTS(t, f, "ts")
	require.Equal(t, series(5, samples), ts.Time.Data)
	require.Equal(t, series(6, samples), ts.Data.Data)
}

func TestTimeseries_ShapeMatchLayout(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("a", fx.object(1))
	fx.c.Link("b", fx.object(2))
	c := fx.finish(nil, fx.dataVec(100), fx.timeVec(0), fx.timeVec(10), fx.dataVec(200))

	auto := readTS(t, openFake(t, c), "a")
	require.Equal(t, series(0, samples), auto.Time.Data)
	require.Equal(t, series(100, samples), auto.Data.Data)

	forced := openFake(t, c, WithAllocationPolicy(AllocationStrategy(StrategyAlternating)))
	alt := readTS(t, forced, "a")
	require.Equal(t, series(100, samples), alt.Time.Data)
}

func TestTimeseries_RowVectorData(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("tsA", fx.object(1))
	fx.c.Link("tsB", fx.object(2))
	c := fx.finish(nil, fx.timeVec(0), fx.timeVec(1000), fx.timeVec(10), fx.timeVec(2000))
	f := openFake(t, c)

	a := readTS(t, f, "tsA")
	require.Equal(t, series(0, samples), a.Time.Data)
	require.Equal(t, series(1000, samples), a.Data.Data)
	b := readTS(t, f, "tsB")
	require.Equal(t, series(10, samples), b.Time.Data)
	require.Equal(t, series(2000, samples), b.Data.Data)
	require.Empty(t, f.Diagnostics())
}

func TestTimeseries_MinElements(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("ts", fx.object(1))
	c := fx.finish(nil, fx.timeVec(0), fx.dataVec(1))
	f := openFake(t, c, WithAllocationPolicy(AllocationMinElements(samples)))

	require.Equal(t, 0, readTS(t, f, "ts").Samples())
	require.ErrorIs(t, f.Diagnostics()[0], ErrAllocationShortfall)
}

func TestTimeseries_RequiredProperties(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("ts", fx.object(1))
	c := fx.finish(nil, fx.timeVec(0), fx.dataVec(1))
	f := openFake(t, c, WithAllocationPolicy(AllocationRequiredProperties("Time", "Data", "Quality")))

	v, err := f.Read("ts")
	require.NoError(t, err)
	rec, ok := v.(*Record)
	require.True(t, ok)
	class, _ := rec.Get("Class")
	require.Equal(t, Text("timeseries"), class)
}

func TestTimeseries_MalformedMetadata(t *testing.T) {
	fx := newTSFixture()
	fx.c.Link("ts", fx.object(1))
	fx.c.Link("x", fx.c.Dataset(ct.Float64s(nil, 9), ct.Class("double")))
	c := fx.finish([]byte("garbage that is not a metadata blob at all......"), fx.timeVec(0), fx.dataVec(1))
	f := openFake(t, c)

	v, err := f.Read("ts")
	require.NoError(t, err)
	rec, ok := v.(*Record)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"Class", "Payload"}, rec.Keys())
	payload, _ := rec.Get("Payload")
	require.Equal(t, uint32(objectMarker), payload.(*Array).Data.([]uint32)[0])

	x, err := f.Read("x")
	require.NoError(t, err)
	require.Equal(t, []float64{9}, x.(*Array).Data)

	diags := f.Diagnostics()
	require.Len(t, diags, 1)
	require.True(t, errors.Is(diags[0], ErrMetadataParse))
}

func TestTimeseries_NoSubsystem(t *testing.T) {
	c := ct.New()
	c.Link("ts", c.Dataset(ct.Uint32s([]uint64{6, 1}, objectMarker, 2, 1, 1, 1, 1), ct.Class("timeseries")))
	f := openFake(t, c)

	v, err := f.Read("ts")
	require.NoError(t, err)
	require.Equal(t, KindRecord, v.Kind())
	require.Empty(t, f.Diagnostics())
}

func TestRefIndex(t *testing.T) {
	c := ct.New()
	obj := c.Dataset(ct.Uint32s([]uint64{6, 1}, objectMarker, 2, 1, 1, 42, 1))
	plain := c.Dataset(ct.Uint32s([]uint64{6, 1}, 1, 2, 3, 4, 5, 6))
	short := c.Dataset(ct.Uint32s([]uint64{2, 1}, objectMarker, 2))
	c.Link("obj", obj).Link("plain", plain).Link("short", short)

	root, err := c.Root()
	require.NoError(t, err)
	children, err := root.Children()
	require.NoError(t, err)
	got := make(map[string]int64)
	for _, n := range children {
		got[n.Name()] = refIndex(n)
	}
	require.Equal(t, map[string]int64{"obj": 42, "plain": 0, "short": 0}, got)
}
