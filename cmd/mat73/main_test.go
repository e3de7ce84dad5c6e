package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/mat73"
	"github.com/scigolib/mat73/internal/container"
	"github.com/scigolib/mat73/internal/mcos/mcostest"
	mock "github.com/scigolib/mat73/internal/testing"
)

const samples = 200

// writeMAT saves x = [1 2 3; 4 5 6], label = 'motor' and a timeseries rpm
// into a temporary MAT-file.
func writeMAT(t *testing.T, name string) string {
	t.Helper()
	b := mock.NewH5Builder(512)
	class := func(tag string) mock.Attr { return mock.StringAttr(container.AttrClass, tag) }

	meta := mcostest.New()
	tsClass := meta.Class("", "timeseries")
	meta.Object(tsClass, 1, []string{"Data", "Time"})
	blob := meta.Bytes()

	times := make([]float64, samples)
	data := make([]float64, samples)
	for i := range times {
		times[i] = float64(i) / 100
		data[i] = float64(1000 + i)
	}
	pool := mock.Refs(
		b.Dataset(mock.Uint8, []uint64{uint64(len(blob)), 1}, blob),
		b.Dataset(mock.Float64, []uint64{1, samples}, mock.Float64s(times...)),
		b.Dataset(mock.Float64, []uint64{samples, 1}, mock.Float64s(data...)),
	)
	sys := b.Group([]mock.Entry{{Name: "MCOS", Address: b.Dataset(mock.Reference, []uint64{3, 1}, pool)}})

	root := b.Group([]mock.Entry{
		{Name: "#subsystem#", Address: sys},
		{Name: "x", Address: b.Dataset(mock.Float64, []uint64{3, 2}, mock.Float64s(1, 4, 2, 5, 3, 6), class("double"))},
		{Name: "label", Address: b.Dataset(mock.Uint16, []uint64{5, 1}, mock.UTF16("motor"),
			class("char"), mock.Int32Attr(container.AttrIntDecode, 2))},
		{Name: "rpm", Address: b.Dataset(mock.Uint32, []uint64{6, 1}, mock.Uint32s(0xDD000000, 2, 1, 1, 1, tsClass),
			class("timeseries"), mock.Int32Attr(container.AttrObjectDecode, 3))},
	})

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, b.Finish(root), 0o600))
	return path
}

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mat73 dev\n", out)
}

func TestList(t *testing.T) {
	path := writeMAT(t, "run.mat")
	out, _, err := run(t, "list", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"NAME", "CLASS", "SIZE", "BYTES", "SUMMARY"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"label", "char", "1x5", "10", "B", "5", "chars"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"rpm", "timeseries", "1x6", "24", "B", "200", "samples"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"x", "double", "2x3", "48", "B", "2x3", "double"}, strings.Fields(lines[3]))
}

func TestList_ManyFilesJSON(t *testing.T) {
	a := writeMAT(t, "a.mat")
	b := writeMAT(t, "b.mat")
	out, _, err := run(t, "list", "--json", b, a)
	require.NoError(t, err)

	var got []struct {
		File      string
		Variables []struct{ Name, Summary string }
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, b, got[0].File)
	assert.Equal(t, a, got[1].File)
	assert.Len(t, got[1].Variables, 3)
}

func TestList_Errors(t *testing.T) {
	_, _, err := run(t, "list")
	require.Error(t, err)

	_, _, err = run(t, "list", writeMAT(t, "ok.mat"), filepath.Join(t.TempDir(), "missing.mat"))
	require.Error(t, err)
}

func TestShow_Array(t *testing.T) {
	out, _, err := run(t, "show", writeMAT(t, "run.mat"), "x")
	require.NoError(t, err)
	assert.Equal(t, "x: 2x3 double\nmin: 1  max: 6  mean: 3.5\n1\t2\t3\n4\t5\t6\n", out)
}

func TestShow_Timeseries(t *testing.T) {
	out, _, err := run(t, "show", writeMAT(t, "run.mat"), "rpm", "--rows", "2")
	require.NoError(t, err)
	assert.Equal(t, "rpm: 200 samples\n"+
		"time: 0 .. 1.99\n"+
		"data min: 1000  max: 1199  mean: 1099.5\n"+
		"0\t1000\n"+
		"0.01\t1001\n"+
		"... 198 more samples\n", out)
}

func TestShow_JSON(t *testing.T) {
	out, _, err := run(t, "show", "--json", writeMAT(t, "run.mat"), "label")
	require.NoError(t, err)
	assert.JSONEq(t, `"motor"`, out)
}

func TestShow_NotFound(t *testing.T) {
	_, _, err := run(t, "show", writeMAT(t, "run.mat"), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `variable "nope" not found`)
	assert.NotContains(t, err.Error(), "did you mean")

	_, _, err = run(t, "show", writeMAT(t, "run.mat"), "rmp")
	require.ErrorIs(t, err, mat73.ErrNotFound)
	assert.Contains(t, err.Error(), `did you mean "rpm"?`)
}

func TestClosest(t *testing.T) {
	names := []string{"label", "rpm", "x"}
	got, ok := closest("lable", names)
	assert.True(t, ok)
	assert.Equal(t, "label", got)

	_, ok = closest("temperature", names)
	assert.False(t, ok)
}

func TestConfig(t *testing.T) {
	path := writeMAT(t, "run.mat")

	t.Run("invalid strategy flag", func(t *testing.T) {
		_, _, err := run(t, "show", path, "x", "--strategy", "sideways")
		require.Error(t, err)
	})

	t.Run("invalid strategy from env", func(t *testing.T) {
		t.Setenv("MAT73_ALLOCATION_STRATEGY", "sideways")
		_, _, err := run(t, "list", path)
		require.Error(t, err)
	})

	t.Run("config file", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "mat73.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("allocation:\n  strategy: shape-match\n  min_elements: 10\n"), 0o600))
		out, _, err := run(t, "show", "--config", cfg, path, "rpm", "--rows", "1")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "rpm: 200 samples\n"))
	})

	t.Run("missing config file", func(t *testing.T) {
		_, _, err := run(t, "list", "--config", filepath.Join(t.TempDir(), "none.yaml"), path)
		require.Error(t, err)
	})

	t.Run("debug logging", func(t *testing.T) {
		_, stderr, err := run(t, "show", path, "x", "--log-level", "debug", "--log-format", "json")
		require.NoError(t, err)
		assert.Contains(t, stderr, `"msg":"reading variable"`)
	})
}

func TestDump(t *testing.T) {
	path := writeMAT(t, "run.mat")
	out, _, err := run(t, "dump", path, "--offset", "512", "--length", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Dumping 8 bytes at offset 0x200 (512)")
	assert.Contains(t, out, "00000200: 89 48 44 46 0d 0a 1a 0a")
	assert.Contains(t, out, "|.HDF....|")

	_, _, err = run(t, "dump", path, "--offset", "-1")
	require.Error(t, err)
	_, _, err = run(t, "dump", path, "--length", "0")
	require.Error(t, err)
}

func TestHexDump(t *testing.T) {
	var buf bytes.Buffer
	hexDump(&buf, []byte("MATLAB 7.3 MAT-file"), 0)
	assert.Equal(t,
		"00000000: 4d 41 54 4c 41 42 20 37  2e 33 20 4d 41 54 2d 66  |MATLAB 7.3 MAT-f|\n"+
			"00000010: 69 6c 65                                          |ile|\n",
		buf.String())
}
