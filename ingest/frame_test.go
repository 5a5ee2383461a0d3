package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	csv := "Step_Index,Voltage\n1,3.6\n2,3.7\n"
	f, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"Step_Index", "Voltage"}, f.Columns())
	assert.Equal(t, 2, f.NumRows())

	v, ok := f.Value(1, "Voltage")
	require.True(t, ok)
	assert.Equal(t, "3.7", v)
}

func TestReadCSV_EmptyFile(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("a,b,c\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.NumRows())
	assert.Equal(t, 3, f.NumColumns())
}

func TestFrameRename(t *testing.T) {
	f := NewFrame([]string{"a", "b"})
	require.NoError(t, f.AppendRow([]string{"1", "2"}))

	assert.True(t, f.Rename("a", "x"))
	assert.False(t, f.HasColumn("a"))
	v, ok := f.Value(0, "x")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	// Refuses to clobber an existing column
	assert.False(t, f.Rename("x", "b"))
	assert.True(t, f.HasColumn("x"))

	// Unknown source column
	assert.False(t, f.Rename("missing", "y"))
}

func TestFrameInt(t *testing.T) {
	f := NewFrame([]string{"n"})
	require.NoError(t, f.AppendRow([]string{"3"}))
	require.NoError(t, f.AppendRow([]string{"3.0"}))
	require.NoError(t, f.AppendRow([]string{"3.5"}))
	require.NoError(t, f.AppendRow([]string{"abc"}))

	n, err := f.Int(0, "n")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Integer written as float is accepted
	n, err = f.Int(1, "n")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = f.Int(2, "n")
	assert.Error(t, err)
	_, err = f.Int(3, "n")
	assert.Error(t, err)
}

func TestFrameSelect(t *testing.T) {
	f := NewFrame([]string{"n"})
	for _, v := range []string{"0", "1", "2", "3"} {
		require.NoError(t, f.AppendRow([]string{v}))
	}

	out := f.Select(map[int]bool{0: true, 3: true})
	assert.Equal(t, 2, out.NumRows())
	v, _ := out.Value(0, "n")
	assert.Equal(t, "0", v)
	v, _ = out.Value(1, "n")
	assert.Equal(t, "3", v)

	// Original frame untouched
	assert.Equal(t, 4, f.NumRows())
}

func TestFrameMissingColumns(t *testing.T) {
	f := NewFrame([]string{"a", "b"})
	assert.Nil(t, f.MissingColumns([]string{"a", "b"}))
	assert.Equal(t, []string{"c", "d"}, f.MissingColumns([]string{"a", "c", "d"}))
}
