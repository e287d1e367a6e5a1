package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	in := `id,t0,t1
glucose, 1.5, 2
# skipped
lactate,3,-4e-1
`
	tbl, err := Load(strings.NewReader(in), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"glucose", "lactate"}, tbl.IDs)
	assert.Equal(t, []string{"t0", "t1"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Items())
	r, c := tbl.Data.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 1.5, tbl.Data.At(0, 0))
	assert.Equal(t, -0.4, tbl.Data.At(1, 1))
}

func TestLoad_DropTrailing(t *testing.T) {
	in := `name,a,b,note
x,1,2,first
y,3,4,second
`
	tbl, err := Load(strings.NewReader(in), Options{Header: true, DropTrailing: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	_, c := tbl.Data.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 4.0, tbl.Data.At(1, 1))
}

func TestLoad_NoHeader(t *testing.T) {
	tbl, err := Load(strings.NewReader("a,1\nb,2\n"), Options{})
	require.NoError(t, err)
	assert.Nil(t, tbl.Columns)
	assert.Equal(t, 2, tbl.Items())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"header only", "id,a\n"},
		{"no numeric columns", "id\nx\n"},
		{"not a number", "id,a\nx,abc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.in), DefaultOptions())
			assert.Error(t, err)
		})
	}

	_, err := Load(strings.NewReader("id,a\n"), DefaultOptions())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,a\nx,1\ny,2\n"), 0644))

	tbl, err := LoadFile(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "y", tbl.ID(1))
	assert.Equal(t, "7", tbl.ID(7))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"), DefaultOptions())
	assert.Error(t, err)
}
