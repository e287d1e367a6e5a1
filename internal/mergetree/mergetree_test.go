package mergetree

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"ecco/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sixItemTree() core.MergeTree {
	return core.MergeTree{Items: 6, Events: []core.MergeEvent{
		{Left: 0, Right: 1, Height: 1.0},
		{Left: 2, Right: 3, Height: 1.0 + 1e-9},
		{Left: 4, Right: 5, Height: 2.0},
		{Left: 6, Right: 7, Height: 3.0},
		{Left: 8, Right: 9, Height: 4.0},
	}}
}

func TestCheckShape(t *testing.T) {
	require.NoError(t, CheckShape(sixItemTree()))

	short := sixItemTree()
	short.Events = short.Events[:3]
	err := CheckShape(short)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedTree))

	err = CheckShape(core.MergeTree{Items: 0})
	assert.ErrorIs(t, err, core.ErrMalformedTree)
}

func TestFromEdges(t *testing.T) {
	edges := []core.Edge{
		{U: 1, V: 2, Weight: 3},
		{U: 0, V: 1, Weight: 1},
		{U: 2, V: 3, Weight: 2},
	}

	tree, err := FromEdges(4, edges)
	require.NoError(t, err)
	require.Len(t, tree.Events, 3)

	assert.Equal(t, core.MergeEvent{Left: 0, Right: 1, Height: 1}, tree.Events[0])
	assert.Equal(t, core.MergeEvent{Left: 2, Right: 3, Height: 2}, tree.Events[1])
	assert.Equal(t, core.MergeEvent{Left: 4, Right: 5, Height: 3}, tree.Events[2])
}

func TestFromEdges_Cycle(t *testing.T) {
	edges := []core.Edge{
		{U: 0, V: 1, Weight: 1},
		{U: 1, V: 0, Weight: 2},
	}
	_, err := FromEdges(3, edges)
	assert.ErrorIs(t, err, core.ErrMalformedTree)
}

func TestFromEdges_WrongCount(t *testing.T) {
	_, err := FromEdges(5, []core.Edge{{U: 0, V: 1, Weight: 1}})
	assert.ErrorIs(t, err, core.ErrMalformedTree)
}

func TestFromEdges_OutOfRange(t *testing.T) {
	_, err := FromEdges(2, []core.Edge{{U: 0, V: 2, Weight: 1}})
	assert.ErrorIs(t, err, core.ErrMalformedTree)
}

func TestPerturbTies(t *testing.T) {
	tree := core.MergeTree{Items: 4, Events: []core.MergeEvent{
		{Left: 0, Right: 1, Height: 1},
		{Left: 2, Right: 3, Height: 1},
		{Left: 4, Right: 5, Height: 2},
	}}

	out := PerturbTies(tree, 1e-6)

	assert.Equal(t, 1.0, out.Events[0].Height, "first occurrence is untouched")
	assert.Greater(t, out.Events[1].Height, 1.0)
	assert.Less(t, out.Events[1].Height, 2.0)
	assert.Equal(t, 2.0, out.Events[2].Height)

	// input is not modified
	assert.Equal(t, 1.0, tree.Events[1].Height)

	seen := map[float64]bool{}
	for _, e := range out.Events {
		assert.False(t, seen[e.Height], "heights must be unique")
		seen[e.Height] = true
	}
}

func TestPerturbTies_AllEqual(t *testing.T) {
	tree := core.MergeTree{Items: 5, Events: []core.MergeEvent{
		{Left: 0, Right: 1, Height: 0},
		{Left: 2, Right: 3, Height: 0},
		{Left: 5, Right: 6, Height: 0},
		{Left: 4, Right: 7, Height: 0},
	}}

	out := PerturbTies(tree, 0)
	seen := map[float64]bool{}
	for _, e := range out.Events {
		assert.False(t, seen[e.Height])
		seen[e.Height] = true
	}
}

func TestPerturbTies_StaysBelowNextHeight(t *testing.T) {
	for _, eps := range []float64{0, 1e-9, 1e-6} {
		tree := core.MergeTree{Items: 6, Events: []core.MergeEvent{
			{Left: 0, Right: 1, Height: 1},
			{Left: 2, Right: 3, Height: 1},
			{Left: 6, Right: 7, Height: 1},
			{Left: 4, Right: 8, Height: 1 + 1e-9},
			{Left: 5, Right: 9, Height: 1 + 1e-9},
		}}

		out := PerturbTies(tree, eps)
		assert.Equal(t, 1.0, out.Events[0].Height)
		assert.Equal(t, 1+1e-9, out.Events[3].Height)
		for i := 1; i < len(out.Events); i++ {
			assert.Less(t, out.Events[i-1].Height, out.Events[i].Height,
				"eps %g: event %d must stay below event %d", eps, i-1, i)
		}
	}
}

func TestLeafOrder(t *testing.T) {
	order, err := LeafOrder(sixItemTree())
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 0, 1, 2, 3}, order)
}

func TestLeafOrder_SingleItem(t *testing.T) {
	order, err := LeafOrder(core.MergeTree{Items: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, order)
}

func TestLeafOrder_ChildAfterParent(t *testing.T) {
	tree := core.MergeTree{Items: 3, Events: []core.MergeEvent{
		{Left: 0, Right: 4, Height: 1},
		{Left: 1, Right: 2, Height: 2},
	}}
	_, err := LeafOrder(tree)
	assert.ErrorIs(t, err, core.ErrMalformedTree)
}

func TestTreeCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTreeCSV(&buf, sixItemTree()))

	tree, err := ReadTreeCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, sixItemTree(), tree)
}

func TestReadTreeCSV_NoHeader(t *testing.T) {
	tree, err := ReadTreeCSV(strings.NewReader("0,1,0.5\n2,3,1.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Items)
	assert.Equal(t, core.MergeEvent{Left: 2, Right: 3, Height: 1.5}, tree.Events[1])
}

func TestReadTreeCSV_BadNumber(t *testing.T) {
	_, err := ReadTreeCSV(strings.NewReader("left,right,height\n0,x,1\n"))
	assert.Error(t, err)
}

func TestReadTreeCSV_FractionalID(t *testing.T) {
	_, err := ReadTreeCSV(strings.NewReader("0.9,1,1\n3.7,2,2\n"))
	assert.ErrorIs(t, err, core.ErrMalformedTree)

	var mt *core.MalformedTreeError
	require.True(t, errors.As(err, &mt))
	assert.Equal(t, 0, mt.Step)
}

func TestReadEdgesCSV_FractionalID(t *testing.T) {
	_, err := ReadEdgesCSV(strings.NewReader("u,v,weight\n0,1,1\n1,2.5,2\n"))
	assert.ErrorIs(t, err, core.ErrMalformedTree)

	_, err = ReadEdgesCSV(strings.NewReader("0,1e300,1\n"))
	assert.ErrorIs(t, err, core.ErrMalformedTree)
}

func TestEdgesCSVRoundTrip(t *testing.T) {
	edges := []core.Edge{{U: 0, V: 2, Weight: 0.25}, {U: 1, V: 2, Weight: 1.75}}

	var buf bytes.Buffer
	require.NoError(t, WriteEdgesCSV(&buf, edges))

	got, err := ReadEdgesCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, edges, got)
}
