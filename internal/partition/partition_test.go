package partition

import (
	"math/rand"
	"sort"
	"testing"

	"ecco/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomTree merges random active nodes until one remains.
func randomTree(rng *rand.Rand, n int) core.MergeTree {
	active := make([]int, n)
	for i := range active {
		active[i] = i
	}
	tree := core.MergeTree{Items: n}
	for step := 0; step < n-1; step++ {
		i := rng.Intn(len(active))
		left := active[i]
		active = append(active[:i], active[i+1:]...)
		j := rng.Intn(len(active))
		right := active[j]
		active = append(active[:j], active[j+1:]...)
		tree.Events = append(tree.Events, core.MergeEvent{Left: left, Right: right, Height: float64(rng.Intn(3))})
		active = append(active, n+step)
	}
	return tree
}

func key(items []int) string {
	s := append([]int(nil), items...)
	sort.Ints(s)
	b := make([]byte, 0, len(s)*3)
	for _, v := range s {
		b = append(b, byte(v>>8), byte(v), ',')
	}
	return string(b)
}

func TestBuild_SixItems(t *testing.T) {
	tree := core.MergeTree{Items: 6, Events: []core.MergeEvent{
		{Left: 0, Right: 1, Height: 1.0},
		{Left: 2, Right: 3, Height: 1.0 + 1e-9},
		{Left: 4, Right: 5, Height: 2.0},
		{Left: 6, Right: 7, Height: 3.0},
		{Left: 8, Right: 9, Height: 4.0},
	}}

	seq, err := Build(tree)
	require.NoError(t, err)
	require.Equal(t, 5, seq.Len())

	p := seq.At(2)
	require.Equal(t, 3, p.K())
	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4, 5}}, p.Canonical())

	last := seq.At(4)
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4, 5}}, last.Canonical())
	assert.Equal(t, 4.0, seq.Height(4))
}

func TestBuild_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 25; trial++ {
		n := 2 + rng.Intn(30)
		seq, err := Build(randomTree(rng, n))
		require.NoError(t, err)
		require.Equal(t, n-1, seq.Len())

		for i := 0; i < seq.Len(); i++ {
			p := seq.At(i)
			require.Equal(t, n-1-i, p.K(), "entry %d cluster count", i)

			seen := make([]int, n)
			for _, m := range p.Clusters {
				for _, item := range m.Items() {
					seen[item]++
				}
			}
			for item, c := range seen {
				require.Equal(t, 1, c, "item %d appears %d times in entry %d", item, c, i)
			}
		}
	}
}

func TestBuild_MonotonicCoarsening(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seq, err := Build(randomTree(rng, 20))
	require.NoError(t, err)

	for i := 0; i+1 < seq.Len(); i++ {
		prev := map[string]bool{}
		for _, m := range seq.At(i).Clusters {
			prev[key(m.Items())] = true
		}

		novel := 0
		for _, m := range seq.At(i + 1).Clusters {
			if prev[key(m.Items())] {
				continue
			}
			novel++
			// the new cluster must be the union of exactly two earlier clusters
			parts := 0
			covered := 0
			inNew := map[int]bool{}
			for _, item := range m.Items() {
				inNew[item] = true
			}
			for _, old := range seq.At(i).Clusters {
				items := old.Items()
				if inNew[items[0]] {
					parts++
					covered += len(items)
				}
			}
			assert.Equal(t, 2, parts)
			assert.Equal(t, m.Size(), covered)
		}
		assert.Equal(t, 1, novel, "entry %d introduces exactly one cluster", i+1)
	}
}

func TestBuild_UnchangedClustersShared(t *testing.T) {
	tree := core.MergeTree{Items: 5, Events: []core.MergeEvent{
		{Left: 0, Right: 1, Height: 1},
		{Left: 2, Right: 3, Height: 2},
		{Left: 5, Right: 6, Height: 3},
		{Left: 4, Right: 7, Height: 4},
	}}
	seq, err := Build(tree)
	require.NoError(t, err)

	// {0,1} survives step 1 untouched and must be carried over as-is
	first := seq.At(0).Clusters[0]
	second := seq.At(1).Clusters[1]
	assert.Equal(t, first.Items(), second.Items())
	assert.Same(t, &first.Items()[0], &second.Items()[0])
}

func TestBuild_TiedHeightsResolvedByOrder(t *testing.T) {
	tree := core.MergeTree{Items: 4, Events: []core.MergeEvent{
		{Left: 2, Right: 3, Height: 1},
		{Left: 0, Right: 1, Height: 1},
		{Left: 4, Right: 5, Height: 1},
	}}
	seq, err := Build(tree)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}, {2, 3}}, seq.At(0).Canonical())
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, seq.At(1).Canonical())
}

func TestBuild_Malformed(t *testing.T) {
	tests := []struct {
		name string
		tree core.MergeTree
	}{
		{
			name: "wrong event count",
			tree: core.MergeTree{Items: 4, Events: []core.MergeEvent{{Left: 0, Right: 1}}},
		},
		{
			name: "item already merged",
			tree: core.MergeTree{Items: 3, Events: []core.MergeEvent{
				{Left: 0, Right: 1},
				{Left: 0, Right: 2},
			}},
		},
		{
			name: "synthetic node consumed twice",
			tree: core.MergeTree{Items: 4, Events: []core.MergeEvent{
				{Left: 0, Right: 1},
				{Left: 4, Right: 2},
				{Left: 4, Right: 3},
			}},
		},
		{
			name: "node from the future",
			tree: core.MergeTree{Items: 3, Events: []core.MergeEvent{
				{Left: 0, Right: 3},
				{Left: 1, Right: 2},
			}},
		},
		{
			name: "self merge",
			tree: core.MergeTree{Items: 3, Events: []core.MergeEvent{
				{Left: 1, Right: 1},
				{Left: 0, Right: 2},
			}},
		},
		{
			name: "negative id",
			tree: core.MergeTree{Items: 2, Events: []core.MergeEvent{{Left: -1, Right: 1}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.tree)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrMalformedTree)
		})
	}
}

func TestBuild_IndependentCalls(t *testing.T) {
	tree := core.MergeTree{Items: 3, Events: []core.MergeEvent{
		{Left: 0, Right: 1, Height: 1},
		{Left: 2, Right: 3, Height: 2},
	}}
	a, err := Build(tree)
	require.NoError(t, err)
	b, err := Build(tree)
	require.NoError(t, err)
	assert.Equal(t, a.At(0).Canonical(), b.At(0).Canonical())
	assert.Equal(t, a.At(1).Canonical(), b.At(1).Canonical())
}

func TestForK(t *testing.T) {
	tree := core.MergeTree{Items: 4, Events: []core.MergeEvent{
		{Left: 0, Right: 1, Height: 1},
		{Left: 2, Right: 3, Height: 2},
		{Left: 4, Right: 5, Height: 3},
	}}
	seq, err := Build(tree)
	require.NoError(t, err)

	p, ok := seq.ForK(2)
	require.True(t, ok)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, p.Canonical())

	p, ok = seq.ForK(1)
	require.True(t, ok)
	assert.Equal(t, 1, p.K())

	_, ok = seq.ForK(4)
	assert.False(t, ok, "the all-singleton partition is not an entry")
	_, ok = seq.ForK(0)
	assert.False(t, ok)
}

func TestFromEdges(t *testing.T) {
	seq, err := FromEdges(4, []core.Edge{
		{U: 0, V: 1, Weight: 0.5},
		{U: 1, V: 2, Weight: 3},
		{U: 3, V: 2, Weight: 1},
	})
	require.NoError(t, err)

	p, ok := seq.ForK(2)
	require.True(t, ok)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, p.Canonical())
}
