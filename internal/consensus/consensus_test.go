package consensus

import (
	"math/rand"
	"testing"

	"ecco/internal/cooccurrence"
	"ecco/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleMatrix(t *testing.T) *cooccurrence.Matrix {
	t.Helper()
	m, err := cooccurrence.FromRows([][]float64{
		{1, 1, 0, 0},
		{1, 1, 0, 0},
		{0, 0, 1, .5},
		{0, 0, .5, 1},
	}, 1)
	require.NoError(t, err)
	return m
}

func TestExtract_Example(t *testing.T) {
	blocks, err := Extract(exampleMatrix(t), []int{0, 1, 2, 3}, 2, 3)
	require.NoError(t, err)

	require.Len(t, blocks, 2)
	assert.Equal(t, core.ConsensusBlock{Start: 0, End: 2, Members: []int{0, 1}, MeetsMinSize: false}, blocks[0])
	assert.Equal(t, core.ConsensusBlock{Start: 2, End: 4, Members: []int{2, 3}, MeetsMinSize: false}, blocks[1])

	blocks, err = Extract(exampleMatrix(t), []int{0, 1, 2, 3}, 2, 2)
	require.NoError(t, err)
	assert.True(t, blocks[0].MeetsMinSize)
	assert.True(t, blocks[1].MeetsMinSize)
}

func TestExtract_FollowsLeafOrder(t *testing.T) {
	blocks, err := Extract(exampleMatrix(t), []int{2, 0, 1, 3}, 2, 1)
	require.NoError(t, err)

	require.Len(t, blocks, 3)
	assert.Equal(t, []int{2}, blocks[0].Members)
	assert.Equal(t, []int{0, 1}, blocks[1].Members)
	assert.Equal(t, 1, blocks[1].Start)
	assert.Equal(t, 3, blocks[1].End)
	assert.Equal(t, []int{3}, blocks[2].Members)
}

func TestExtract_ThresholdTolerance(t *testing.T) {
	m := cooccurrence.New(3)
	p := core.Partition{Clusters: []core.Member{core.Group([]int{0, 1, 2})}}
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Accumulate(p, 0.1))
	}
	blocks, err := Extract(m, []int{0, 1, 2}, 10, 1)
	require.NoError(t, err)
	assert.Len(t, blocks, 3, "0.3 is far below the 0.9 cutoff")

	full := cooccurrence.New(3)
	for i := 0; i < 10; i++ {
		require.NoError(t, full.Accumulate(p, 0.1))
	}
	// ten additions of 0.1 land just under 1
	blocks, err = Extract(full, []int{0, 1, 2}, 10, 1)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 3, blocks[0].Size())
}

func TestExtract_SingleMemberEnsemble(t *testing.T) {
	m := cooccurrence.New(3)
	require.NoError(t, m.Accumulate(core.Partition{Clusters: []core.Member{
		core.Group([]int{0, 1}), core.Singleton(2),
	}}, 1))

	blocks, err := Extract(m, []int{0, 1, 2}, 1, 1)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, []int{0, 1}, blocks[0].Members)
	assert.Equal(t, []int{2}, blocks[1].Members)
}

func TestExtract_CoversRange(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 40
	m := cooccurrence.New(n)
	for run := 0; run < 4; run++ {
		labels := make([]int, n)
		for i := range labels {
			labels[i] = rng.Intn(3)
		}
		groups := map[int][]int{}
		for i, l := range labels {
			groups[l] = append(groups[l], i)
		}
		var p core.Partition
		for _, items := range groups {
			p.Clusters = append(p.Clusters, core.Group(items))
		}
		require.NoError(t, m.Accumulate(p, 0.25))
	}

	order := rng.Perm(n)
	blocks, err := Extract(m, order, 4, 2)
	require.NoError(t, err)

	pos := 0
	for _, b := range blocks {
		assert.Equal(t, pos, b.Start)
		assert.Greater(t, b.End, b.Start)
		assert.Equal(t, order[b.Start:b.End], b.Members)
		pos = b.End
	}
	assert.Equal(t, n, pos)
}

func TestExtract_Errors(t *testing.T) {
	_, err := Extract(exampleMatrix(t), []int{0, 1, 2, 3}, 0, 1)
	assert.Error(t, err)
	_, err = Extract(exampleMatrix(t), []int{0, 1, 2}, 2, 1)
	assert.Error(t, err)
	_, err = Extract(exampleMatrix(t), []int{0, 1, 1, 3}, 2, 1)
	assert.Error(t, err)
}

func TestReferenceOrder(t *testing.T) {
	m := exampleMatrix(t)
	order, err := ReferenceOrder(m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, order)

	blocks, err := Extract(m, order, 2, 2)
	require.NoError(t, err)
	assert.Len(t, Qualifying(blocks), 2)

	_, err = ReferenceOrderWith(m, core.LinkagePair{Linkage: "ward", Metric: "cosine"})
	assert.ErrorIs(t, err, core.ErrUnsupportedPair)
}

func TestAssignments(t *testing.T) {
	blocks := []core.ConsensusBlock{
		{Start: 0, End: 2, Members: []int{3, 1}, MeetsMinSize: true},
		{Start: 2, End: 3, Members: []int{0}, MeetsMinSize: false},
		{Start: 3, End: 5, Members: []int{2, 4}, MeetsMinSize: true},
	}
	assert.Equal(t, []int{-1, 0, 1, 0, 1}, Assignments(blocks, 5))
	assert.Len(t, Qualifying(blocks), 2)
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, 0.5, Threshold(2))
	assert.Equal(t, 0.0, Threshold(1))
	assert.InDelta(t, 12.0/13, Threshold(13), 1e-15)
}
