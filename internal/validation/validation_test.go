package validation

import (
	"context"
	"math"
	"runtime"
	"sync"
	"testing"
	"time"

	"ecco/internal/core"
	"ecco/internal/partition"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoPairs is two tight pairs of points ten units apart.
func twoPairs(t *testing.T) *Dataset {
	t.Helper()
	d, err := NewDataset([][]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}})
	require.NoError(t, err)
	return d
}

func twoPairsSequence(t *testing.T) *partition.Sequence {
	t.Helper()
	seq, err := partition.Build(core.MergeTree{Items: 4, Events: []core.MergeEvent{
		{Left: 0, Right: 1, Height: 1},
		{Left: 2, Right: 3, Height: 1},
		{Left: 4, Right: 5, Height: 10},
	}})
	require.NoError(t, err)
	return seq
}

func pairsPartition() core.Partition {
	return core.Partition{Clusters: []core.Member{
		core.Group([]int{0, 1}),
		core.Group([]int{2, 3}),
	}}
}

func TestNewDataset(t *testing.T) {
	d := twoPairs(t)
	assert.Equal(t, 4, d.Items())
	assert.Equal(t, 2, d.Dim())
	assert.InDelta(t, 4*math.Sqrt(25.25), d.Dispersion(), 1e-12)
	assert.InDelta(t, math.Sqrt(101), d.Distance(0, 3), 1e-12)
	assert.Equal(t, d.Distance(1, 2), d.Distance(2, 1))

	_, err := NewDataset([][]float64{{1, 2}})
	assert.ErrorIs(t, err, core.ErrDegenerateCluster)

	_, err = NewDataset([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestMetrics_TwoPairs(t *testing.T) {
	d := twoPairs(t)
	p := pairsPartition()

	b := (10 + math.Sqrt(101)) / 2
	tests := []struct {
		metric Metric
		want   float64
	}{
		{KMeans{}, 0.05},
		{DaviesBouldin{}, 0.1},
		{Dunn{}, 10},
		{PBM{}, 2525},
		{Silhouette{}, 1 - 1/b},
	}
	for _, tt := range tests {
		t.Run(tt.metric.Name(), func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.metric, p, d), 1e-9)
		})
	}
}

func TestMetrics_SingleClusterSentinels(t *testing.T) {
	d := twoPairs(t)
	one := core.Partition{Clusters: []core.Member{core.Group([]int{0, 1, 2, 3})}}

	assert.Equal(t, SingleClusterKMeans, KMeans{}.Score(one, d))
	assert.Equal(t, SingleClusterDaviesBouldin, DaviesBouldin{}.Score(one, d))
	assert.Equal(t, SingleClusterDunn, Dunn{}.Score(one, d))
	assert.Equal(t, SingleClusterPBM, PBM{}.Score(one, d))
	assert.Equal(t, SingleClusterSilhouette, Silhouette{}.Score(one, d))
}

func TestSilhouette_SingletonsContributeZero(t *testing.T) {
	d := twoPairs(t)
	p := core.Partition{Clusters: []core.Member{
		core.Group([]int{0, 1}),
		core.Singleton(2),
		core.Singleton(3),
	}}
	// both members of {0,1} have a=1 and b=10
	assert.InDelta(t, 0.9/3, Silhouette{}.Score(p, d), 1e-12)
}

func TestKMeans_AllSingletonsIsZero(t *testing.T) {
	d := twoPairs(t)
	p := core.Partition{Clusters: []core.Member{
		core.Singleton(0), core.Singleton(1), core.Singleton(2), core.Singleton(3),
	}}
	assert.Equal(t, 0.0, KMeans{}.Score(p, d))
	assert.Equal(t, SingleClusterDunn, Dunn{}.Score(p, d))
	assert.Equal(t, SingleClusterPBM, PBM{}.Score(p, d))
}

func TestLookup(t *testing.T) {
	m, err := Lookup(" DBI ")
	require.NoError(t, err)
	assert.Equal(t, MetricDaviesBouldin, m.Name())

	_, err = Lookup("calinski")
	assert.ErrorIs(t, err, core.ErrUnknownMetric)

	all, err := LookupAll([]string{"pbm", "kmeans"})
	require.NoError(t, err)
	assert.Equal(t, "pbm", all[0].Name())
	assert.Equal(t, []string{"dbi", "dunn", "kmeans", "pbm", "silhouette"}, Names())
}

func TestCandidates(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, []int{2, 3}, e.Candidates(4))
	assert.Equal(t, []int{3, 4}, e.Candidates(5))
	assert.Equal(t, []int{1}, e.Candidates(2))

	big := e.Candidates(300)
	require.Len(t, big, DefaultMaxCandidates)
	assert.Equal(t, 150, big[0])
	assert.Equal(t, 249, big[len(big)-1])

	assert.Len(t, NewEngine().WithMaxCandidates(0).Candidates(300), 150)
	assert.Equal(t, []int{1, 2, 3}, NewEngine().WithRange(1, 0).Candidates(4))
	assert.Equal(t, []int{2}, NewEngine().WithRange(0, 2).Candidates(4))
	assert.Nil(t, NewEngine().WithRange(5, 0).Candidates(4))
}

func TestWithWorkers_Clamped(t *testing.T) {
	assert.Equal(t, 1, NewEngine().WithWorkers(-3).Workers())
	assert.Equal(t, runtime.NumCPU(), NewEngine().WithWorkers(1<<20).Workers())
}

func TestEvaluate(t *testing.T) {
	series, err := NewEngine().WithRange(1, 0).Evaluate(context.Background(), KMeans{}, twoPairsSequence(t), twoPairs(t))
	require.NoError(t, err)

	assert.Equal(t, MetricKMeans, series.Metric)
	require.Len(t, series.Scores, 3)
	assert.Equal(t, core.ValidationScore{K: 1, Score: SingleClusterKMeans}, series.Scores[0])
	assert.Equal(t, 2, series.Scores[1].K)
	assert.InDelta(t, 0.05, series.Scores[1].Score, 1e-12)
	assert.Equal(t, 3, series.Scores[2].K)
	assert.InDelta(t, 0.25, series.Scores[2].Score, 1e-12)

	k, _, ok := series.Recommend()
	require.True(t, ok)
	assert.Equal(t, 2, k)
}

func TestEvaluateAll_DeterministicAcrossPoolSizes(t *testing.T) {
	seq := twoPairsSequence(t)
	d := twoPairs(t)
	metrics := []Metric{KMeans{}, DaviesBouldin{}, Dunn{}, PBM{}, Silhouette{}}

	serial, err := NewEngine().WithWorkers(1).WithRange(1, 0).EvaluateAll(context.Background(), metrics, seq, d)
	require.NoError(t, err)
	parallel, err := NewEngine().WithWorkers(8).WithRange(1, 0).EvaluateAll(context.Background(), metrics, seq, d)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	for i, s := range serial {
		assert.Equal(t, metrics[i].Name(), s.Metric)
	}
}

type countingRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *countingRecorder) ObserveScore(metric string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[metric]++
}

func TestEvaluate_Recorder(t *testing.T) {
	rec := &countingRecorder{calls: map[string]int{}}
	_, err := NewEngine().WithRecorder(rec).EvaluateAll(context.Background(),
		[]Metric{Dunn{}, PBM{}}, twoPairsSequence(t), twoPairs(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"dunn": 2, "pbm": 2}, rec.calls)
}

func TestEvaluate_Errors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine().Evaluate(ctx, Dunn{}, twoPairsSequence(t), twoPairs(t))
	assert.ErrorIs(t, err, context.Canceled)

	small, err := NewDataset([][]float64{{0}, {1}, {2}})
	require.NoError(t, err)
	_, err = NewEngine().Evaluate(context.Background(), Dunn{}, twoPairsSequence(t), small)
	assert.Error(t, err)
}

func TestNormalized_LowerIsBetter(t *testing.T) {
	s := Series{Metric: MetricKMeans, Scores: []core.ValidationScore{
		{K: 1, Score: 1}, {K: 2, Score: 0.05}, {K: 3, Score: 0.25},
	}}
	n := s.Normalized()
	require.Len(t, n, 3)
	assert.InDelta(t, 10, n[0].Score, 1e-9)
	assert.InDelta(t, 40, n[1].Score, 1e-9)
	assert.InDelta(t, 6, n[2].Score, 1e-9)

	// the raw series is untouched
	assert.Equal(t, 1.0, s.Scores[0].Score)
}

func TestNormalized_HigherIsBetter(t *testing.T) {
	s := Series{Metric: MetricSilhouette, Scores: []core.ValidationScore{
		{K: 1, Score: 0}, {K: 2, Score: 0.8}, {K: 3, Score: 0.3},
	}}
	n := s.Normalized()
	assert.InDelta(t, 0.4, n[0].Score, 1e-12)
	assert.InDelta(t, 1.6, n[1].Score, 1e-12)
	assert.InDelta(t, 0.45, n[2].Score, 1e-12)

	best, ok := s.Best()
	require.True(t, ok)
	assert.Equal(t, core.ValidationScore{K: 2, Score: 0.8}, best)
}

func TestRecommend_TiesAndEmpty(t *testing.T) {
	s := Series{Metric: MetricDunn, Scores: []core.ValidationScore{
		{K: 2, Score: 3}, {K: 3, Score: 4},
	}}
	// 3*2/1 == 4*3/2 == 6
	k, score, ok := s.Recommend()
	require.True(t, ok)
	assert.Equal(t, 2, k)
	assert.Equal(t, 6.0, score)

	_, _, ok = Series{Metric: MetricDunn}.Recommend()
	assert.False(t, ok)
}

func TestInterpretSilhouette(t *testing.T) {
	assert.Equal(t, "strong", InterpretSilhouette(0.8))
	assert.Equal(t, "reasonable", InterpretSilhouette(0.5))
	assert.Equal(t, "weak", InterpretSilhouette(0.3))
	assert.Equal(t, "none", InterpretSilhouette(-0.2))
}
