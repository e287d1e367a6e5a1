package validation

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ecco/internal/core"
	"ecco/internal/logger"
	"ecco/internal/partition"
)

// DefaultMaxCandidates bounds how many cluster counts are scored per metric.
const DefaultMaxCandidates = 100

// Recorder receives timing for every scored partition.
type Recorder interface {
	ObserveScore(metric string, elapsed time.Duration)
}

// Engine scores candidate partitions in parallel on a bounded worker pool.
type Engine struct {
	workers       int
	minK, maxK    int
	maxCandidates int
	recorder      Recorder
	log           zerolog.Logger
}

// NewEngine returns an engine using one worker per CPU and the default
// candidate range.
func NewEngine() *Engine {
	return &Engine{
		workers:       runtime.NumCPU(),
		maxCandidates: DefaultMaxCandidates,
		log:           logger.Component("validation"),
	}
}

// WithWorkers sets the pool size. Values outside [1, NumCPU] are clamped.
func (e *Engine) WithWorkers(workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	if max := runtime.NumCPU(); workers > max {
		workers = max
	}
	e.workers = workers
	return e
}

// WithRange restricts the candidate cluster counts. Zero keeps the default
// bound on that side.
func (e *Engine) WithRange(minK, maxK int) *Engine {
	e.minK = minK
	e.maxK = maxK
	return e
}

// WithMaxCandidates caps the number of candidates; zero disables the cap.
func (e *Engine) WithMaxCandidates(n int) *Engine {
	e.maxCandidates = n
	return e
}

// WithRecorder attaches a timing recorder.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	e.recorder = r
	return e
}

// Workers returns the configured pool size.
func (e *Engine) Workers() int {
	return e.workers
}

// Candidates returns the cluster counts scored for a tree over n items, in
// ascending order. By default that is ⌈n/2⌉ through n-1; when the cap
// applies the coarsest candidates are kept.
func (e *Engine) Candidates(n int) []int {
	lo, hi := (n+1)/2, n-1
	if e.minK > 0 {
		lo = e.minK
	}
	if e.maxK > 0 {
		hi = e.maxK
	}
	if lo < 1 {
		lo = 1
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo > hi {
		return nil
	}

	ks := make([]int, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		ks = append(ks, k)
	}
	if e.maxCandidates > 0 && len(ks) > e.maxCandidates {
		ks = ks[:e.maxCandidates]
	}
	return ks
}

// Evaluate scores every candidate partition of seq with one metric.
func (e *Engine) Evaluate(ctx context.Context, m Metric, seq *partition.Sequence, d *Dataset) (Series, error) {
	all, err := e.EvaluateAll(ctx, []Metric{m}, seq, d)
	if err != nil {
		return Series{}, err
	}
	return all[0], nil
}

// EvaluateAll scores every candidate partition with each metric. Every
// (metric, partition) pair is an independent task; results are returned in
// the order of metrics, each sorted by ascending K.
func (e *Engine) EvaluateAll(ctx context.Context, metrics []Metric, seq *partition.Sequence, d *Dataset) ([]Series, error) {
	if seq.Items() != d.Items() {
		return nil, fmt.Errorf("tree has %d items but dataset has %d", seq.Items(), d.Items())
	}
	ks := e.Candidates(seq.Items())
	e.log.Debug().
		Int("items", seq.Items()).
		Int("candidates", len(ks)).
		Int("metrics", len(metrics)).
		Int("workers", e.workers).
		Msg("scoring partitions")

	parts := make([]core.Partition, len(ks))
	for i, k := range ks {
		p, ok := seq.ForK(k)
		if !ok {
			return nil, fmt.Errorf("no partition with %d clusters", k)
		}
		parts[i] = p
	}

	var mu sync.Mutex
	collected := make([][]core.ValidationScore, len(metrics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for mi, m := range metrics {
		mi, m := mi, m
		for i, k := range ks {
			k := k
			p := parts[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				score := m.Score(p, d)
				if e.recorder != nil {
					e.recorder.ObserveScore(m.Name(), time.Since(start))
				}

				mu.Lock()
				collected[mi] = append(collected[mi], core.ValidationScore{K: k, Score: score})
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Series, len(metrics))
	for mi, m := range metrics {
		scores := collected[mi]
		sort.Slice(scores, func(a, b int) bool { return scores[a].K < scores[b].K })
		out[mi] = Series{Metric: m.Name(), Scores: scores}
	}
	return out, nil
}
