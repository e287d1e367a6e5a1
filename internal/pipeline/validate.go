package pipeline

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"ecco/internal/core"
	"ecco/internal/linkage"
	"ecco/internal/partition"
	"ecco/internal/validation"
)

// ValidationOptions configures a validation run
type ValidationOptions struct {
	Source   string
	Tree     string // "mst" or a linkage-metric pair
	Distance string // metric of the mst tree
	Metrics  []string
}

// ValidationResult holds the outcome of a validation run
type ValidationResult struct {
	Run      core.Run
	Tree     core.MergeTree
	Sequence *partition.Sequence
	Series   []validation.Series
}

// Recommendation is the recommended cluster count of one metric
type Recommendation struct {
	Metric string
	K      int
	Score  float64 // normalized score at K
	Raw    float64 // raw score at K
}

// Recommendations returns the recommended K of every scored metric, in the
// order the metrics were requested.
func (r *ValidationResult) Recommendations() []Recommendation {
	out := make([]Recommendation, 0, len(r.Series))
	for _, s := range r.Series {
		k, score, ok := s.Recommend()
		if !ok {
			continue
		}
		rec := Recommendation{Metric: s.Metric, K: k, Score: score}
		if best, ok := s.Best(); ok {
			rec.Raw = best.Score
		}
		out = append(out, rec)
	}
	return out
}

// Validate builds one tree over data and scores its candidate partitions
// with every requested metric. An empty metric list scores all of them.
func (p *Pipeline) Validate(ctx context.Context, data *mat.Dense, opts ValidationOptions) (*ValidationResult, error) {
	start := time.Now()

	names := opts.Metrics
	if len(names) == 0 {
		names = validation.Names()
	}
	metrics, err := validation.LookupAll(names)
	if err != nil {
		return nil, err
	}

	ds, err := validation.NewDatasetFromDense(data)
	if err != nil {
		return nil, err
	}

	tree, err := p.BuildTree(data, opts.Tree, opts.Distance)
	if err != nil {
		return nil, err
	}
	seq, err := partition.Build(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to build partitions: %w", err)
	}

	p.log.Info().
		Int("items", ds.Items()).
		Str("tree", treeLabel(opts)).
		Strs("metrics", names).
		Msg("validation started")

	series, err := p.engine.EvaluateAll(ctx, metrics, seq, ds)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		Run:      p.newRun(core.RunKindValidation, opts.Source, ds.Items()),
		Tree:     tree,
		Sequence: seq,
		Series:   series,
	}
	recs := result.Recommendations()
	if len(recs) > 0 {
		result.Run.Clusters = recs[0].K
	}
	for _, rec := range recs {
		p.log.Info().Str("metric", rec.Metric).Int("k", rec.K).Float64("score", rec.Raw).Msg("recommended cluster count")
	}

	p.persistValidation(result)
	p.observeRun(core.RunKindValidation, start)
	return result, nil
}

func (p *Pipeline) persistValidation(r *ValidationResult) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRun(r.Run); err != nil {
		p.log.Warn().Err(err).Str("run", r.Run.ID).Msg("failed to save run")
		return
	}
	for _, s := range r.Series {
		if err := p.store.SaveScores(r.Run.ID, s.Metric, s.Scores); err != nil {
			p.log.Warn().Err(err).Str("run", r.Run.ID).Str("metric", s.Metric).Msg("failed to save scores")
		}
	}
}

func treeLabel(opts ValidationOptions) string {
	if opts.Tree == "" || opts.Tree == TreeMST {
		d := opts.Distance
		if d == "" {
			d = linkage.Euclidean
		}
		return TreeMST + "-" + d
	}
	return opts.Tree
}
