package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"ecco/internal/consensus"
	"ecco/internal/cooccurrence"
	"ecco/internal/core"
	"ecco/internal/linkage"
	"ecco/internal/mergetree"
	"ecco/internal/partition"
)

// ErrNoMembers is returned when no ensemble member produced a partition.
var ErrNoMembers = errors.New("no ensemble member succeeded")

// EnsembleOptions configures an ensemble run
type EnsembleOptions struct {
	Source       string
	Pairs        []core.LinkagePair
	Clusters     int
	MinBlockSize int
	// Reference orders the co-occurrence matrix; the zero value means
	// ward-euclidean.
	Reference core.LinkagePair
}

// NamedTree is an externally produced ensemble member
type NamedTree struct {
	Name string
	Tree core.MergeTree
}

// MemberFailure records an ensemble member that was skipped
type MemberFailure struct {
	Name string
	Err  error
}

// EnsembleResult holds the outcome of an ensemble run
type EnsembleResult struct {
	Run       core.Run
	Matrix    *cooccurrence.Matrix
	Order     []int
	Blocks    []core.ConsensusBlock
	Clusters  int // cluster count each member was cut at
	Members   int
	Succeeded int
	Failures  []MemberFailure
}

// AchievedWeight is the total weight accumulated into the matrix. It is 1
// when every member succeeded.
func (r *EnsembleResult) AchievedWeight() float64 {
	return r.Matrix.TotalWeight()
}

type member struct {
	name string
	part core.Partition
	err  error
}

// Ensemble clusters data once per linkage-metric pair, cuts every tree at
// the configured cluster count and extracts the blocks all members agree on.
// Members that fail are reported and skipped.
func (p *Pipeline) Ensemble(ctx context.Context, data *mat.Dense, opts EnsembleOptions) (*EnsembleResult, error) {
	start := time.Now()
	n, _ := data.Dims()
	if n < 2 {
		return nil, fmt.Errorf("%w: ensemble needs at least 2 items, got %d", core.ErrDegenerateCluster, n)
	}
	if len(opts.Pairs) == 0 {
		return nil, fmt.Errorf("ensemble needs at least one linkage-metric pair")
	}
	k := clampClusters(opts.Clusters, n)
	dist := newDistanceCache(data)

	members := make([]member, len(opts.Pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, pair := range opts.Pairs {
		i, pair := i, pair
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			members[i] = member{name: pair.String()}
			members[i].part, members[i].err = p.pairMember(dist, pair, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.combine(members, n, k, start, opts)
}

// EnsembleTrees runs the consensus stages over externally produced trees of
// the same items.
func (p *Pipeline) EnsembleTrees(ctx context.Context, items int, trees []NamedTree, opts EnsembleOptions) (*EnsembleResult, error) {
	start := time.Now()
	if items < 2 {
		return nil, fmt.Errorf("%w: ensemble needs at least 2 items, got %d", core.ErrDegenerateCluster, items)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("ensemble needs at least one tree")
	}
	k := clampClusters(opts.Clusters, items)

	members := make([]member, len(trees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, t := range trees {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			members[i] = member{name: t.Name}
			if t.Tree.Items != items {
				members[i].err = fmt.Errorf("tree has %d items, expected %d", t.Tree.Items, items)
				return nil
			}
			members[i].part, members[i].err = p.cut(t.Tree, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.combine(members, items, k, start, opts)
}

func (p *Pipeline) pairMember(dist *distanceCache, pair core.LinkagePair, k int) (core.Partition, error) {
	if err := linkage.CheckPair(pair); err != nil {
		return core.Partition{}, err
	}
	d, err := dist.get(pair.Metric)
	if err != nil {
		return core.Partition{}, err
	}
	tree, err := linkage.Cluster(d, pair.Linkage)
	if err != nil {
		return core.Partition{}, err
	}
	return p.cut(mergetree.PerturbTies(tree, p.tieEpsilon), k)
}

func (p *Pipeline) cut(tree core.MergeTree, k int) (core.Partition, error) {
	seq, err := partition.Build(tree)
	if err != nil {
		return core.Partition{}, err
	}
	part, ok := seq.ForK(k)
	if !ok {
		return core.Partition{}, fmt.Errorf("no partition with %d clusters", k)
	}
	return part, nil
}

// combine accumulates the member partitions in member order, then orders
// the matrix and extracts the consensus blocks.
func (p *Pipeline) combine(members []member, n, k int, start time.Time, opts EnsembleOptions) (*EnsembleResult, error) {
	total := len(members)
	weight := 1 / float64(total)
	matrix := cooccurrence.New(n)

	result := &EnsembleResult{
		Run:      p.newRun(core.RunKindEnsemble, opts.Source, n),
		Matrix:   matrix,
		Clusters: k,
		Members:  total,
	}
	result.Run.Clusters = k

	for _, m := range members {
		err := m.err
		if err == nil {
			err = matrix.Accumulate(m.part, weight)
		}
		if p.recorder != nil {
			p.recorder.MemberDone(m.name, err)
		}
		if err != nil {
			p.log.Warn().Err(err).Str("member", m.name).Msg("ensemble member failed")
			result.Failures = append(result.Failures, MemberFailure{Name: m.name, Err: err})
			continue
		}
		p.log.Debug().Str("member", m.name).Int("clusters", k).Msg("ensemble member done")
		result.Succeeded++
	}
	if result.Succeeded == 0 {
		return nil, fmt.Errorf("%w: all %d members failed, first: %v", ErrNoMembers, total, result.Failures[0].Err)
	}
	result.Run.AchievedWeight = matrix.TotalWeight()
	if result.Succeeded < total-1 {
		p.log.Warn().
			Int("members", total).
			Int("succeeded", result.Succeeded).
			Float64("achieved_weight", result.Run.AchievedWeight).
			Msg("too many members failed to reach the agreement threshold, every block will be a singleton")
	}

	var err error
	if opts.Reference == (core.LinkagePair{}) {
		result.Order, err = consensus.ReferenceOrder(matrix)
	} else {
		result.Order, err = consensus.ReferenceOrderWith(matrix, opts.Reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to order co-occurrence matrix: %w", err)
	}

	minSize := opts.MinBlockSize
	if minSize < 1 {
		minSize = 1
	}
	result.Blocks, err = consensus.Extract(matrix, result.Order, total, minSize)
	if err != nil {
		return nil, err
	}

	qualifying := len(consensus.Qualifying(result.Blocks))
	if p.recorder != nil {
		p.recorder.SetAchievedWeight(result.Run.AchievedWeight)
		p.recorder.SetBlocks(qualifying, len(result.Blocks)-qualifying)
	}
	p.log.Info().
		Int("members", total).
		Int("succeeded", result.Succeeded).
		Float64("achieved_weight", result.Run.AchievedWeight).
		Int("blocks", qualifying).
		Msg("consensus blocks found")

	p.persistEnsemble(result)
	p.observeRun(core.RunKindEnsemble, start)
	return result, nil
}

func (p *Pipeline) persistEnsemble(r *EnsembleResult) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRun(r.Run); err != nil {
		p.log.Warn().Err(err).Str("run", r.Run.ID).Msg("failed to save run")
		return
	}
	if err := p.store.SaveBlocks(r.Run.ID, r.Blocks); err != nil {
		p.log.Warn().Err(err).Str("run", r.Run.ID).Msg("failed to save blocks")
	}
	if err := p.store.SaveCoOccurrence(r.Run.ID, r.Matrix.Rows(), r.Matrix.TotalWeight()); err != nil {
		p.log.Warn().Err(err).Str("run", r.Run.ID).Msg("failed to save co-occurrence matrix")
	}
}

// clampClusters keeps k within the cluster counts a tree over n items has.
func clampClusters(k, n int) int {
	if k < 1 {
		return 1
	}
	if k > n-1 {
		return n - 1
	}
	return k
}
