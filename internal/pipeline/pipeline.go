// Package pipeline runs validation and ensemble consensus over a coordinate
// table, from tree construction to persisted results.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"

	"ecco/internal/core"
	"ecco/internal/linkage"
	"ecco/internal/mergetree"
	"ecco/internal/mst"
	"ecco/internal/validation"
)

// TreeMST selects the minimum spanning tree producer.
const TreeMST = "mst"

// Pipeline orchestrates tree producers, the validation engine and the
// consensus stages.
type Pipeline struct {
	engine     *validation.Engine
	workers    int
	tieEpsilon float64
	store      RunStore
	recorder   Recorder
	log        zerolog.Logger
}

// Engine returns the validation engine used by the pipeline.
func (p *Pipeline) Engine() *validation.Engine {
	return p.engine
}

// BuildTree builds the merge tree of the rows of data. tree is "mst" or a
// linkage-metric pair; distance is the metric of the mst producer. Tied
// heights are perturbed before the tree is returned.
func (p *Pipeline) BuildTree(data *mat.Dense, tree, distance string) (core.MergeTree, error) {
	n, _ := data.Dims()

	var (
		out core.MergeTree
		err error
	)
	if tree == "" || strings.EqualFold(tree, TreeMST) {
		if distance == "" {
			distance = linkage.Euclidean
		}
		var edges []core.Edge
		edges, err = mst.FromData(data, distance)
		if err != nil {
			return core.MergeTree{}, fmt.Errorf("failed to build spanning tree: %w", err)
		}
		out, err = mergetree.FromEdges(n, edges)
	} else {
		var pair core.LinkagePair
		pair, err = core.ParseLinkagePair(tree)
		if err != nil {
			return core.MergeTree{}, err
		}
		out, err = linkage.Tree(data, pair)
	}
	if err != nil {
		return core.MergeTree{}, err
	}
	return mergetree.PerturbTies(out, p.tieEpsilon), nil
}

func (p *Pipeline) newRun(kind core.RunKind, source string, items int) core.Run {
	return core.Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		Items:     items,
		CreatedAt: time.Now().UTC(),
	}
}

func (p *Pipeline) observeRun(kind core.RunKind, start time.Time) {
	if p.recorder != nil {
		p.recorder.ObserveRun(string(kind), time.Since(start))
	}
}

// distanceCache shares distance matrices between ensemble members that use
// the same metric over the same data.
type distanceCache struct {
	data   *mat.Dense
	items  *cache.Cache
	flight singleflight.Group
}

func newDistanceCache(data *mat.Dense) *distanceCache {
	return &distanceCache{
		data:  data,
		items: cache.New(cache.NoExpiration, 0),
	}
}

func (c *distanceCache) get(metric string) (*mat.SymDense, error) {
	key := strings.ToLower(metric)
	if v, ok := c.items.Get(key); ok {
		return v.(*mat.SymDense), nil
	}
	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		dist, err := linkage.Distances(c.data, key)
		if err != nil {
			return nil, err
		}
		c.items.Set(key, dist, cache.NoExpiration)
		return dist, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mat.SymDense), nil
}
