// Package mst builds minimum spanning trees over pairwise distances, the
// edge-list input of the single-tree validation pipeline.
package mst

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"

	"ecco/internal/core"
	"ecco/internal/linkage"
)

// Build returns the minimum spanning tree of the complete graph described by
// dist, as n-1 edges in ascending weight order with U < V.
func Build(dist mat.Symmetric) ([]core.Edge, error) {
	n := dist.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("cannot span zero items")
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := dist.At(i, j)
			if math.IsNaN(w) || math.IsInf(w, 1) {
				continue
			}
			g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(int64(i)), T: simple.Node(int64(j)), W: w})
		}
	}

	tree := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Kruskal(tree, g)

	edges := make([]core.Edge, 0, n-1)
	it := tree.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		u, v := int(e.From().ID()), int(e.To().ID())
		if u > v {
			u, v = v, u
		}
		edges = append(edges, core.Edge{U: u, V: v, Weight: e.Weight()})
	}
	if len(edges) != n-1 {
		return nil, fmt.Errorf("distance graph is disconnected: spanning forest has %d edges, want %d", len(edges), n-1)
	}

	sort.Slice(edges, func(a, b int) bool {
		if edges[a].Weight != edges[b].Weight {
			return edges[a].Weight < edges[b].Weight
		}
		if edges[a].U != edges[b].U {
			return edges[a].U < edges[b].U
		}
		return edges[a].V < edges[b].V
	})
	return edges, nil
}

// FromData computes distances with the given metric and returns the
// spanning tree of the rows of data.
func FromData(data *mat.Dense, metric string) ([]core.Edge, error) {
	dist, err := linkage.Distances(data, metric)
	if err != nil {
		return nil, err
	}
	return Build(dist)
}

// Weight returns the total weight of a spanning tree.
func Weight(edges []core.Edge) float64 {
	total := 0.0
	for _, e := range edges {
		total += e.Weight
	}
	return total
}
