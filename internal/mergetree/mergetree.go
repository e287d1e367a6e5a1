// Package mergetree normalizes producer output (linkage merges or minimum
// spanning tree edges) into the ordered merge events consumed by the
// partition builder.
package mergetree

import (
	"fmt"
	"math"
	"sort"

	"ecco/internal/core"
)

// DefaultTieEpsilon is the perturbation step used when a producer reports
// identical merge heights.
const DefaultTieEpsilon = 1e-9

// CheckShape verifies that a tree has exactly Items-1 events.
func CheckShape(tree core.MergeTree) error {
	if tree.Items < 1 {
		return core.NewMalformedTreeError(-1, 0, fmt.Sprintf("item count must be positive, got %d", tree.Items))
	}
	if len(tree.Events) != tree.Items-1 {
		return core.NewMalformedTreeError(-1, 0,
			fmt.Sprintf("expected %d events for %d items, got %d", tree.Items-1, tree.Items, len(tree.Events)))
	}
	return nil
}

// FromEdges converts a minimum spanning tree edge list into a merge tree.
// Edges are taken in ascending weight order (stable, so equal weights keep
// their input order); each edge merges the clusters currently holding its
// two endpoints.
func FromEdges(items int, edges []core.Edge) (core.MergeTree, error) {
	if len(edges) != items-1 {
		return core.MergeTree{}, core.NewMalformedTreeError(-1, 0,
			fmt.Sprintf("expected %d edges for %d items, got %d", items-1, items, len(edges)))
	}

	ordered := make([]core.Edge, len(edges))
	copy(ordered, edges)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Weight < ordered[j].Weight
	})

	parent := make([]int, items)
	node := make([]int, items) // root item -> current merge-tree node id
	for i := range parent {
		parent[i] = i
		node[i] = i
	}
	find := func(u int) int {
		for parent[u] != u {
			parent[u] = parent[parent[u]]
			u = parent[u]
		}
		return u
	}

	tree := core.MergeTree{Items: items, Events: make([]core.MergeEvent, 0, len(ordered))}
	for step, e := range ordered {
		if e.U < 0 || e.U >= items || e.V < 0 || e.V >= items {
			return core.MergeTree{}, core.NewMalformedTreeError(step, max(e.U, e.V), "edge endpoint out of range")
		}
		ru, rv := find(e.U), find(e.V)
		if ru == rv {
			return core.MergeTree{}, core.NewMalformedTreeError(step, e.U, "edge closes a cycle")
		}
		tree.Events = append(tree.Events, core.MergeEvent{Left: node[ru], Right: node[rv], Height: e.Weight})
		parent[rv] = ru
		node[ru] = items + step
	}
	return tree, nil
}

// PerturbTies returns a copy of the tree in which every repeated height is
// nudged upward until it is unique. The first occurrence of a height is left
// untouched, and nudged values stay below the next distinct height so the
// order of distinct heights is preserved. Steps are eps unless the gap to the
// next height is too narrow, in which case the gap is divided evenly.
func PerturbTies(tree core.MergeTree, eps float64) core.MergeTree {
	if eps <= 0 {
		eps = DefaultTieEpsilon
	}
	out := core.MergeTree{Items: tree.Items, Events: make([]core.MergeEvent, len(tree.Events))}
	copy(out.Events, tree.Events)

	remaining := make(map[float64]int, len(out.Events))
	distinct := make([]float64, 0, len(out.Events))
	for _, e := range out.Events {
		if _, ok := remaining[e.Height]; !ok {
			distinct = append(distinct, e.Height)
		}
		remaining[e.Height]++
	}
	sort.Float64s(distinct)

	last := make(map[float64]float64, len(distinct))
	for i := range out.Events {
		h := out.Events[i].Height
		remaining[h]--
		prev, tied := last[h]
		if !tied {
			last[h] = h
			continue
		}

		upper := math.Inf(1)
		if j := sort.SearchFloat64s(distinct, h) + 1; j < len(distinct) {
			upper = distinct[j]
		}
		// room is left for the duplicates still to come
		slots := float64(remaining[h] + 1)
		next := prev + eps
		if prev+eps*slots >= upper {
			next = prev + (upper-prev)/(slots+1)
		}
		if next <= prev {
			next = math.Nextafter(prev, upper)
		}
		last[h] = next
		out.Events[i].Height = next
	}
	return out
}

// LeafOrder returns the item order of the dendrogram drawn from the tree,
// visiting the left child of every merge first.
func LeafOrder(tree core.MergeTree) ([]int, error) {
	if err := CheckShape(tree); err != nil {
		return nil, err
	}
	n := tree.Items
	if n == 1 {
		return []int{0}, nil
	}

	order := make([]int, 0, n)
	stack := []int{2*n - 2}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id < n {
			order = append(order, id)
			continue
		}
		step := id - n
		if step >= len(tree.Events) {
			return nil, core.NewMalformedTreeError(step, id, "reference to a node that is never created")
		}
		e := tree.Events[step]
		if e.Left >= id || e.Right >= id {
			return nil, core.NewMalformedTreeError(step, id, "child created after its parent")
		}
		stack = append(stack, e.Right, e.Left)
	}
	if len(order) != n {
		return nil, core.NewMalformedTreeError(-1, 0, fmt.Sprintf("dendrogram reaches %d of %d items", len(order), n))
	}
	return order, nil
}
