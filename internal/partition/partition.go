// Package partition expands a merge tree into the flat partition implied by
// every cut level.
package partition

import (
	"fmt"

	"ecco/internal/core"
	"ecco/internal/mergetree"
)

// Sequence holds one partition per merge event. Entry i is the state after
// event i and has Items()-1-i clusters. A Sequence is immutable once built.
type Sequence struct {
	items   int
	heights []float64
	steps   []core.Partition
}

// Items returns the number of items the sequence partitions.
func (s *Sequence) Items() int {
	return s.items
}

// Len returns the number of entries, N-1.
func (s *Sequence) Len() int {
	return len(s.steps)
}

// At returns entry i.
func (s *Sequence) At(i int) core.Partition {
	return s.steps[i]
}

// Height returns the merge height of the event that produced entry i.
func (s *Sequence) Height(i int) float64 {
	return s.heights[i]
}

// ForK returns the entry with exactly k clusters.
func (s *Sequence) ForK(k int) (core.Partition, bool) {
	i := s.items - 1 - k
	if k < 1 || i < 0 || i >= len(s.steps) {
		return core.Partition{}, false
	}
	return s.steps[i], true
}

// buildContext is the bookkeeping of a single Build call.
type buildContext struct {
	n       int
	order   []int               // active node ids in slot order
	members map[int]core.Member // active node id -> members
	owner   []int               // item -> node id currently holding it
}

func newBuildContext(n int) *buildContext {
	ctx := &buildContext{
		n:       n,
		order:   make([]int, n),
		members: make(map[int]core.Member, n),
		owner:   make([]int, n),
	}
	for i := 0; i < n; i++ {
		ctx.order[i] = i
		ctx.members[i] = core.Singleton(i)
		ctx.owner[i] = i
	}
	return ctx
}

// resolve returns the members of an active node.
func (c *buildContext) resolve(step, id int) (core.Member, error) {
	if id < 0 || id >= c.n+step {
		return core.Member{}, core.NewMalformedTreeError(step, id, "reference to a node that does not exist yet")
	}
	m, ok := c.members[id]
	if !ok {
		if id < c.n {
			return core.Member{}, core.NewMalformedTreeError(step, id,
				fmt.Sprintf("item already merged into node %d", c.owner[id]))
		}
		return core.Member{}, core.NewMalformedTreeError(step, id, "node already consumed by an earlier merge")
	}
	return m, nil
}

func (c *buildContext) merge(step int, e core.MergeEvent) error {
	if e.Left == e.Right {
		return core.NewMalformedTreeError(step, e.Left, "node merged with itself")
	}
	left, err := c.resolve(step, e.Left)
	if err != nil {
		return err
	}
	right, err := c.resolve(step, e.Right)
	if err != nil {
		return err
	}

	id := c.n + step
	merged := core.Merge(left, right)
	delete(c.members, e.Left)
	delete(c.members, e.Right)
	c.members[id] = merged
	for _, item := range merged.Items() {
		c.owner[item] = id
	}

	order := make([]int, 0, len(c.order)-1)
	order = append(order, id)
	for _, node := range c.order {
		if node != e.Left && node != e.Right {
			order = append(order, node)
		}
	}
	c.order = order
	return nil
}

func (c *buildContext) snapshot() core.Partition {
	clusters := make([]core.Member, len(c.order))
	for slot, node := range c.order {
		clusters[slot] = c.members[node]
	}
	return core.Partition{Clusters: clusters}
}

// Build walks the merge events in order and records the partition after
// each one. The merged cluster takes slot 0; untouched clusters keep their
// relative order and share their member lists with the previous entry.
// Events are resolved by order alone, so tied heights are harmless.
func Build(tree core.MergeTree) (*Sequence, error) {
	if err := mergetree.CheckShape(tree); err != nil {
		return nil, err
	}

	ctx := newBuildContext(tree.Items)
	seq := &Sequence{
		items:   tree.Items,
		heights: make([]float64, 0, len(tree.Events)),
		steps:   make([]core.Partition, 0, len(tree.Events)),
	}
	for step, e := range tree.Events {
		if err := ctx.merge(step, e); err != nil {
			return nil, err
		}
		seq.heights = append(seq.heights, e.Height)
		seq.steps = append(seq.steps, ctx.snapshot())
	}
	return seq, nil
}

// FromEdges builds the sequence for a minimum spanning tree edge list.
func FromEdges(items int, edges []core.Edge) (*Sequence, error) {
	tree, err := mergetree.FromEdges(items, edges)
	if err != nil {
		return nil, err
	}
	return Build(tree)
}
