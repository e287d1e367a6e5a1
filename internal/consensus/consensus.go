// Package consensus finds groups of items that were clustered together by
// every member of an ensemble.
package consensus

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"ecco/internal/core"
	"ecco/internal/linkage"
	"ecco/internal/mergetree"
)

// Tolerance absorbs rounding in accumulated agreement values.
const Tolerance = 1e-9

// Agreement is a square matrix of pairwise agreement values.
type Agreement interface {
	Size() int
	At(i, j int) float64
}

// Threshold returns the full-agreement cutoff for an ensemble of total
// members, (total-1)/total.
func Threshold(total int) float64 {
	return float64(total-1) / float64(total)
}

// Extract scans the matrix in leafOrder and splits it into maximal runs of
// items whose pairwise agreement all reach the full-agreement threshold.
// Blocks cover the whole order without overlap. Blocks smaller than
// minBlockSize are still returned, with MeetsMinSize false.
func Extract(m Agreement, leafOrder []int, total, minBlockSize int) ([]core.ConsensusBlock, error) {
	n := m.Size()
	if total < 1 {
		return nil, fmt.Errorf("ensemble size must be positive, got %d", total)
	}
	if err := checkOrder(leafOrder, n); err != nil {
		return nil, err
	}

	cutoff := Threshold(total) - Tolerance
	agrees := func(a, b int) bool {
		v := m.At(a, b)
		// with a single member the cutoff is zero; never-paired items stay apart
		return v >= cutoff && v > 0
	}

	var blocks []core.ConsensusBlock
	for start := 0; start < n; {
		end := start + 1
	grow:
		for end < n {
			next := leafOrder[end]
			for k := start; k < end; k++ {
				if !agrees(leafOrder[k], next) {
					break grow
				}
			}
			end++
		}

		members := make([]int, end-start)
		copy(members, leafOrder[start:end])
		blocks = append(blocks, core.ConsensusBlock{
			Start:        start,
			End:          end,
			Members:      members,
			MeetsMinSize: end-start >= minBlockSize,
		})
		start = end
	}
	return blocks, nil
}

// ReferenceOrder returns the leaf order of a ward/euclidean dendrogram built
// over the rows of the agreement matrix, which places strongly agreeing
// items next to each other.
func ReferenceOrder(m Agreement) ([]int, error) {
	return ReferenceOrderWith(m, core.LinkagePair{Linkage: linkage.Ward, Metric: linkage.Euclidean})
}

// ReferenceOrderWith is ReferenceOrder with an explicit linkage and metric.
func ReferenceOrderWith(m Agreement, pair core.LinkagePair) ([]int, error) {
	n := m.Size()
	rows := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rows.Set(i, j, m.At(i, j))
		}
	}
	tree, err := linkage.Tree(rows, pair)
	if err != nil {
		return nil, fmt.Errorf("reference dendrogram: %w", err)
	}
	return mergetree.LeafOrder(tree)
}

// Assignments labels each item with the index of its block among the blocks
// meeting the minimum size, or -1.
func Assignments(blocks []core.ConsensusBlock, n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	next := 0
	for _, b := range blocks {
		if !b.MeetsMinSize {
			continue
		}
		for _, item := range b.Members {
			labels[item] = next
		}
		next++
	}
	return labels
}

// Qualifying returns the blocks that meet the minimum size.
func Qualifying(blocks []core.ConsensusBlock) []core.ConsensusBlock {
	var out []core.ConsensusBlock
	for _, b := range blocks {
		if b.MeetsMinSize {
			out = append(out, b)
		}
	}
	return out
}

func checkOrder(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("leaf order has %d entries for %d items", len(order), n)
	}
	seen := make([]bool, n)
	for _, item := range order {
		if item < 0 || item >= n || seen[item] {
			return fmt.Errorf("leaf order is not a permutation of 0..%d", n-1)
		}
		seen[item] = true
	}
	return nil
}
