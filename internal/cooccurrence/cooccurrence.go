// Package cooccurrence accumulates agreement between clusterings of the
// same items into a normalized co-occurrence matrix.
package cooccurrence

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"ecco/internal/core"
)

// Matrix is a symmetric N×N agreement matrix with a unit diagonal. Values
// only grow; Accumulate calls are serialized by the matrix.
type Matrix struct {
	mu     sync.Mutex
	n      int
	data   *mat.SymDense
	weight float64
	count  int
}

// New returns an identity matrix over n items.
func New(n int) *Matrix {
	data := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		data.SetSym(i, i, 1)
	}
	return &Matrix{n: n, data: data}
}

// Size returns the number of items.
func (m *Matrix) Size() int {
	return m.n
}

// Accumulate adds weight to every intra-cluster pair of the partition.
// Values are capped at 1 to absorb rounding when the weight schedule sums
// to exactly one.
func (m *Matrix) Accumulate(p core.Partition, weight float64) error {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("invalid accumulation weight %v", weight)
	}
	for _, c := range p.Clusters {
		for _, item := range c.Items() {
			if item < 0 || item >= m.n {
				return fmt.Errorf("partition item %d outside matrix of size %d", item, m.n)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range p.Clusters {
		if c.Kind() == core.SingletonMember {
			continue
		}
		items := c.Items()
		for a := 0; a < len(items); a++ {
			for b := a + 1; b < len(items); b++ {
				i, j := items[a], items[b]
				v := m.data.At(i, j) + weight
				if v > 1 {
					v = 1
				}
				m.data.SetSym(i, j, v)
			}
		}
	}
	m.weight += weight
	m.count++
	return nil
}

// At returns the agreement between items i and j.
func (m *Matrix) At(i, j int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.At(i, j)
}

// TotalWeight returns the sum of the weights accumulated so far.
func (m *Matrix) TotalWeight() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.weight
}

// Accumulations returns the number of partitions accumulated.
func (m *Matrix) Accumulations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Dense returns a copy of the matrix as a row-major dense matrix.
func (m *Matrix) Dense() *mat.Dense {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := mat.NewDense(m.n, m.n, nil)
	out.Copy(m.data)
	return out
}

// Rows returns a copy of the matrix as nested slices.
func (m *Matrix) Rows() [][]float64 {
	d := m.Dense()
	rows := make([][]float64, m.n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, d)
	}
	return rows
}

// Reordered returns a copy of the matrix with rows and columns permuted so
// that position k holds item order[k].
func (m *Matrix) Reordered(order []int) (*mat.Dense, error) {
	if len(order) != m.n {
		return nil, fmt.Errorf("order has %d entries for %d items", len(order), m.n)
	}
	seen := make([]bool, m.n)
	for _, item := range order {
		if item < 0 || item >= m.n || seen[item] {
			return nil, fmt.Errorf("order is not a permutation of 0..%d", m.n-1)
		}
		seen[item] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := mat.NewDense(m.n, m.n, nil)
	for r, i := range order {
		for c, j := range order {
			out.Set(r, c, m.data.At(i, j))
		}
	}
	return out, nil
}

// FromRows builds a matrix from previously exported rows, for example a
// stored run. The rows must be square and symmetric.
func FromRows(rows [][]float64, totalWeight float64) (*Matrix, error) {
	n := len(rows)
	m := New(n)
	for i := 0; i < n; i++ {
		if len(rows[i]) != n {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(rows[i]), n)
		}
		for j := i + 1; j < n; j++ {
			if math.Abs(rows[i][j]-rows[j][i]) > 1e-12 {
				return nil, fmt.Errorf("matrix is not symmetric at (%d,%d)", i, j)
			}
			m.data.SetSym(i, j, rows[i][j])
		}
	}
	m.weight = totalWeight
	return m, nil
}
