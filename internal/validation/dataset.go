// Package validation scores the partitions of a merge tree with internal
// validation indices and recommends a cluster count.
package validation

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"ecco/internal/core"
)

// Dataset is the coordinate matrix the indices are computed against, with
// the quantities every partition shares precomputed.
type Dataset struct {
	coords *mat.Dense
	n, dim int
	eo     float64

	distOnce sync.Once
	dist     *mat.SymDense
}

// NewDataset copies rows into a dataset. Every row must have the same
// non-zero width and at least two rows are required.
func NewDataset(rows [][]float64) (*Dataset, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: dataset has %d items", core.ErrDegenerateCluster, len(rows))
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("dataset rows have no columns")
	}
	coords := mat.NewDense(len(rows), dim, nil)
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), dim)
		}
		coords.SetRow(i, row)
	}
	return newDataset(coords), nil
}

// NewDatasetFromDense wraps an existing matrix without copying it. The
// caller must not modify m afterwards.
func NewDatasetFromDense(m *mat.Dense) (*Dataset, error) {
	r, c := m.Dims()
	if r < 2 {
		return nil, fmt.Errorf("%w: dataset has %d items", core.ErrDegenerateCluster, r)
	}
	if c == 0 {
		return nil, fmt.Errorf("dataset rows have no columns")
	}
	return newDataset(m), nil
}

func newDataset(coords *mat.Dense) *Dataset {
	n, dim := coords.Dims()
	d := &Dataset{coords: coords, n: n, dim: dim}

	mean := make([]float64, dim)
	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, coords)
		mean[j] = stat.Mean(col, nil)
	}
	for i := 0; i < n; i++ {
		d.eo += floats.Distance(d.Row(i), mean, 2)
	}
	return d
}

// Items returns the number of rows.
func (d *Dataset) Items() int {
	return d.n
}

// Dim returns the number of columns.
func (d *Dataset) Dim() int {
	return d.dim
}

// Row returns a read-only view of row i.
func (d *Dataset) Row(i int) []float64 {
	return d.coords.RawRowView(i)
}

// Coords returns the underlying matrix.
func (d *Dataset) Coords() *mat.Dense {
	return d.coords
}

// Dispersion returns Eo, the summed distance of every item to the global
// mean. It is used by the PBM index.
func (d *Dataset) Dispersion() float64 {
	return d.eo
}

// Distance returns the euclidean distance between items i and j. The
// pairwise matrix is built on first use and shared by every caller.
func (d *Dataset) Distance(i, j int) float64 {
	d.distOnce.Do(func() {
		d.dist = mat.NewSymDense(d.n, nil)
		for a := 0; a < d.n; a++ {
			for b := a + 1; b < d.n; b++ {
				d.dist.SetSym(a, b, floats.Distance(d.Row(a), d.Row(b), 2))
			}
		}
	})
	return d.dist.At(i, j)
}

// geometry is the per-cluster summary shared by the centroid based indices.
type geometry struct {
	members   [][]int
	centroids [][]float64
	spread    []float64 // summed member to centroid distance per cluster
	total     float64   // spread summed over clusters
}

func newGeometry(p core.Partition, d *Dataset) geometry {
	g := geometry{
		members:   make([][]int, len(p.Clusters)),
		centroids: make([][]float64, len(p.Clusters)),
		spread:    make([]float64, len(p.Clusters)),
	}
	for c, m := range p.Clusters {
		items := m.Items()
		g.members[c] = items

		centroid := make([]float64, d.dim)
		for _, item := range items {
			floats.Add(centroid, d.Row(item))
		}
		floats.Scale(1/float64(len(items)), centroid)
		g.centroids[c] = centroid

		for _, item := range items {
			g.spread[c] += floats.Distance(d.Row(item), centroid, 2)
		}
		g.total += g.spread[c]
	}
	return g
}

func (g geometry) centroidDistance(a, b int) float64 {
	return floats.Distance(g.centroids[a], g.centroids[b], 2)
}
