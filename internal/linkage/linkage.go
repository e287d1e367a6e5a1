package linkage

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"ecco/internal/core"
)

// Linkage method names.
const (
	Single   = "single"
	Complete = "complete"
	Average  = "average"
	Weighted = "weighted"
	Ward     = "ward"
)

// Methods lists every supported linkage method.
func Methods() []string {
	return []string{Single, Complete, Average, Weighted, Ward}
}

// CheckPair reports whether a linkage and metric can be combined. Ward is
// only defined for euclidean distances.
func CheckPair(pair core.LinkagePair) error {
	method := strings.ToLower(pair.Linkage)
	switch method {
	case Single, Complete, Average, Weighted, Ward:
	default:
		return fmt.Errorf("%w: unknown linkage %q", core.ErrUnsupportedPair, pair.Linkage)
	}
	if _, err := metricFunc(pair.Metric, mat.NewDense(1, 1, nil)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrUnsupportedPair, err)
	}
	if method == Ward && !strings.EqualFold(pair.Metric, Euclidean) {
		return fmt.Errorf("%w: ward linkage requires euclidean distances, got %q", core.ErrUnsupportedPair, pair.Metric)
	}
	return nil
}

// Tree clusters the rows of data with the given linkage and metric.
func Tree(data *mat.Dense, pair core.LinkagePair) (core.MergeTree, error) {
	if err := CheckPair(pair); err != nil {
		return core.MergeTree{}, err
	}
	dist, err := Distances(data, pair.Metric)
	if err != nil {
		return core.MergeTree{}, err
	}
	return Cluster(dist, pair.Linkage)
}

// Cluster runs agglomerative clustering over a precomputed distance matrix
// using the Lance-Williams update for the chosen method. dist is not
// modified. Each event lists the smaller node id first; ties between equal
// distances go to the lowest pair of slots.
func Cluster(dist mat.Symmetric, method string) (core.MergeTree, error) {
	method = strings.ToLower(method)
	update, ok := updates[method]
	if !ok {
		return core.MergeTree{}, fmt.Errorf("%w: unknown linkage %q", core.ErrUnsupportedPair, method)
	}
	n := dist.SymmetricDim()
	if n == 0 {
		return core.MergeTree{}, fmt.Errorf("cannot cluster zero items")
	}

	// working copy; ward runs on squared distances
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := dist.At(i, j)
			if method == Ward {
				v *= v
			}
			d.SetSym(i, j, v)
		}
	}

	active := make([]bool, n)
	node := make([]int, n) // slot -> node id
	size := make([]float64, n)
	for i := range active {
		active[i] = true
		node[i] = i
		size[i] = 1
	}

	tree := core.MergeTree{Items: n, Events: make([]core.MergeEvent, 0, n-1)}
	for step := 0; step < n-1; step++ {
		best := math.Inf(1)
		bi, bj := -1, -1
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d.At(i, j) < best {
					best, bi, bj = d.At(i, j), i, j
				}
			}
		}
		if bi < 0 {
			return core.MergeTree{}, fmt.Errorf("no finite distance left at step %d", step)
		}

		height := best
		if method == Ward {
			height = math.Sqrt(best)
		}
		left, right := node[bi], node[bj]
		if left > right {
			left, right = right, left
		}
		tree.Events = append(tree.Events, core.MergeEvent{Left: left, Right: right, Height: height})

		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			d.SetSym(bi, k, update(d.At(bi, k), d.At(bj, k), best, size[bi], size[bj], size[k]))
		}
		active[bj] = false
		size[bi] += size[bj]
		node[bi] = n + step
	}
	return tree, nil
}

// lanceWilliams returns d(i∪j, k) from d(i,k), d(j,k), d(i,j) and the
// cluster sizes.
type lanceWilliams func(dik, djk, dij, ni, nj, nk float64) float64

var updates = map[string]lanceWilliams{
	Single: func(dik, djk, _, _, _, _ float64) float64 {
		return math.Min(dik, djk)
	},
	Complete: func(dik, djk, _, _, _, _ float64) float64 {
		return math.Max(dik, djk)
	},
	Average: func(dik, djk, _, ni, nj, _ float64) float64 {
		return (ni*dik + nj*djk) / (ni + nj)
	},
	Weighted: func(dik, djk, _, _, _, _ float64) float64 {
		return (dik + djk) / 2
	},
	Ward: func(dik, djk, dij, ni, nj, nk float64) float64 {
		return ((nk+ni)*dik + (nk+nj)*djk - nk*dij) / (nk + ni + nj)
	},
}
