// Package linkage produces merge trees from coordinate data by agglomerative
// clustering over a choice of distance metrics.
package linkage

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"ecco/internal/core"
)

// Distance metric names.
const (
	Euclidean   = "euclidean"
	SqEuclidean = "sqeuclidean"
	SEuclidean  = "seuclidean"
	Cosine      = "cosine"
	Chebyshev   = "chebyshev"
	Correlation = "correlation"
	Canberra    = "canberra"
	BrayCurtis  = "braycurtis"
	Minkowski   = "minkowski"
	Cityblock   = "cityblock"
)

// MinkowskiP is the order used by the minkowski metric.
const MinkowskiP = 3

// Metrics lists every supported distance metric.
func Metrics() []string {
	return []string{Euclidean, SEuclidean, SqEuclidean, Cosine, Chebyshev,
		Correlation, Canberra, BrayCurtis, Minkowski, Cityblock}
}

type pairFunc func(a, b []float64) float64

func metricFunc(metric string, data mat.Matrix) (pairFunc, error) {
	switch strings.ToLower(metric) {
	case Euclidean:
		return func(a, b []float64) float64 { return floats.Distance(a, b, 2) }, nil
	case SqEuclidean:
		return func(a, b []float64) float64 {
			d := floats.Distance(a, b, 2)
			return d * d
		}, nil
	case SEuclidean:
		return standardized(data), nil
	case Cosine:
		return cosine, nil
	case Chebyshev:
		return func(a, b []float64) float64 { return floats.Distance(a, b, math.Inf(1)) }, nil
	case Correlation:
		return correlation, nil
	case Canberra:
		return canberra, nil
	case BrayCurtis:
		return brayCurtis, nil
	case Minkowski:
		return func(a, b []float64) float64 { return floats.Distance(a, b, MinkowskiP) }, nil
	case Cityblock:
		return func(a, b []float64) float64 { return floats.Distance(a, b, 1) }, nil
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownMetric, metric)
}

// Distances returns the pairwise distance matrix of the rows of data.
func Distances(data *mat.Dense, metric string) (*mat.SymDense, error) {
	fn, err := metricFunc(metric, data)
	if err != nil {
		return nil, err
	}
	n, _ := data.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		a := data.RawRowView(i)
		for j := i + 1; j < n; j++ {
			out.SetSym(i, j, fn(a, data.RawRowView(j)))
		}
	}
	return out, nil
}

// standardized weights each squared difference by the inverse sample
// variance of its column. Constant columns are ignored.
func standardized(data mat.Matrix) pairFunc {
	r, c := data.Dims()
	inv := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, data)
		if v := stat.Variance(col, nil); v > 0 && !math.IsNaN(v) {
			inv[j] = 1 / v
		}
	}
	return func(a, b []float64) float64 {
		sum := 0.0
		for k := range a {
			d := a[k] - b[k]
			sum += d * d * inv[k]
		}
		return math.Sqrt(sum)
	}
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		if na == nb {
			return 0
		}
		return 1
	}
	return 1 - floats.Dot(a, b)/(na*nb)
}

func correlation(a, b []float64) float64 {
	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) {
		if floats.Equal(a, b) {
			return 0
		}
		return 1
	}
	return 1 - r
}

func canberra(a, b []float64) float64 {
	sum := 0.0
	for k := range a {
		den := math.Abs(a[k]) + math.Abs(b[k])
		if den == 0 {
			continue
		}
		sum += math.Abs(a[k]-b[k]) / den
	}
	return sum
}

func brayCurtis(a, b []float64) float64 {
	num, den := 0.0, 0.0
	for k := range a {
		num += math.Abs(a[k] - b[k])
		den += math.Abs(a[k] + b[k])
	}
	if den == 0 {
		return 0
	}
	return num / den
}
