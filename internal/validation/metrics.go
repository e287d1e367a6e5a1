package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"ecco/internal/core"
)

// Metric names accepted by Lookup and the configuration.
const (
	MetricKMeans        = "kmeans"
	MetricDaviesBouldin = "dbi"
	MetricDunn          = "dunn"
	MetricPBM           = "pbm"
	MetricSilhouette    = "silhouette"
)

// Values reported for a single-cluster partition, where the indices are
// undefined.
const (
	SingleClusterKMeans        = 1.0
	SingleClusterDaviesBouldin = 10.0
	SingleClusterDunn          = 0.0
	SingleClusterPBM           = 0.0
	SingleClusterSilhouette    = 0.0
)

// initialSeparation is the inter-cluster distance assumed by the k-means
// index before any non-zero centroid distance is seen.
const initialSeparation = 1000.0

// Metric scores one partition of a dataset. Implementations are pure and
// safe for concurrent use.
type Metric interface {
	Name() string
	Score(p core.Partition, d *Dataset) float64
}

// Score evaluates m on p. It exists so callers can score a single partition
// without building an Engine.
func Score(m Metric, p core.Partition, d *Dataset) float64 {
	return m.Score(p, d)
}

var registry = map[string]Metric{
	MetricKMeans:        KMeans{},
	MetricDaviesBouldin: DaviesBouldin{},
	MetricDunn:          Dunn{},
	MetricPBM:           PBM{},
	MetricSilhouette:    Silhouette{},
}

// Lookup returns the metric registered under name.
func Lookup(name string) (Metric, error) {
	m, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownMetric, name)
	}
	return m, nil
}

// LookupAll resolves a list of names, keeping their order.
func LookupAll(names []string) ([]Metric, error) {
	out := make([]Metric, 0, len(names))
	for _, name := range names {
		m, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Names returns every registered metric name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KMeans is the ratio of mean intra-cluster distance to the smallest
// non-zero centroid separation. Lower is better.
type KMeans struct{}

func (KMeans) Name() string { return MetricKMeans }

func (KMeans) Score(p core.Partition, d *Dataset) float64 {
	k := p.K()
	if k <= 1 {
		return SingleClusterKMeans
	}
	g := newGeometry(p, d)
	intra := g.total / float64(d.Items())

	inter := initialSeparation
	for a := 0; a < k; a++ {
		for b := a + 1; b < k; b++ {
			dist := g.centroidDistance(a, b)
			if dist != 0 && dist < inter {
				inter = dist
			}
		}
	}
	return intra / inter
}

// DaviesBouldin averages, over clusters, the worst ratio of combined
// dispersion to centroid separation. Lower is better.
type DaviesBouldin struct{}

func (DaviesBouldin) Name() string { return MetricDaviesBouldin }

func (DaviesBouldin) Score(p core.Partition, d *Dataset) float64 {
	k := p.K()
	if k <= 1 {
		return SingleClusterDaviesBouldin
	}
	g := newGeometry(p, d)
	dispersion := make([]float64, k)
	for c := range g.members {
		dispersion[c] = g.spread[c] / float64(len(g.members[c]))
	}

	sum := 0.0
	for a := 0; a < k; a++ {
		worst := 0.0
		for b := 0; b < k; b++ {
			if a == b {
				continue
			}
			sep := g.centroidDistance(a, b)
			// coincident centroids give no usable ratio
			if sep == 0 {
				continue
			}
			if r := (dispersion[a] + dispersion[b]) / sep; r > worst {
				worst = r
			}
		}
		sum += worst
	}
	return sum / float64(k)
}

// Dunn is the smallest centroid separation over the largest cluster
// diameter. Higher is better.
type Dunn struct{}

func (Dunn) Name() string { return MetricDunn }

func (Dunn) Score(p core.Partition, d *Dataset) float64 {
	k := p.K()
	if k <= 1 {
		return SingleClusterDunn
	}
	g := newGeometry(p, d)

	diameter := 0.0
	for _, items := range g.members {
		for a := 0; a < len(items); a++ {
			for b := a + 1; b < len(items); b++ {
				if dist := d.Distance(items[a], items[b]); dist > diameter {
					diameter = dist
				}
			}
		}
	}
	if diameter == 0 {
		return SingleClusterDunn
	}

	sep := math.Inf(1)
	for a := 0; a < k; a++ {
		for b := a + 1; b < k; b++ {
			if dist := g.centroidDistance(a, b); dist < sep {
				sep = dist
			}
		}
	}
	return sep / diameter
}

// PBM combines the largest centroid separation with the ratio of global to
// within-cluster dispersion. Higher is better.
type PBM struct{}

func (PBM) Name() string { return MetricPBM }

func (PBM) Score(p core.Partition, d *Dataset) float64 {
	k := p.K()
	if k <= 1 {
		return SingleClusterPBM
	}
	g := newGeometry(p, d)
	if g.total == 0 {
		return SingleClusterPBM
	}

	maxSep := 0.0
	for a := 0; a < k; a++ {
		for b := a + 1; b < k; b++ {
			if dist := g.centroidDistance(a, b); dist > maxSep {
				maxSep = dist
			}
		}
	}
	v := (maxSep / float64(k)) * (d.Dispersion() / g.total)
	return v * v
}
