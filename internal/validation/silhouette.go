package validation

import (
	"math"

	"ecco/internal/core"
)

// Silhouette averages per-cluster mean silhouette widths over all clusters.
// Singleton clusters contribute zero. Higher is better.
type Silhouette struct{}

func (Silhouette) Name() string { return MetricSilhouette }

func (Silhouette) Score(p core.Partition, d *Dataset) float64 {
	k := p.K()
	if k <= 1 {
		return SingleClusterSilhouette
	}
	total := 0.0
	for c, m := range p.Clusters {
		if m.Kind() == core.SingletonMember {
			continue
		}
		items := m.Items()
		sum := 0.0
		for _, item := range items {
			sum += SilhouetteWidth(item, c, p, d)
		}
		total += sum / float64(len(items))
	}
	return total / float64(k)
}

// SilhouetteWidth returns the silhouette of one item in cluster c:
//
//	-1: item likely in the wrong cluster
//	 0: item on the border between clusters
//	+1: item well matched to its cluster
func SilhouetteWidth(item, c int, p core.Partition, d *Dataset) float64 {
	a := meanDistanceTo(item, p.Clusters[c].Items(), d)

	b := math.Inf(1)
	for other, m := range p.Clusters {
		if other == c {
			continue
		}
		if mean := meanDistanceTo(item, m.Items(), d); mean < b {
			b = mean
		}
	}
	if math.IsInf(b, 1) {
		return 0
	}

	if a < b {
		return 1 - a/b
	} else if a > b {
		return b/a - 1
	}
	return 0
}

// meanDistanceTo is the mean distance from item to the members, excluding
// the item itself.
func meanDistanceTo(item int, members []int, d *Dataset) float64 {
	sum := 0.0
	count := 0
	for _, other := range members {
		if other == item {
			continue
		}
		sum += d.Distance(item, other)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// InterpretSilhouette maps a silhouette value to a quality label.
func InterpretSilhouette(score float64) string {
	switch {
	case score >= 0.7:
		return "strong"
	case score >= 0.5:
		return "reasonable"
	case score >= 0.25:
		return "weak"
	default:
		return "none"
	}
}
