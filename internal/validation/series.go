package validation

import (
	"ecco/internal/core"
)

// lowerIsBetter lists the metrics whose raw value falls as quality rises.
var lowerIsBetter = map[string]bool{
	MetricKMeans:        true,
	MetricDaviesBouldin: true,
}

// Series is the raw score of one metric at each candidate K, ascending by K.
type Series struct {
	Metric string                 `json:"metric"`
	Scores []core.ValidationScore `json:"scores"`
}

// Normalized returns the scores on a common higher-is-better scale.
//
// The single-cluster sentinel is first replaced by a value derived from the
// K=2 score (doubled for lower-is-better metrics, halved otherwise).
// Lower-is-better values are then inverted, and every K>1 value is scaled by
// K/(K-1).
func (s Series) Normalized() []core.ValidationScore {
	out := make([]core.ValidationScore, len(s.Scores))
	copy(out, s.Scores)
	invert := lowerIsBetter[s.Metric]

	for i := range out {
		if out[i].K != 1 || i+1 >= len(out) || out[i+1].K != 2 {
			continue
		}
		if invert {
			out[i].Score = out[i+1].Score * 2
		} else {
			out[i].Score = out[i+1].Score / 2
		}
	}

	for i := range out {
		v := out[i].Score
		if invert && v != 0 {
			v = 1 / v
		}
		if k := out[i].K; k > 1 {
			v *= float64(k) / float64(k-1)
		}
		out[i].Score = v
	}
	return out
}

// Recommend returns the K with the best normalized score. Ties go to the
// smaller K. ok is false for an empty series.
func (s Series) Recommend() (k int, score float64, ok bool) {
	for i, v := range s.Normalized() {
		if i == 0 || v.Score > score {
			k, score, ok = v.K, v.Score, true
		}
	}
	return k, score, ok
}

// Best returns the raw score at the recommended K.
func (s Series) Best() (core.ValidationScore, bool) {
	k, _, ok := s.Recommend()
	if !ok {
		return core.ValidationScore{}, false
	}
	for _, v := range s.Scores {
		if v.K == k {
			return v, true
		}
	}
	return core.ValidationScore{}, false
}
