// Package face compares fixed-length face descriptors by euclidean distance.
// Distance is a dissimilarity: lower means more alike, and a candidate
// matches only when its distance is strictly below the threshold.
package face

import (
	"errors"
	"math"
)

// DefaultThreshold is the match-distance cutoff used when settings carry no
// override.
const DefaultThreshold = 0.5

// BlendWeight is how much a fresh descriptor contributes to the stored
// template after a successful verification.
const BlendWeight = 0.2

// ErrNoFace is returned by Centroid when an enrollment sample produced no
// descriptor.
var ErrNoFace = errors.New("no face in enrollment sample")

// Distance returns the euclidean distance between two descriptors. Vectors
// of different lengths can never belong to the same model output, so the
// distance is +Inf.
func Distance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match reports whether live is close enough to stored. The threshold itself
// is a non-match: only distance < threshold passes.
func Match(live, stored []float64, threshold float64) (bool, float64) {
	d := Distance(live, stored)
	return d < threshold, d
}

// BestMatch scans capture samples in order, keeping the lowest distance and
// short-circuiting on the first match. Callers typically pass up to five
// frames sampled half a second apart.
func BestMatch(samples [][]float64, stored []float64, threshold float64) (bool, float64) {
	best := math.Inf(1)
	for _, s := range samples {
		ok, d := Match(s, stored, threshold)
		if d < best {
			best = d
		}
		if ok {
			return true, best
		}
	}
	return false, best
}

// Blend folds a fresh descriptor into the stored template so it can drift
// with natural appearance change: new = old*(1-w) + live*w.
func Blend(stored, live []float64, liveWeight float64) []float64 {
	oldWeight := 1 - liveWeight
	out := make([]float64, len(stored))
	for i, v := range stored {
		if i < len(live) {
			out[i] = v*oldWeight + live[i]*liveWeight
		} else {
			out[i] = v
		}
	}
	return out
}

// Centroid builds the enrollment template as the component-wise mean of the
// samples, taken at different head angles. Any empty sample fails the whole
// enrollment with ErrNoFace.
func Centroid(samples [][]float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrNoFace
	}
	length := len(samples[0])
	if length == 0 {
		return nil, ErrNoFace
	}

	avg := make([]float64, length)
	for _, s := range samples {
		if len(s) != length {
			return nil, ErrNoFace
		}
		for i, v := range s {
			avg[i] += v
		}
	}
	n := float64(len(samples))
	for i := range avg {
		avg[i] /= n
	}
	return avg, nil
}
