package face

import (
	"errors"
	"math"
	"testing"
)

func vector(n int, fill float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestDistance(t *testing.T) {
	a := []float64{0, 0, 0, 0}
	b := []float64{1, 1, 1, 1}
	if d := Distance(a, b); d != 2 {
		t.Fatalf("Distance = %f, want 2", d)
	}
	if d := Distance(a, a); d != 0 {
		t.Fatalf("Distance to self = %f, want 0", d)
	}
}

func TestDistanceLengthMismatchIsInfinite(t *testing.T) {
	if d := Distance(vector(128, 0), vector(64, 0)); !math.IsInf(d, 1) {
		t.Fatalf("Distance across lengths = %f, want +Inf", d)
	}
	if d := Distance(nil, nil); !math.IsInf(d, 1) {
		t.Fatalf("Distance of empty vectors = %f, want +Inf", d)
	}
}

func TestMatchThresholdIsExclusive(t *testing.T) {
	stored := []float64{0, 0, 0, 0}

	// distance exactly at threshold is a non-match
	atThreshold := []float64{0.5, 0, 0, 0}
	if ok, d := Match(atThreshold, stored, 0.5); ok || d != 0.5 {
		t.Fatalf("Match at threshold = (%v, %f), want non-match at 0.5", ok, d)
	}

	below := []float64{0.49, 0, 0, 0}
	if ok, _ := Match(below, stored, 0.5); !ok {
		t.Fatalf("Match below threshold failed")
	}

	above := []float64{0.51, 0, 0, 0}
	if ok, _ := Match(above, stored, 0.5); ok {
		t.Fatalf("Match above threshold passed")
	}
}

func TestBestMatchKeepsLowestAndShortCircuits(t *testing.T) {
	stored := []float64{0, 0}

	samples := [][]float64{
		{2, 0},   // distance 2
		{0.9, 0}, // distance 0.9, best so far
		{0.3, 0}, // matches, must stop here
		{0.1, 0}, // would be better but must not be reached
	}
	ok, best := BestMatch(samples, stored, 0.5)
	if !ok {
		t.Fatalf("BestMatch found no match")
	}
	if best != 0.3 {
		t.Fatalf("best distance = %f, want 0.3 (short-circuit on first match)", best)
	}
}

func TestBestMatchAllMisses(t *testing.T) {
	stored := []float64{0, 0}
	samples := [][]float64{{2, 0}, {0.9, 0}, {1.5, 0}}

	ok, best := BestMatch(samples, stored, 0.5)
	if ok {
		t.Fatalf("BestMatch matched above threshold")
	}
	if best != 0.9 {
		t.Fatalf("best distance = %f, want the lowest seen (0.9)", best)
	}
}

func TestBlend(t *testing.T) {
	stored := []float64{1, 1}
	live := []float64{0, 2}

	got := Blend(stored, live, 0.2)
	want := []float64{0.8, 1.2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("Blend[%d] = %f, want %f", i, got[i], want[i])
		}
	}

	// The stored template must not be mutated in place.
	if stored[0] != 1 || stored[1] != 1 {
		t.Fatalf("Blend mutated the stored template: %v", stored)
	}
}

func TestCentroid(t *testing.T) {
	samples := [][]float64{
		{0, 3},
		{3, 0},
		{3, 3},
	}
	got, err := Centroid(samples)
	if err != nil {
		t.Fatalf("Centroid: %v", err)
	}
	want := []float64{2, 2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("Centroid[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestCentroidRejectsEmptySample(t *testing.T) {
	cases := [][][]float64{
		nil,
		{},
		{{1, 2}, nil},
		{{1, 2}, {}},
	}
	for i, samples := range cases {
		if _, err := Centroid(samples); !errors.Is(err, ErrNoFace) {
			t.Fatalf("case %d: Centroid err = %v, want ErrNoFace", i, err)
		}
	}
}
