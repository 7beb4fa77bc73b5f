package liveness

import (
	"testing"
	"time"
)

// fakeClock advances a fixed step per frame so the head-movement window and
// the timeout are deterministic.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestMachine(step time.Duration) *Machine {
	clock := &fakeClock{t: time.Unix(1700000000, 0), step: step}
	return NewWithClock(DefaultConfig(), clock.now)
}

// frame builds a full 468-point landmark set where both eyes have the given
// EAR and the nose tip sits at (noseX, noseY).
func frame(ear, noseX, noseY float64) []Point {
	pts := make([]Point, MinLandmarks)
	for _, idx := range [2][6]int{leftEyeEAR, rightEyeEAR} {
		// p1/p4 one unit apart horizontally; both vertical pairs span
		// exactly ear, so the computed ratio equals ear.
		pts[idx[0]] = Point{X: 0, Y: 0}
		pts[idx[3]] = Point{X: 1, Y: 0}
		pts[idx[1]] = Point{X: 0.25, Y: ear}
		pts[idx[5]] = Point{X: 0.25, Y: 0}
		pts[idx[2]] = Point{X: 0.75, Y: ear}
		pts[idx[4]] = Point{X: 0.75, Y: 0}
	}
	pts[noseTipIndex] = Point{X: noseX, Y: noseY}
	return pts
}

const (
	openEAR   = 0.3
	closedEAR = 0.1
)

func TestFrameEARConstruction(t *testing.T) {
	pts := frame(0.25, 0, 0)
	if got := computeEAR(pts, leftEyeEAR); got != 0.25 {
		t.Fatalf("computeEAR = %f, want 0.25", got)
	}
}

func TestBlinkCountedOnceOnClosedToOpenEdge(t *testing.T) {
	m := newTestMachine(100 * time.Millisecond)

	m.Observe(frame(openEAR, 0, 0))
	// Hold the eyes closed across several frames; nothing counts yet.
	for i := 0; i < 5; i++ {
		res := m.Observe(frame(closedEAR, 0, 0))
		if res.BlinkCount != 0 {
			t.Fatalf("blink counted while eyes still closed (frame %d)", i)
		}
	}
	// The single reopen is the blink.
	res := m.Observe(frame(openEAR, 0, 0))
	if res.BlinkCount != 1 {
		t.Fatalf("BlinkCount = %d after reopen, want 1", res.BlinkCount)
	}
	// Staying open adds nothing.
	res = m.Observe(frame(openEAR, 0, 0))
	if res.BlinkCount != 1 {
		t.Fatalf("BlinkCount = %d while open, want 1", res.BlinkCount)
	}
}

func blinkOnce(m *Machine, noseX float64) {
	m.Observe(frame(closedEAR, noseX, 0))
	m.Observe(frame(openEAR, noseX, 0))
}

func TestPassRequiresBothConditions(t *testing.T) {
	m := newTestMachine(100 * time.Millisecond)

	// Two blinks with a still head: no pass.
	blinkOnce(m, 0)
	blinkOnce(m, 0)
	res := m.Observe(frame(openEAR, 0, 0))
	if res.Passed || res.State != StateHeadMovePending {
		t.Fatalf("passed without head movement: %+v", res)
	}

	// Sweep the nose across more than the range threshold over 10+ samples.
	var last Result
	for i := 0; i < 12; i++ {
		last = m.Observe(frame(openEAR, float64(i*3), 0))
		if last.Passed {
			break
		}
	}
	if !last.Passed {
		t.Fatalf("no pass edge after blinks and head movement: %+v", last)
	}

	// The edge fires exactly once.
	res = m.Observe(frame(openEAR, 40, 0))
	if res.Passed {
		t.Fatalf("pass edge fired twice")
	}
	if res.State != StatePassed {
		t.Fatalf("state after pass = %v, want StatePassed", res.State)
	}
}

func TestPassOrderIndependent(t *testing.T) {
	m := newTestMachine(100 * time.Millisecond)

	// Head movement first, blinks second.
	for i := 0; i < 12; i++ {
		m.Observe(frame(openEAR, float64(i*3), 0))
	}
	blinkOnce(m, 40)
	m.Observe(frame(closedEAR, 40, 0))
	res := m.Observe(frame(openEAR, 40, 0))
	if !res.Passed {
		t.Fatalf("pass edge missing when blinks complete last: %+v", res)
	}
}

func TestTimeoutFiresOnce(t *testing.T) {
	// Two-second steps blow through the 15 s deadline in a few frames.
	m := newTestMachine(2 * time.Second)

	var expiredEdges int
	for i := 0; i < 12; i++ {
		res := m.Observe(frame(openEAR, 0, 0))
		if res.Expired {
			expiredEdges++
		}
	}
	if expiredEdges != 1 {
		t.Fatalf("expired edge fired %d times, want exactly 1", expiredEdges)
	}

	// Frames after expiry are ignored even if they would otherwise pass.
	res := m.Observe(frame(openEAR, 100, 0))
	if res.Passed || res.State != StateExpired {
		t.Fatalf("machine progressed after expiry: %+v", res)
	}
}

func TestResetAllowsFreshSession(t *testing.T) {
	m := newTestMachine(2 * time.Second)
	for i := 0; i < 12; i++ {
		m.Observe(frame(openEAR, 0, 0))
	}
	m.Reset()

	res := m.Observe(frame(openEAR, 0, 0))
	if res.State == StateExpired {
		t.Fatalf("machine still expired after reset")
	}
}

func TestShortLandmarkSetIsNoFace(t *testing.T) {
	m := newTestMachine(100 * time.Millisecond)

	res := m.Observe(make([]Point, MinLandmarks-1))
	if res.State != StateNoFace {
		t.Fatalf("state = %v for %d landmarks, want StateNoFace", res.State, MinLandmarks-1)
	}
	if res.BlinkCount != 0 || res.HeadMoved {
		t.Fatalf("no-face frame advanced progress: %+v", res)
	}
}

func TestHeadMovementNeedsEnoughSamples(t *testing.T) {
	m := newTestMachine(100 * time.Millisecond)

	// Large range but only a handful of samples: not yet satisfied.
	var res Result
	for i := 0; i < 5; i++ {
		res = m.Observe(frame(openEAR, float64(i*20), 0))
	}
	if res.HeadMoved {
		t.Fatalf("head movement satisfied with %d samples, want >= %d", 5, DefaultConfig().HeadMinSamples)
	}
}
