// Package liveness implements the frame-by-frame proof that a live person is
// in front of the camera: two blinks (detected on the closed-to-open eye
// transition) plus a small head movement, inside a deadline. The machine is
// fed raw face-mesh landmarks and reports pass or expiry exactly once.
package liveness

import (
	"fmt"
	"math"
	"time"
)

// Face-mesh landmark indices for the six EAR points of each eye
// (outer corner, two upper lid, inner corner, two lower lid) and the nose tip.
var (
	leftEyeEAR  = [6]int{33, 160, 158, 133, 153, 144}
	rightEyeEAR = [6]int{362, 385, 387, 263, 373, 380}
)

const noseTipIndex = 1

// MinLandmarks is the full face-mesh size; frames with fewer points are
// treated as "no face".
const MinLandmarks = 468

// Point is a single landmark coordinate in the frame's native space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State names the machine's current stage, used only for progress feedback.
type State int

const (
	StateNoFace State = iota
	StateFaceDetected
	StateBlinkPending
	StateHeadMovePending
	StatePassed
	StateExpired
)

// Config holds the tunables. Defaults follow the deployed values.
type Config struct {
	BlinkThreshold float64
	RequiredBlinks int
	HeadWindow     time.Duration
	HeadMinSamples int
	HeadRangeMin   float64
	Timeout        time.Duration
}

func DefaultConfig() Config {
	return Config{
		BlinkThreshold: 0.2,
		RequiredBlinks: 2,
		HeadWindow:     3 * time.Second,
		HeadMinSamples: 10,
		HeadRangeMin:   15,
		Timeout:        15 * time.Second,
	}
}

// Result is the outcome of observing one frame. Passed and Expired are
// edge-triggered: each fires on exactly one frame.
type Result struct {
	State      State
	Passed     bool
	Expired    bool
	BlinkCount int
	HeadMoved  bool
	LastEAR    float64
	Message    string
}

type headSample struct {
	x, y float64
	at   time.Time
}

// Machine accumulates liveness evidence across frames. Not safe for
// concurrent use; each capture session owns one machine.
type Machine struct {
	cfg Config
	now func() time.Time

	started      bool
	startedAt    time.Time
	faceDetected bool
	eyeWasClosed bool
	blinkCount   int
	lastEAR      float64
	headMoved    bool
	positions    []headSample
	passed       bool
	expired      bool
	reportedPass bool
	reportedExp  bool
}

// New returns a machine with the given config. A zero RequiredBlinks or
// Timeout falls back to the defaults.
func New(cfg Config) *Machine {
	def := DefaultConfig()
	if cfg.BlinkThreshold == 0 {
		cfg.BlinkThreshold = def.BlinkThreshold
	}
	if cfg.RequiredBlinks == 0 {
		cfg.RequiredBlinks = def.RequiredBlinks
	}
	if cfg.HeadWindow == 0 {
		cfg.HeadWindow = def.HeadWindow
	}
	if cfg.HeadMinSamples == 0 {
		cfg.HeadMinSamples = def.HeadMinSamples
	}
	if cfg.HeadRangeMin == 0 {
		cfg.HeadRangeMin = def.HeadRangeMin
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Machine{cfg: cfg, now: time.Now, lastEAR: 1}
}

// NewWithClock is New with an injected clock, for tests.
func NewWithClock(cfg Config, now func() time.Time) *Machine {
	m := New(cfg)
	m.now = now
	return m
}

// Reset returns the machine to its initial state for a fresh capture session.
func (m *Machine) Reset() {
	*m = Machine{cfg: m.cfg, now: m.now, lastEAR: 1}
}

// Observe feeds one frame of landmarks into the machine. Frames after the
// pass or expiry edge are ignored until Reset.
func (m *Machine) Observe(landmarks []Point) Result {
	now := m.now()
	if !m.started {
		m.started = true
		m.startedAt = now
	}

	if m.passed || m.expired {
		return m.result(false, false)
	}

	if now.Sub(m.startedAt) >= m.cfg.Timeout {
		m.expired = true
		fireExpire := !m.reportedExp
		m.reportedExp = true
		return m.result(false, fireExpire)
	}

	if len(landmarks) < MinLandmarks {
		m.faceDetected = false
		return m.result(false, false)
	}
	m.faceDetected = true

	ear := (computeEAR(landmarks, leftEyeEAR) + computeEAR(landmarks, rightEyeEAR)) / 2
	m.lastEAR = ear

	// A blink is the closed-to-open edge, not time spent closed.
	if ear < m.cfg.BlinkThreshold {
		m.eyeWasClosed = true
	} else if m.eyeWasClosed {
		m.blinkCount++
		m.eyeWasClosed = false
	}

	m.trackHead(landmarks[noseTipIndex], now)

	if m.blinkCount >= m.cfg.RequiredBlinks && m.headMoved {
		m.passed = true
		firePass := !m.reportedPass
		m.reportedPass = true
		return m.result(firePass, false)
	}

	return m.result(false, false)
}

// trackHead keeps a trailing window of nose-tip positions and marks head
// movement once the window spans enough range on either axis.
func (m *Machine) trackHead(nose Point, now time.Time) {
	kept := m.positions[:0]
	for _, p := range m.positions {
		if now.Sub(p.at) < m.cfg.HeadWindow {
			kept = append(kept, p)
		}
	}
	m.positions = append(kept, headSample{x: nose.X, y: nose.Y, at: now})

	if m.headMoved || len(m.positions) < m.cfg.HeadMinSamples {
		return
	}

	minX, maxX := m.positions[0].x, m.positions[0].x
	minY, maxY := m.positions[0].y, m.positions[0].y
	for _, p := range m.positions[1:] {
		minX = math.Min(minX, p.x)
		maxX = math.Max(maxX, p.x)
		minY = math.Min(minY, p.y)
		maxY = math.Max(maxY, p.y)
	}
	if maxX-minX > m.cfg.HeadRangeMin || maxY-minY > m.cfg.HeadRangeMin {
		m.headMoved = true
	}
}

func (m *Machine) result(passEdge, expireEdge bool) Result {
	return Result{
		State:      m.state(),
		Passed:     passEdge,
		Expired:    expireEdge,
		BlinkCount: m.blinkCount,
		HeadMoved:  m.headMoved,
		LastEAR:    m.lastEAR,
		Message:    m.message(),
	}
}

func (m *Machine) state() State {
	switch {
	case m.expired:
		return StateExpired
	case m.passed:
		return StatePassed
	case !m.faceDetected:
		return StateNoFace
	case m.blinkCount < m.cfg.RequiredBlinks:
		return StateBlinkPending
	case !m.headMoved:
		return StateHeadMovePending
	default:
		return StateFaceDetected
	}
}

// message is UI feedback only; nothing downstream branches on it.
func (m *Machine) message() string {
	switch m.state() {
	case StateExpired:
		return "verification timed out, please try again"
	case StatePassed:
		return "liveness check passed"
	case StateNoFace:
		return "please face the camera"
	case StateBlinkPending:
		return fmt.Sprintf("blink (%d/%d)", m.blinkCount, m.cfg.RequiredBlinks)
	case StateHeadMovePending:
		return "move your head slightly left and right"
	default:
		return "hold still"
	}
}

// computeEAR is the eye-aspect ratio over six landmarks:
// (|p2-p6| + |p3-p5|) / (2 |p1-p4|).
func computeEAR(landmarks []Point, idx [6]int) float64 {
	p1, p2, p3 := landmarks[idx[0]], landmarks[idx[1]], landmarks[idx[2]]
	p4, p5, p6 := landmarks[idx[3]], landmarks[idx[4]], landmarks[idx[5]]

	vertical1 := euclidean(p2, p6)
	vertical2 := euclidean(p3, p5)
	horizontal := euclidean(p1, p4)

	if horizontal == 0 {
		return 0
	}
	return (vertical1 + vertical2) / (2 * horizontal)
}

func euclidean(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
