// Package kinematics keeps the per-identity motion state of one analysis run
// and turns successive positions into a smoothed, size-normalised speed.
package kinematics

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// MaxSpeedHistoryLength is the number of raw speeds averaged per identity.
	MaxSpeedHistoryLength = 5

	// StillThresholdPx is the per-axis displacement below which a person is
	// treated as stationary.
	StillThresholdPx = 2

	// referenceArea and minArea normalise speed by apparent size so a near
	// person and a far person moving the same real distance score alike.
	referenceArea = 5000.0
	minArea       = 1000.0
)

// Unmatched is the identity assigned to detections with no tracker estimate.
// It is tracked like any other identity, so every unmatched detection of a
// run shares one motion history.
const Unmatched = -1

type sample struct {
	center    image.Point
	area      int
	timestamp float64
}

type identityState struct {
	last         sample
	speedHistory []float64
}

// Motion is the result of one Update.
type Motion struct {
	Speed  float64     // smoothed, size-normalised px/s
	Angle  float64     // degrees, unsmoothed
	From   image.Point // previous center, valid when Moving
	Moving bool
}

// State holds the motion state for every identity seen in a run.
// It is not safe for concurrent use.
type State struct {
	identities map[int]*identityState
}

// NewState returns an empty State.
func NewState() *State {
	return &State{identities: make(map[int]*identityState)}
}

// Update records a sighting of identity at center and returns its motion.
// The first sighting of an identity and sub-threshold displacements report
// zero speed. The stored sample is always replaced by this sighting.
func (s *State) Update(identity int, center image.Point, bboxArea int, timestamp float64) Motion {
	cur := sample{center: center, area: bboxArea, timestamp: timestamp}
	st, ok := s.identities[identity]
	if !ok {
		s.identities[identity] = &identityState{
			last:         cur,
			speedHistory: make([]float64, 0, MaxSpeedHistoryLength),
		}
		return Motion{}
	}
	prev := st.last
	st.last = cur

	dx := float64(center.X - prev.center.X)
	dy := float64(center.Y - prev.center.Y)
	if math.Abs(dx) < StillThresholdPx && math.Abs(dy) < StillThresholdPx {
		return Motion{}
	}

	raw := normalizedSpeed(math.Hypot(dx, dy), timestamp-prev.timestamp, bboxArea)
	st.speedHistory = append(st.speedHistory, raw)
	if len(st.speedHistory) > MaxSpeedHistoryLength {
		st.speedHistory = st.speedHistory[1:]
	}

	return Motion{
		Speed:  stat.Mean(st.speedHistory, nil),
		Angle:  math.Atan2(dy, dx) * 180 / math.Pi,
		From:   prev.center,
		Moving: true,
	}
}

// normalizedSpeed is 0 when dt or area is zero.
func normalizedSpeed(distance, dt float64, bboxArea int) float64 {
	if dt <= 0 || bboxArea == 0 {
		return 0
	}
	sizeFactor := math.Sqrt(referenceArea / math.Max(float64(bboxArea), minArea))
	return distance / dt * sizeFactor
}

// History returns a copy of the raw speeds stored for identity.
func (s *State) History(identity int) []float64 {
	st, ok := s.identities[identity]
	if !ok {
		return nil
	}
	out := make([]float64, len(st.speedHistory))
	copy(out, st.speedHistory)
	return out
}

// Forget drops all state for identity.
func (s *State) Forget(identity int) {
	delete(s.identities, identity)
}

// Len returns the number of identities with state.
func (s *State) Len() int {
	return len(s.identities)
}
