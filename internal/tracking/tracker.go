// Package tracking assigns stable identities to per-frame detections.
//
// Tracker is the black-box multi-object tracker boundary: the pipeline hands
// it detection centers and gets back the live track estimates. MatchIdentities
// then maps each detection onto the nearest estimate.
package tracking

import (
	"image"
	"math"

	"github.com/securityvision/analyzer/internal/kinematics"
)

// Point is a detection center in output-frame pixels.
type Point struct {
	X, Y float64
}

// PointOf converts an integer center.
func PointOf(p image.Point) Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Estimate is a live track's identity and estimated position.
type Estimate struct {
	ID       int
	Position Point
}

// Tracker turns the detections of one frame into live track estimates.
type Tracker interface {
	Update(points []Point) []Estimate
}

// Config controls the default tracker.
type Config struct {
	// DistanceThreshold gates association, in pixels.
	DistanceThreshold float64
	// MaxMisses is how many consecutive frames a track may go undetected.
	MaxMisses int
	// InitializationDelay is how many matches after the first a new track
	// needs before Update reports it. A tentative track is dropped on its
	// first miss.
	InitializationDelay int
}

// DefaultConfig matches the association settings used for sampled frames.
// The initialization delay is half of MaxMisses.
func DefaultConfig() Config {
	return Config{DistanceThreshold: 40, MaxMisses: 15, InitializationDelay: 7}
}

type track struct {
	id       int
	position Point
	velocity Point
	misses   int
	hits     int
}

func (t *track) tentative(delay int) bool {
	return t.hits <= delay
}

// EuclideanTracker associates detections to tracks by minimum total
// Euclidean distance under a gate, predicting each track forward by its last
// observed displacement.
type EuclideanTracker struct {
	cfg    Config
	tracks []*track
	nextID int
}

// NewEuclideanTracker returns a tracker with no tracks. IDs start at 1.
func NewEuclideanTracker(cfg Config) *EuclideanTracker {
	if cfg.DistanceThreshold <= 0 {
		cfg.DistanceThreshold = DefaultConfig().DistanceThreshold
	}
	if cfg.MaxMisses < 0 {
		cfg.MaxMisses = 0
	}
	if cfg.InitializationDelay < 0 {
		cfg.InitializationDelay = 0
	}
	return &EuclideanTracker{cfg: cfg, nextID: 1}
}

func (t *track) predicted() Point {
	return Point{X: t.position.X + t.velocity.X, Y: t.position.Y + t.velocity.Y}
}

// Update advances every track by one frame and returns the estimates of the
// established tracks. Tentative tracks take part in association but are not
// reported until they have been matched more than InitializationDelay times.
func (e *EuclideanTracker) Update(points []Point) []Estimate {
	cost := make([][]float64, len(points))
	for i, p := range points {
		cost[i] = make([]float64, len(e.tracks))
		for j, tr := range e.tracks {
			d := p.dist(tr.predicted())
			if d > e.cfg.DistanceThreshold {
				d = forbidden
			}
			cost[i][j] = d
		}
	}

	matched := make([]bool, len(e.tracks))
	var assignment []int
	if len(e.tracks) > 0 {
		assignment = assign(cost)
	}
	for i, p := range points {
		j := -1
		if assignment != nil {
			j = assignment[i]
		}
		if j < 0 {
			e.tracks = append(e.tracks, &track{id: e.nextID, position: p, hits: 1})
			e.nextID++
			continue
		}
		tr := e.tracks[j]
		tr.velocity = Point{X: p.X - tr.position.X, Y: p.Y - tr.position.Y}
		tr.position = p
		tr.misses = 0
		tr.hits++
		matched[j] = true
	}

	live := e.tracks[:0]
	for j, tr := range e.tracks {
		if j < len(matched) && !matched[j] {
			if tr.tentative(e.cfg.InitializationDelay) {
				continue
			}
			tr.misses++
			tr.position = tr.predicted()
			if tr.misses > e.cfg.MaxMisses {
				continue
			}
		}
		live = append(live, tr)
	}
	e.tracks = live

	out := make([]Estimate, 0, len(e.tracks))
	for _, tr := range e.tracks {
		if tr.tentative(e.cfg.InitializationDelay) {
			continue
		}
		out = append(out, Estimate{ID: tr.id, Position: tr.position})
	}
	return out
}

// MatchIdentities gives each detection the ID of the nearest estimate.
// There is no gating and several detections may share one ID. With no
// estimates every detection is kinematics.Unmatched.
func MatchIdentities(points []Point, estimates []Estimate) []int {
	ids := make([]int, len(points))
	for i, p := range points {
		ids[i] = kinematics.Unmatched
		best := math.Inf(1)
		for _, est := range estimates {
			if d := p.dist(est.Position); d < best {
				best = d
				ids[i] = est.ID
			}
		}
	}
	return ids
}
