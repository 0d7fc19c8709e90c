// Package proximity measures pixel distances between the people visible in a
// single frame.
package proximity

import (
	"image"
	"math"
)

const (
	// DefaultNearbyRadius is the radius used to collect a dangerous person's neighbours.
	DefaultNearbyRadius = 200.0
	// DefaultCloseDistance marks a pair as close enough to draw and flag.
	DefaultCloseDistance = 150.0
)

// Person is one detected person in a frame, in detection order.
type Person struct {
	Identity int
	Center   image.Point
}

// Pair is an unordered pair of people by index, I < J.
type Pair struct {
	I, J         int
	IdentityI    int
	IdentityJ    int
	Distance     float64
	CenterI      image.Point
	CenterJ      image.Point
	closeCeiling float64
}

// Close reports whether the pair is under the close-distance threshold.
func (p Pair) Close() bool {
	ceiling := p.closeCeiling
	if ceiling == 0 {
		ceiling = DefaultCloseDistance
	}
	return p.Distance < ceiling
}

// Neighbor is another person within a radius of some person.
type Neighbor struct {
	Index    int // detection index within the frame
	Identity int
	Distance float64
	Position image.Point
}

// Frame answers proximity questions about one frame.
type Frame struct {
	people        []Person
	closeDistance float64
}

// NewFrame returns a Frame over people using the default close distance.
func NewFrame(people []Person) *Frame {
	return &Frame{people: people, closeDistance: DefaultCloseDistance}
}

// WithCloseDistance overrides the close-pair threshold.
func (f *Frame) WithCloseDistance(d float64) *Frame {
	if d > 0 {
		f.closeDistance = d
	}
	return f
}

// Len returns the number of people in the frame.
func (f *Frame) Len() int { return len(f.people) }

// Distance is the Euclidean pixel distance between two centers.
func Distance(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// PairwiseDistances returns one Pair for every i < j in detection order.
func (f *Frame) PairwiseDistances() []Pair {
	n := len(f.people)
	if n < 2 {
		return nil
	}
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := f.people[i], f.people[j]
			pairs = append(pairs, Pair{
				I:            i,
				J:            j,
				IdentityI:    a.Identity,
				IdentityJ:    b.Identity,
				Distance:     Distance(a.Center, b.Center),
				CenterI:      a.Center,
				CenterJ:      b.Center,
				closeCeiling: f.closeDistance,
			})
		}
	}
	return pairs
}

// Nearby returns everyone other than index strictly within radius, in
// detection order. An out-of-range index yields nil.
func (f *Frame) Nearby(index int, radius float64) []Neighbor {
	if index < 0 || index >= len(f.people) {
		return nil
	}
	origin := f.people[index].Center
	var out []Neighbor
	for i, p := range f.people {
		if i == index {
			continue
		}
		if d := Distance(origin, p.Center); d < radius {
			out = append(out, Neighbor{Index: i, Identity: p.Identity, Distance: d, Position: p.Center})
		}
	}
	return out
}
