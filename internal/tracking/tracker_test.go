package tracking

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securityvision/analyzer/internal/kinematics"
)

func ids(est []Estimate) []int {
	out := make([]int, len(est))
	for i, e := range est {
		out[i] = e.ID
	}
	return out
}

func TestEuclideanTracker_StableIdentity(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(Config{DistanceThreshold: 40, MaxMisses: 15})
	first := tr.Update([]Point{{100, 100}, {500, 100}})
	require.Equal(t, []int{1, 2}, ids(first))

	// Both move 20px; the gate is 40px.
	second := tr.Update([]Point{{520, 100}, {120, 100}})
	got := MatchIdentities([]Point{{520, 100}, {120, 100}}, second)
	assert.Equal(t, []int{2, 1}, got)
}

func TestEuclideanTracker_GateCreatesNewTrack(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(Config{DistanceThreshold: 40, MaxMisses: 2})
	tr.Update([]Point{{0, 0}})
	est := tr.Update([]Point{{200, 0}})

	// The jump exceeds the gate, so a second track starts and the first coasts.
	assert.ElementsMatch(t, []int{1, 2}, ids(est))
}

func TestEuclideanTracker_VelocityPrediction(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(Config{DistanceThreshold: 40, MaxMisses: 2})
	tr.Update([]Point{{0, 0}})
	tr.Update([]Point{{30, 0}})
	// 60px from the last position but on the predicted path.
	est := tr.Update([]Point{{90, 0}})
	assert.Equal(t, []int{1}, ids(est))
}

func TestEuclideanTracker_DropsAfterMaxMisses(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(Config{DistanceThreshold: 40, MaxMisses: 2})
	tr.Update([]Point{{10, 10}})
	assert.Len(t, tr.Update(nil), 1)
	assert.Len(t, tr.Update(nil), 1)
	assert.Empty(t, tr.Update(nil))
}

func TestEuclideanTracker_TentativeUntilInitialized(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(Config{DistanceThreshold: 40, MaxMisses: 15, InitializationDelay: 2})
	assert.Empty(t, tr.Update([]Point{{100, 100}}))
	assert.Empty(t, tr.Update([]Point{{105, 100}}))
	assert.Equal(t, []int{1}, ids(tr.Update([]Point{{110, 100}})))
}

func TestEuclideanTracker_TentativeDroppedOnMiss(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(Config{DistanceThreshold: 40, MaxMisses: 15, InitializationDelay: 2})
	tr.Update([]Point{{100, 100}})
	tr.Update(nil)
	tr.Update([]Point{{100, 100}})
	tr.Update([]Point{{100, 100}})
	// The first track died on its miss, so the survivor is the second one.
	assert.Equal(t, []int{2}, ids(tr.Update([]Point{{100, 100}})))
}

func TestEuclideanTracker_JumpKeepsEstablishedIdentity(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(DefaultConfig())
	p := Point{100, 100}
	var est []Estimate
	for i := 0; i < 8; i++ {
		est = tr.Update([]Point{p})
	}
	require.Equal(t, []int{1}, ids(est))

	// A jump beyond the gate starts a tentative track that is not reported,
	// so the detection still matches the established identity.
	jumped := Point{300, 100}
	est = tr.Update([]Point{jumped})
	assert.Equal(t, []int{1}, ids(est))
	assert.Equal(t, []int{1}, MatchIdentities([]Point{jumped}, est))
}

func TestEuclideanTracker_FastMoverStaysUnmatched(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(DefaultConfig())
	for i := 0; i < 30; i++ {
		p := Point{X: float64(i * 200 % 1200), Y: 300}
		got := MatchIdentities([]Point{p}, tr.Update([]Point{p}))
		require.Equal(t, []int{kinematics.Unmatched}, got, "frame %d", i)
	}
}

func TestNewEuclideanTracker_NegativeDelay(t *testing.T) {
	t.Parallel()

	tr := NewEuclideanTracker(Config{DistanceThreshold: 40, InitializationDelay: -3})
	assert.Equal(t, []int{1}, ids(tr.Update([]Point{{1, 1}})))
}

func TestMatchIdentities_Nearest(t *testing.T) {
	t.Parallel()

	est := []Estimate{
		{ID: 4, Position: Point{0, 0}},
		{ID: 9, Position: Point{100, 0}},
	}
	got := MatchIdentities([]Point{{90, 0}, {10, 0}, {1000, 1000}}, est)
	// No gating: the far detection still takes the nearest estimate.
	assert.Equal(t, []int{9, 4, 9}, got)
}

func TestMatchIdentities_NoEstimates(t *testing.T) {
	t.Parallel()

	got := MatchIdentities([]Point{{1, 2}, {3, 4}}, nil)
	assert.Equal(t, []int{kinematics.Unmatched, kinematics.Unmatched}, got)
}

func TestPointOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Point{X: 3, Y: -4}, PointOf(image.Pt(3, -4)))
}
