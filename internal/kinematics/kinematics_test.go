package kinematics

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_FirstSightingIsZero(t *testing.T) {
	t.Parallel()

	s := NewState()
	for i, pt := range []image.Point{{0, 0}, {640, 360}, {-50, 9000}} {
		m := s.Update(i+1, pt, 4000, float64(i))
		assert.Equal(t, Motion{}, m)
	}
	assert.Equal(t, 3, s.Len())
}

func TestUpdate_SubPixelDisplacementLeavesHistory(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Update(7, image.Pt(100, 100), 5000, 0)
	s.Update(7, image.Pt(150, 100), 5000, 1)
	before := s.History(7)
	require.Len(t, before, 1)

	m := s.Update(7, image.Pt(151, 101), 5000, 2)
	assert.Zero(t, m.Speed)
	assert.Zero(t, m.Angle)
	assert.False(t, m.Moving)
	assert.Equal(t, before, s.History(7))

	// The sample was still replaced: moving 50px from (151,101) in 1s.
	m = s.Update(7, image.Pt(201, 101), 5000, 3)
	require.Len(t, s.History(7), 2)
	assert.InDelta(t, 50.0, s.History(7)[1], 1e-9)
	assert.InDelta(t, 50.0, m.Speed, 1e-9)
}

func TestUpdate_SpeedAndAngle(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Update(1, image.Pt(0, 0), 5000, 0)
	m := s.Update(1, image.Pt(30, 40), 5000, 0.5)

	// 50px in 0.5s at the reference area.
	assert.InDelta(t, 100.0, m.Speed, 1e-9)
	assert.InDelta(t, math.Atan2(40, 30)*180/math.Pi, m.Angle, 1e-9)
	assert.Equal(t, image.Pt(0, 0), m.From)
	assert.True(t, m.Moving)
}

func TestUpdate_SizeNormalisation(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Update(1, image.Pt(0, 0), 20000, 0)
	m := s.Update(1, image.Pt(100, 0), 20000, 1)
	assert.InDelta(t, 100*math.Sqrt(5000.0/20000.0), m.Speed, 1e-9)

	// Small boxes are floored at 1000 px².
	s.Update(2, image.Pt(0, 0), 10, 0)
	m = s.Update(2, image.Pt(100, 0), 10, 1)
	assert.InDelta(t, 100*math.Sqrt(5.0), m.Speed, 1e-9)
}

func TestUpdate_ZeroDtOrAreaPushesZero(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Update(1, image.Pt(0, 0), 5000, 1)
	m := s.Update(1, image.Pt(10, 0), 5000, 1)
	assert.Zero(t, m.Speed)
	assert.Equal(t, []float64{0}, s.History(1))

	m = s.Update(1, image.Pt(20, 0), 0, 2)
	assert.Zero(t, m.Speed)
	assert.Equal(t, []float64{0, 0}, s.History(1))
}

func TestUpdate_HistoryBoundedMean(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Update(3, image.Pt(0, 0), 5000, 0)
	x := 0
	var raws []float64
	for i := 1; i <= 12; i++ {
		step := 10 * i
		x += step
		m := s.Update(3, image.Pt(x, 0), 5000, float64(i))
		raws = append(raws, float64(step))

		hist := s.History(3)
		assert.LessOrEqual(t, len(hist), MaxSpeedHistoryLength)

		start := 0
		if len(raws) > MaxSpeedHistoryLength {
			start = len(raws) - MaxSpeedHistoryLength
		}
		assert.Equal(t, raws[start:], hist)

		sum := 0.0
		for _, v := range hist {
			sum += v
		}
		assert.InDelta(t, sum/float64(len(hist)), m.Speed, 1e-9)
	}
}

func TestUpdate_UnmatchedSharesOneHistory(t *testing.T) {
	t.Parallel()

	s := NewState()
	assert.Equal(t, Motion{}, s.Update(Unmatched, image.Pt(0, 0), 5000, 0))
	m := s.Update(Unmatched, image.Pt(500, 0), 5000, 1)
	assert.True(t, m.Moving)
	assert.InDelta(t, 500, m.Speed, 1e-9)
	assert.Equal(t, image.Pt(0, 0), m.From)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []float64{500}, s.History(Unmatched))
}

func TestForget(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Update(4, image.Pt(0, 0), 5000, 0)
	s.Update(4, image.Pt(100, 0), 5000, 1)
	s.Forget(4)
	assert.Zero(t, s.Len())

	// A reappearing identity starts over.
	assert.Equal(t, Motion{}, s.Update(4, image.Pt(300, 0), 5000, 2))
}
