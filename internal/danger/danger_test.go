package danger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_Examples(t *testing.T) {
	t.Parallel()

	a := Score("fear", 70, 6000)
	assert.Equal(t, 8, a.Level)
	assert.True(t, a.Dangerous)
	assert.Equal(t, "Fear detected | High speed | Close | CRITICAL: Fear + High speed", a.Reason)

	a = Score("happy", 10, 1000)
	assert.Equal(t, 0, a.Level)
	assert.False(t, a.Dangerous)
	assert.Equal(t, NormalReason, a.Reason)
	assert.Empty(t, a.Reasons)
}

func TestScore_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		emotion string
		speed   float64
		area    int
		level   int
	}{
		{"angry only", "angry", 0, 0, 3},
		{"sad only", "sad", 0, 0, 2},
		{"case insensitive", "FEAR", 0, 0, 4},
		{"medium speed", "neutral", 31, 0, 1},
		{"speed boundary 30", "neutral", 30, 0, 0},
		{"speed boundary 60", "neutral", 60, 0, 1},
		{"speed boundary 100", "neutral", 100, 0, 2},
		{"very high speed", "neutral", 100.5, 0, 3},
		{"area boundary 5000", "neutral", 0, 5000, 0},
		{"close", "neutral", 0, 5001, 1},
		{"area boundary 8000", "neutral", 0, 8000, 1},
		{"very close", "neutral", 0, 8001, 2},
		{"fear at 60 has no combo", "fear", 60, 0, 5},
		{"everything capped", "fear", 500, 20000, 10},
		{"angry fast close", "angry", 120, 9000, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Score(tt.emotion, tt.speed, tt.area)
			assert.Equal(t, tt.level, a.Level)
			assert.Equal(t, tt.level >= AlarmThreshold, a.Dangerous)
		})
	}
}

func TestScore_RangeAndThreshold(t *testing.T) {
	t.Parallel()

	emotions := []string{"", "happy", "neutral", "sad", "angry", "fear", "surprise"}
	speeds := []float64{-5, 0, 15, 30, 45, 61, 99, 101, 1e6}
	areas := []int{0, 999, 2500, 5001, 7999, 8001, 1 << 20}
	for _, e := range emotions {
		for _, s := range speeds {
			for _, ar := range areas {
				a := Score(e, s, ar)
				assert.GreaterOrEqual(t, a.Level, 0)
				assert.LessOrEqual(t, a.Level, MaxLevel)
				assert.Equal(t, a.Level >= AlarmThreshold, a.Dangerous, "emotion=%q speed=%v area=%d", e, s, ar)
			}
		}
	}
}

func TestScore_Monotonic(t *testing.T) {
	t.Parallel()

	emotions := []string{"", "sad", "angry", "fear"} // ascending severity
	speeds := []float64{0, 20, 31, 45, 61, 80, 101, 300}
	areas := []int{0, 3000, 5001, 6000, 8001, 12000}

	for _, e := range emotions {
		for _, ar := range areas {
			prev := -1
			for _, s := range speeds {
				lvl := Score(e, s, ar).Level
				assert.GreaterOrEqual(t, lvl, prev, "speed not monotonic for %q area=%d", e, ar)
				prev = lvl
			}
		}
	}
	for _, e := range emotions {
		for _, s := range speeds {
			prev := -1
			for _, ar := range areas {
				lvl := Score(e, s, ar).Level
				assert.GreaterOrEqual(t, lvl, prev, "area not monotonic for %q speed=%v", e, s)
				prev = lvl
			}
		}
	}
	for _, s := range speeds {
		for _, ar := range areas {
			prev := -1
			for _, e := range emotions {
				lvl := Score(e, s, ar).Level
				assert.GreaterOrEqual(t, lvl, prev, "emotion not monotonic at speed=%v area=%d", s, ar)
				prev = lvl
			}
		}
	}
}

func TestDistanceCategory(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		9000: "Very Close",
		8000: "Close",
		5001: "Close",
		5000: "Medium",
		2501: "Medium",
		2500: "Far",
		1201: "Far",
		1200: "Very Far",
		0:    "Very Far",
	}
	for area, want := range cases {
		assert.Equal(t, want, DistanceCategory(area), "area=%d", area)
	}
}

func TestLevelColor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Red, LevelColor(10))
	assert.Equal(t, Red, LevelColor(8))
	assert.Equal(t, Orange, LevelColor(7))
	assert.Equal(t, Orange, LevelColor(6))
	assert.Equal(t, Yellow, LevelColor(5))
	assert.Equal(t, Yellow, LevelColor(4))
	assert.Equal(t, Green, LevelColor(3))
	assert.Equal(t, Green, LevelColor(0))
}
