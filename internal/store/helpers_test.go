package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/securityvision/analyzer/internal/danger"
)

// setupStore creates a fresh store in a temp directory.
func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Create(filepath.Join(t.TempDir(), DefaultFileName))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testDate = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// twoPersonFrame returns a consistent frame with one dangerous person and
// one person at risk.
func twoPersonFrame(ts float64) *FrameRecord {
	return &FrameRecord{
		Timestamp:      ts,
		FormattedTime:  "00:01.00",
		PersonCount:    2,
		Genders:        []string{"Man", "Woman"},
		Emotions:       []string{"fear", "happy"},
		Speeds:         []float64{120.5, 0},
		Angles:         []float64{45, 0},
		Identities:     []int{1, 2},
		Distances:      []DistanceEntry{{I: 0, J: 1, Distance: 100}},
		AnalysisDate:   testDate,
		AlarmTriggered: true,
		AlarmReason:    "1 person(s) in dangerous state",
		Persons: []PersonDetail{
			{Identity: 1, Gender: "Man", Emotion: "fear", Speed: 120.5, Angle: 45, BBoxArea: 9000,
				DistanceCategory: "Very Close", X: 10, Y: 20, Width: 90, Height: 100,
				Status: danger.StatusDangerous, DangerLevel: 10, AlarmTriggered: true},
			{Identity: 2, Gender: "Woman", Emotion: "happy", BBoxArea: 2000,
				DistanceCategory: "Far", X: 110, Y: 20, Width: 40, Height: 50,
				Status: danger.StatusAtRisk},
		},
		Pairs: []DistancePair{{PersonI: 1, PersonJ: 2, Distance: 100, Close: true}},
	}
}
