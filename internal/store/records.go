package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/securityvision/analyzer/internal/danger"
)

// ErrInconsistentFrame is returned for a FrameRecord whose per-person arrays
// disagree with its person count.
var ErrInconsistentFrame = errors.New("inconsistent frame record")

// DistanceEntry is one element of the frame-level distances array. It
// serialises as [i, j, distance] where i and j index the frame's people.
type DistanceEntry struct {
	I, J     int
	Distance float64
}

func (d DistanceEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{d.I, d.J, d.Distance})
}

func (d *DistanceEntry) UnmarshalJSON(b []byte) error {
	var raw []float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("distance entry must have 3 elements, got %d", len(raw))
	}
	d.I, d.J, d.Distance = int(raw[0]), int(raw[1]), raw[2]
	return nil
}

// PersonDetail is one person in one analysed frame (person_details).
type PersonDetail struct {
	Identity         int
	Gender           string
	Emotion          string
	Speed            float64
	Angle            float64
	BBoxArea         int
	DistanceCategory string
	X, Y             int
	Width, Height    int
	Status           danger.Status
	DangerLevel      int
	AlarmTriggered   bool
}

// DistancePair is one unordered pair of people in a frame (person_distances).
type DistancePair struct {
	PersonI  int
	PersonJ  int
	Distance float64
	Close    bool
}

// FrameRecord is one analysed frame (video_analysis) together with its
// person and pair rows, written in a single transaction.
type FrameRecord struct {
	ID             int64
	Timestamp      float64
	FormattedTime  string
	PersonCount    int
	Genders        []string
	Emotions       []string
	Speeds         []float64
	Angles         []float64
	Identities     []int
	Distances      []DistanceEntry
	AnalysisDate   time.Time
	AlarmTriggered bool
	AlarmReason    string

	Persons []PersonDetail
	Pairs   []DistancePair
}

// Validate checks the parallel-array invariants of r.
func (r *FrameRecord) Validate() error {
	n := r.PersonCount
	if n < 0 {
		return fmt.Errorf("%w: negative person count %d", ErrInconsistentFrame, n)
	}
	for _, f := range []struct {
		name string
		len  int
	}{
		{"genders", len(r.Genders)},
		{"emotions", len(r.Emotions)},
		{"speeds", len(r.Speeds)},
		{"angles", len(r.Angles)},
		{"identities", len(r.Identities)},
		{"persons", len(r.Persons)},
	} {
		if f.len != n {
			return fmt.Errorf("%w: %s has %d entries, person count is %d", ErrInconsistentFrame, f.name, f.len, n)
		}
	}

	ids := make(map[int]bool, n)
	for _, id := range r.Identities {
		ids[id] = true
	}
	for _, p := range r.Persons {
		if !ids[p.Identity] {
			return fmt.Errorf("%w: person %d not in identity array", ErrInconsistentFrame, p.Identity)
		}
		if p.DangerLevel < 0 || p.DangerLevel > danger.MaxLevel {
			return fmt.Errorf("%w: danger level %d out of range", ErrInconsistentFrame, p.DangerLevel)
		}
	}
	for _, d := range r.Distances {
		if d.I < 0 || d.J < 0 || d.I >= n || d.J >= n {
			return fmt.Errorf("%w: distance entry (%d,%d) out of range", ErrInconsistentFrame, d.I, d.J)
		}
	}
	return nil
}

// NearbyPerson is a person near a dangerous one when an alarm fired.
type NearbyPerson struct {
	ID       int     `json:"id"`
	Distance float64 `json:"distance"`
}

// AlarmEvent is one dangerous person in one frame (alarm_events).
type AlarmEvent struct {
	ID            int64          `json:"id"`
	Timestamp     float64        `json:"timestamp"`
	FormattedTime string         `json:"formatted_time"`
	PersonID      int            `json:"dangerous_person_id"`
	Emotion       string         `json:"dangerous_person_emotion"`
	Speed         float64        `json:"dangerous_person_speed"`
	Nearby        []NearbyPerson `json:"nearby_persons"`
	Reason        string         `json:"alarm_reason"`
	Level         int            `json:"danger_level"`
	AnalysisDate  time.Time      `json:"analysis_date"`
}

// marshalList encodes xs as a JSON array, never null.
func marshalList[T any](xs []T) (string, error) {
	if xs == nil {
		xs = []T{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// dateLayout keeps a fixed fraction width so stored dates sort as text.
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatDate(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
