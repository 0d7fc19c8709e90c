// Package danger scores a tracked person's behaviour on a 0-10 scale from
// their emotion, speed and apparent size.
package danger

import (
	"image/color"
	"strings"
)

// AlarmThreshold is the level at which a person is considered dangerous.
// Every consumer decides "dangerous" through Assessment.Dangerous.
const AlarmThreshold = 5

// MaxLevel caps the summed score.
const MaxLevel = 10

// NormalReason is reported when no factor fires.
const NormalReason = "Normal"

// Status classifies a person within a frame.
type Status string

const (
	StatusNormal    Status = "normal"
	StatusAtRisk    Status = "at_risk"
	StatusDangerous Status = "dangerous"
)

// Assessment is the outcome of scoring one person.
type Assessment struct {
	Dangerous bool
	Level     int
	Reason    string
	Reasons   []string
}

type rule struct {
	points int
	phrase string
}

// Score applies the scoring table. Speed is in size-normalised px/s, area in
// px². Emotion matching is case-insensitive.
func Score(emotion string, speed float64, bboxArea int) Assessment {
	var fired []rule
	emotion = strings.ToLower(emotion)

	switch emotion {
	case "fear":
		fired = append(fired, rule{4, "Fear detected"})
	case "angry":
		fired = append(fired, rule{3, "Anger detected"})
	case "sad":
		fired = append(fired, rule{2, "Sadness detected"})
	}

	switch {
	case speed > 100:
		fired = append(fired, rule{3, "Very high speed"})
	case speed > 60:
		fired = append(fired, rule{2, "High speed"})
	case speed > 30:
		fired = append(fired, rule{1, "Medium speed"})
	}

	switch {
	case bboxArea > 8000:
		fired = append(fired, rule{2, "Very close"})
	case bboxArea > 5000:
		fired = append(fired, rule{1, "Close"})
	}

	if emotion == "fear" && speed > 60 {
		fired = append(fired, rule{1, "CRITICAL: Fear + High speed"})
	}

	level := 0
	reasons := make([]string, 0, len(fired))
	for _, r := range fired {
		level += r.points
		reasons = append(reasons, r.phrase)
	}
	if level > MaxLevel {
		level = MaxLevel
	}

	reason := NormalReason
	if len(reasons) > 0 {
		reason = strings.Join(reasons, " | ")
	}
	return Assessment{
		Dangerous: level >= AlarmThreshold,
		Level:     level,
		Reason:    reason,
		Reasons:   reasons,
	}
}

// DistanceCategory buckets a bounding-box area into a coarse camera distance.
func DistanceCategory(bboxArea int) string {
	switch {
	case bboxArea > 8000:
		return "Very Close"
	case bboxArea > 5000:
		return "Close"
	case bboxArea > 2500:
		return "Medium"
	case bboxArea > 1200:
		return "Far"
	default:
		return "Very Far"
	}
}

// Overlay colours.
var (
	Red    = color.RGBA{R: 255, A: 255}
	Orange = color.RGBA{R: 255, G: 165, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, A: 255}
	Green  = color.RGBA{G: 255, A: 255}
)

// LevelColor maps a danger level to its overlay colour.
func LevelColor(level int) color.RGBA {
	switch {
	case level >= 8:
		return Red
	case level >= 6:
		return Orange
	case level >= 4:
		return Yellow
	default:
		return Green
	}
}
