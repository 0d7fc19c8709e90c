package pipeline

import (
	"context"
	"fmt"

	"github.com/securityvision/analyzer/internal/alarm"
	"github.com/securityvision/analyzer/internal/danger"
	"github.com/securityvision/analyzer/internal/detect"
	"github.com/securityvision/analyzer/internal/kinematics"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/proximity"
	"github.com/securityvision/analyzer/internal/store"
	"github.com/securityvision/analyzer/internal/timeutil"
	"github.com/securityvision/analyzer/internal/tracking"
	"github.com/securityvision/analyzer/internal/video"
)

const progressLogEvery = 20

// frameState is everything computed for one sampled frame with people.
type frameState struct {
	timestamp  float64
	formatted  string
	detections []detect.Detection
	identities []int
	motions    []kinematics.Motion
	pairs      []proximity.Pair
	outcome    alarm.Outcome
}

// processSampled analyses one sampled frame. Failures are drawn on the frame
// and logged; they never stop the run.
func (r *run) processSampled(ctx context.Context, frame video.Frame, number int) {
	timestamp := float64(number) / r.fps
	formatted := timeutil.FormatMediaTime(timestamp)

	if err := r.analyzeFrame(ctx, frame, timestamp, formatted); err != nil {
		monitoring.Warnf("[Pipeline] Frame %d error: %v", number, err)
		drawHeader(frame, formatted+" -> ERROR", danger.Red)
	}
}

func (r *run) analyzeFrame(ctx context.Context, frame video.Frame, timestamp float64, formatted string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	detections, err := r.detector.Detect(ctx, frame)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	if len(detections) == 0 {
		drawHeader(frame, formatted+" -> No person detected", danger.Yellow)
		return nil
	}

	f := &frameState{
		timestamp:  timestamp,
		formatted:  formatted,
		detections: detections,
		motions:    make([]kinematics.Motion, len(detections)),
	}

	points := make([]tracking.Point, len(detections))
	for i, d := range detections {
		points[i] = tracking.PointOf(d.Center())
	}
	f.identities = tracking.MatchIdentities(points, r.tracker.Update(points))

	people := make([]alarm.Person, len(detections))
	located := make([]proximity.Person, len(detections))
	for i, d := range detections {
		center := d.Center()
		f.motions[i] = r.motion.Update(f.identities[i], center, d.Area(), timestamp)
		people[i] = alarm.Person{
			Identity: f.identities[i],
			Emotion:  d.Emotion,
			Speed:    f.motions[i].Speed,
			Area:     d.Area(),
			Center:   center,
		}
		located[i] = proximity.Person{Identity: f.identities[i], Center: center}
	}

	f.outcome = r.alarms.Evaluate(ctx, alarm.FrameInfo{
		Timestamp:     timestamp,
		FormattedTime: formatted,
		AnalysisDate:  r.clock.Now(),
	}, people)
	f.pairs = proximity.NewFrame(located).
		WithCloseDistance(r.settings.GetCloseDistancePx()).
		PairwiseDistances()

	for _, a := range f.outcome.Assessments {
		if a.Level > r.stats.MaxDangerLevel {
			r.stats.MaxDangerLevel = a.Level
		}
	}
	r.stats.TotalAlarms += len(f.outcome.Dangerous)

	r.drawOutcome(frame, f)

	rec := f.record(r.clock)
	if err := r.sink.InsertFrame(ctx, rec); err != nil {
		monitoring.Warnf("[Pipeline] Failed to save frame at %s: %v", formatted, err)
	}

	r.stats.ProcessedFrames++
	if rep, ok := f.outcome.Representative(); ok {
		monitoring.Logf("[Pipeline] %s alarm: %s, level %d/10, first dangerous person %d with %d nearby",
			formatted, f.outcome.Reason, f.outcome.Level, rep.Identity, len(rep.Nearby))
	}
	if r.stats.ProcessedFrames%progressLogEvery == 0 {
		monitoring.Logf("[Pipeline] Processed frames: %d, Persons: %d, Time: %s",
			r.stats.ProcessedFrames, len(detections), formatted)
	}
	return nil
}

// record converts f into its persisted form.
func (f *frameState) record(clock timeutil.Clock) *store.FrameRecord {
	n := len(f.detections)
	rec := &store.FrameRecord{
		Timestamp:      f.timestamp,
		FormattedTime:  f.formatted,
		PersonCount:    n,
		Genders:        make([]string, n),
		Emotions:       make([]string, n),
		Speeds:         make([]float64, n),
		Angles:         make([]float64, n),
		Identities:     f.identities,
		Distances:      make([]store.DistanceEntry, 0, len(f.pairs)),
		AnalysisDate:   clock.Now(),
		AlarmTriggered: f.outcome.Active,
		AlarmReason:    f.outcome.Reason,
		Persons:        make([]store.PersonDetail, n),
		Pairs:          make([]store.DistancePair, 0, len(f.pairs)),
	}

	for i, d := range f.detections {
		a := f.outcome.Assessments[i]
		box := d.Box
		rec.Genders[i] = d.Gender
		rec.Emotions[i] = d.Emotion
		rec.Speeds[i] = f.motions[i].Speed
		rec.Angles[i] = f.motions[i].Angle
		rec.Persons[i] = store.PersonDetail{
			Identity:         f.identities[i],
			Gender:           d.Gender,
			Emotion:          d.Emotion,
			Speed:            f.motions[i].Speed,
			Angle:            f.motions[i].Angle,
			BBoxArea:         d.Area(),
			DistanceCategory: danger.DistanceCategory(d.Area()),
			X:                box.Min.X,
			Y:                box.Min.Y,
			Width:            box.Dx(),
			Height:           box.Dy(),
			Status:           f.outcome.Statuses[i],
			DangerLevel:      a.Level,
			AlarmTriggered:   a.Dangerous,
		}
	}

	for _, p := range f.pairs {
		rec.Distances = append(rec.Distances, store.DistanceEntry{I: p.I, J: p.J, Distance: p.Distance})
		rec.Pairs = append(rec.Pairs, store.DistancePair{
			PersonI:  p.IdentityI,
			PersonJ:  p.IdentityJ,
			Distance: p.Distance,
			Close:    p.Close(),
		})
	}
	return rec
}
