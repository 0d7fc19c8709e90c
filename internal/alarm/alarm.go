// Package alarm turns the scored people of one frame into alarm events: it
// decides who is dangerous and who is at risk, persists one event per
// dangerous person and fans the events out to notifiers.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/securityvision/analyzer/internal/danger"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/proximity"
	"github.com/securityvision/analyzer/internal/store"
)

// Person is one tracked person of a frame after kinematics.
type Person struct {
	Identity int
	Emotion  string
	Speed    float64
	Area     int
	Center   image.Point
}

// FrameInfo identifies the frame being evaluated.
type FrameInfo struct {
	Timestamp     float64
	FormattedTime string
	AnalysisDate  time.Time
}

// DangerousPerson is a person at or above the alarm threshold together with
// the people near them.
type DangerousPerson struct {
	Index    int
	Identity int
	Emotion  string
	Speed    float64
	Nearby   []proximity.Neighbor
	Reason   string
	Level    int
}

// Outcome is the frame-level result of Evaluate. Assessments and Statuses
// are parallel to the people passed in.
type Outcome struct {
	Assessments []danger.Assessment
	Statuses    []danger.Status
	Dangerous   []DangerousPerson

	Active bool
	Reason string
	Level  int

	// Written counts alarm events persisted successfully.
	Written int
}

// Representative returns the first dangerous person, which carries the
// frame-level identity and nearby list.
func (o Outcome) Representative() (DangerousPerson, bool) {
	if len(o.Dangerous) == 0 {
		return DangerousPerson{}, false
	}
	return o.Dangerous[0], true
}

// Writer persists alarm events.
type Writer interface {
	InsertAlarm(ctx context.Context, ev *store.AlarmEvent) error
}

// Event is the payload published for each dangerous person.
type Event struct {
	Source        string               `json:"source,omitempty"`
	Timestamp     float64              `json:"timestamp"`
	FormattedTime string               `json:"formatted_time"`
	PersonID      int                  `json:"person_id"`
	Emotion       string               `json:"emotion"`
	Speed         float64              `json:"speed"`
	Nearby        []store.NearbyPerson `json:"nearby_persons"`
	Reason        string               `json:"alarm_reason"`
	Level         int                  `json:"danger_level"`
	AnalysisDate  time.Time            `json:"analysis_date"`
}

// Notifier publishes alarm events outside the process.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls fn.
func (fn NotifierFunc) Notify(ctx context.Context, ev Event) error { return fn(ctx, ev) }

// MultiNotifier publishes to every notifier and joins their errors.
type MultiNotifier []Notifier

// Notify implements Notifier.
func (m MultiNotifier) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Coordinator evaluates frames for one analysis run.
type Coordinator struct {
	writer   Writer
	notifier Notifier
	radius   float64
	source   string
}

// NewCoordinator returns a Coordinator. writer and notifier may be nil.
// A non-positive radius uses proximity.DefaultNearbyRadius.
func NewCoordinator(writer Writer, notifier Notifier, radius float64) *Coordinator {
	if radius <= 0 {
		radius = proximity.DefaultNearbyRadius
	}
	return &Coordinator{writer: writer, notifier: notifier, radius: radius}
}

// WithSource tags published events with the analysed video.
func (c *Coordinator) WithSource(source string) *Coordinator {
	c.source = source
	return c
}

// Evaluate scores people, persists and publishes one alarm per dangerous
// person, and returns the frame outcome. Write and publish failures are
// logged and do not fail the frame.
func (c *Coordinator) Evaluate(ctx context.Context, info FrameInfo, people []Person) Outcome {
	out := Outcome{
		Assessments: make([]danger.Assessment, len(people)),
		Statuses:    make([]danger.Status, len(people)),
	}

	located := make([]proximity.Person, len(people))
	for i, p := range people {
		out.Assessments[i] = danger.Score(p.Emotion, p.Speed, p.Area)
		out.Statuses[i] = danger.StatusNormal
		located[i] = proximity.Person{Identity: p.Identity, Center: p.Center}
	}
	frame := proximity.NewFrame(located)

	for i, p := range people {
		a := out.Assessments[i]
		if !a.Dangerous {
			continue
		}
		out.Dangerous = append(out.Dangerous, DangerousPerson{
			Index:    i,
			Identity: p.Identity,
			Emotion:  p.Emotion,
			Speed:    p.Speed,
			Nearby:   frame.Nearby(i, c.radius),
			Reason:   a.Reason,
			Level:    a.Level,
		})
	}

	for _, d := range out.Dangerous {
		for _, n := range d.Nearby {
			if out.Statuses[n.Index] == danger.StatusNormal {
				out.Statuses[n.Index] = danger.StatusAtRisk
			}
		}
	}
	for _, d := range out.Dangerous {
		out.Statuses[d.Index] = danger.StatusDangerous
		if d.Level > out.Level {
			out.Level = d.Level
		}
	}

	if len(out.Dangerous) == 0 {
		return out
	}
	out.Active = true
	out.Reason = fmt.Sprintf("%d person(s) in dangerous state", len(out.Dangerous))

	for _, d := range out.Dangerous {
		ev := c.event(info, d)
		if c.writer != nil {
			rec := ev.record()
			if err := c.writer.InsertAlarm(ctx, rec); err != nil {
				monitoring.Warnf("[Alarm] failed to save alarm for person %d at %s: %v", d.Identity, info.FormattedTime, err)
			} else {
				out.Written++
			}
		}
		if c.notifier != nil {
			if err := c.notifier.Notify(ctx, ev); err != nil {
				monitoring.Warnf("[Alarm] failed to publish alarm for person %d: %v", d.Identity, err)
			}
		}
		monitoring.Logf("[Alarm] %s person %d level %d/10: %s", info.FormattedTime, d.Identity, d.Level, d.Reason)
	}
	return out
}

func (c *Coordinator) event(info FrameInfo, d DangerousPerson) Event {
	return Event{
		Source:        c.source,
		Timestamp:     info.Timestamp,
		FormattedTime: info.FormattedTime,
		PersonID:      d.Identity,
		Emotion:       d.Emotion,
		Speed:         d.Speed,
		Nearby:        NearbyPersons(d.Nearby),
		Reason:        d.Reason,
		Level:         d.Level,
		AnalysisDate:  info.AnalysisDate,
	}
}

func (ev Event) record() *store.AlarmEvent {
	return &store.AlarmEvent{
		Timestamp:     ev.Timestamp,
		FormattedTime: ev.FormattedTime,
		PersonID:      ev.PersonID,
		Emotion:       ev.Emotion,
		Speed:         ev.Speed,
		Nearby:        ev.Nearby,
		Reason:        ev.Reason,
		Level:         ev.Level,
		AnalysisDate:  ev.AnalysisDate,
	}
}

// NearbyPersons converts neighbours to their persisted form.
func NearbyPersons(ns []proximity.Neighbor) []store.NearbyPerson {
	out := make([]store.NearbyPerson, len(ns))
	for i, n := range ns {
		out[i] = store.NearbyPerson{ID: n.Identity, Distance: n.Distance}
	}
	return out
}
