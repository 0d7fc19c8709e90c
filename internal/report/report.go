// Package report turns a run database into a summary document and renders it
// as JSON, a spreadsheet, a PNG timeline or an HTML chart page.
package report

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/securityvision/analyzer/internal/danger"
	"github.com/securityvision/analyzer/internal/store"
)

// SpeedStats summarises the speed of the people that raised alarms.
type SpeedStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// Report is everything known about one analysed video.
type Report struct {
	Summary         store.Summary         `json:"summary"`
	Alarms          []store.AlarmEvent    `json:"alarms"`
	CriticalMoments []store.AlarmEvent    `json:"critical_moments"`
	EmotionStats    []store.EmotionStat   `json:"emotion_stats"`
	Bursts          []store.Burst         `json:"bursts"`
	Timeline        []store.TimelinePoint `json:"timeline"`
	AlarmSpeed      SpeedStats            `json:"alarm_speed"`
	// LevelCounts[l] is the number of alarms raised at danger level l.
	LevelCounts []int `json:"level_counts"`
}

// Build runs every reporting query against r.
func Build(ctx context.Context, r store.Reader) (*Report, error) {
	sum, err := r.Summary(ctx)
	if err != nil {
		return nil, err
	}
	alarms, err := r.AlarmsByTime(ctx)
	if err != nil {
		return nil, err
	}
	critical, err := r.CriticalMoments(ctx, store.CriticalLevel)
	if err != nil {
		return nil, err
	}
	emotions, err := r.EmotionStats(ctx)
	if err != nil {
		return nil, err
	}
	bursts, err := r.Bursts(ctx)
	if err != nil {
		return nil, err
	}
	timeline, err := r.DangerTimeline(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Summary:         sum,
		Alarms:          nonNil(alarms),
		CriticalMoments: nonNil(critical),
		EmotionStats:    nonNil(emotions),
		Bursts:          nonNil(bursts),
		Timeline:        nonNil(timeline),
		AlarmSpeed:      speedStats(alarms),
		LevelCounts:     make([]int, danger.MaxLevel+1),
	}
	for _, a := range alarms {
		if a.Level < 0 || a.Level > danger.MaxLevel {
			return nil, fmt.Errorf("alarm %d has danger level %d out of range", a.ID, a.Level)
		}
		rep.LevelCounts[a.Level]++
	}
	return rep, nil
}

func speedStats(alarms []store.AlarmEvent) SpeedStats {
	if len(alarms) == 0 {
		return SpeedStats{}
	}
	speeds := make([]float64, len(alarms))
	for i, a := range alarms {
		speeds[i] = a.Speed
	}
	sort.Float64s(speeds)

	s := SpeedStats{
		Count: len(speeds),
		P95:   stat.Quantile(0.95, stat.Empirical, speeds, nil),
		Max:   speeds[len(speeds)-1],
	}
	if len(speeds) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(speeds, nil)
	} else {
		s.Mean = speeds[0]
	}
	return s
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
