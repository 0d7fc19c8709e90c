package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securityvision/analyzer/internal/danger"
)

func TestInsertFrame_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	rec := twoPersonFrame(1.5)
	require.NoError(t, s.InsertFrame(ctx, rec))
	assert.NotZero(t, rec.ID)

	frames, err := s.Frames(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	got := frames[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 2, got.PersonCount)
	assert.True(t, got.AlarmTriggered)
	assert.Equal(t, rec.AlarmReason, got.AlarmReason)
	assert.True(t, got.AnalysisDate.Equal(testDate))
	if diff := cmp.Diff(rec.Distances, got.Distances); diff != "" {
		t.Errorf("distances mismatch (-want +got):\n%s", diff)
	}
	for _, l := range []int{len(got.Genders), len(got.Emotions), len(got.Speeds), len(got.Angles), len(got.Identities)} {
		assert.Equal(t, got.PersonCount, l)
	}

	persons, err := s.Persons(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(rec.Persons, persons); diff != "" {
		t.Errorf("persons mismatch (-want +got):\n%s", diff)
	}

	pairs, err := s.Pairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.Pairs, pairs)
}

func TestInsertFrame_JSONColumns(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.InsertFrame(context.Background(), twoPersonFrame(3)))

	var distances, ids string
	require.NoError(t, s.DB().QueryRow(`SELECT distances, face_ids FROM video_analysis`).Scan(&distances, &ids))
	assert.JSONEq(t, `[[0,1,100]]`, distances)
	assert.JSONEq(t, `[1,2]`, ids)
}

func TestInsertFrame_EmptyArraysAreNotNull(t *testing.T) {
	s := setupStore(t)
	rec := &FrameRecord{Timestamp: 0, FormattedTime: "00:00.00"}
	require.NoError(t, s.InsertFrame(context.Background(), rec))

	var genders, distances string
	require.NoError(t, s.DB().QueryRow(`SELECT genders, distances FROM video_analysis`).Scan(&genders, &distances))
	assert.Equal(t, "[]", genders)
	assert.Equal(t, "[]", distances)
}

func TestInsertFrame_RejectsInconsistentRecords(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	cases := map[string]func(r *FrameRecord){
		"short emotions":     func(r *FrameRecord) { r.Emotions = r.Emotions[:1] },
		"extra speed":        func(r *FrameRecord) { r.Speeds = append(r.Speeds, 1) },
		"missing person":     func(r *FrameRecord) { r.Persons = r.Persons[:1] },
		"unknown identity":   func(r *FrameRecord) { r.Persons[1].Identity = 99 },
		"level out of range": func(r *FrameRecord) { r.Persons[0].DangerLevel = 11 },
		"bad distance index": func(r *FrameRecord) { r.Distances[0].J = 2 },
		"negative count":     func(r *FrameRecord) { r.PersonCount = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := twoPersonFrame(1)
			mutate(rec)
			err := s.InsertFrame(ctx, rec)
			assert.True(t, errors.Is(err, ErrInconsistentFrame), "got %v", err)
		})
	}

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalFrames)
}

func TestInsertAlarm(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	ev := &AlarmEvent{
		Timestamp:     4.5,
		FormattedTime: "00:04.50",
		PersonID:      3,
		Emotion:       "angry",
		Speed:         88.25,
		Nearby:        []NearbyPerson{{ID: 4, Distance: 120.5}, {ID: 5, Distance: 180}},
		Reason:        "Anger detected | High speed",
		Level:         5,
		AnalysisDate:  testDate,
	}
	require.NoError(t, s.InsertAlarm(ctx, ev))
	assert.NotZero(t, ev.ID)

	var nearby string
	require.NoError(t, s.DB().QueryRow(`SELECT nearby_persons FROM alarm_events WHERE id = ?`, ev.ID).Scan(&nearby))
	assert.JSONEq(t, `[{"id":4,"distance":120.5},{"id":5,"distance":180}]`, nearby)

	rows, err := s.AlarmNearby(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Nearby, rows)

	alarms, err := s.AlarmsByTime(ctx)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.Equal(t, ev.Nearby, alarms[0].Nearby)
	assert.Equal(t, "angry", alarms[0].Emotion)
	assert.True(t, alarms[0].AnalysisDate.Equal(testDate))
}

func TestInsertAlarm_NoNearby(t *testing.T) {
	s := setupStore(t)
	ev := &AlarmEvent{Timestamp: 1, FormattedTime: "00:01.00", PersonID: 1, Reason: "Fear detected | Very high speed", Level: 7}
	require.NoError(t, s.InsertAlarm(context.Background(), ev))

	var nearby string
	require.NoError(t, s.DB().QueryRow(`SELECT nearby_persons FROM alarm_events`).Scan(&nearby))
	assert.Equal(t, "[]", nearby)
}

func TestDistanceEntryJSON(t *testing.T) {
	b, err := json.Marshal([]DistanceEntry{{I: 0, J: 2, Distance: 12.5}})
	require.NoError(t, err)
	assert.Equal(t, `[[0,2,12.5]]`, string(b))

	var back []DistanceEntry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []DistanceEntry{{I: 0, J: 2, Distance: 12.5}}, back)

	var bad DistanceEntry
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &bad))
}

func TestPersonStatusValues(t *testing.T) {
	s := setupStore(t)
	rec := twoPersonFrame(1)
	rec.Persons[1].Status = danger.Status("unknown")
	err := s.InsertFrame(context.Background(), rec)
	assert.Error(t, err, "CHECK constraint should reject unknown statuses")
}
