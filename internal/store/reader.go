package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/securityvision/analyzer/internal/danger"
)

// CriticalLevel is the alarm level reported as a critical moment.
const CriticalLevel = 7

// Reader is the read-only query surface used for reporting.
type Reader interface {
	Summary(ctx context.Context) (Summary, error)
	AlarmsByTime(ctx context.Context) ([]AlarmEvent, error)
	CriticalMoments(ctx context.Context, minLevel int) ([]AlarmEvent, error)
	EmotionStats(ctx context.Context) ([]EmotionStat, error)
	Bursts(ctx context.Context) ([]Burst, error)
	DangerTimeline(ctx context.Context) ([]TimelinePoint, error)
}

var _ Reader = (*Store)(nil)

// Summary holds the store-wide totals.
type Summary struct {
	TotalFrames         int     `json:"total_frames"`
	TotalPersons        int     `json:"total_persons"`
	TotalAlarms         int     `json:"total_alarms"`
	DangerousDetections int     `json:"dangerous_detections"`
	AtRiskDetections    int     `json:"at_risk_detections"`
	AverageDangerLevel  float64 `json:"average_danger_level"` // over non-zero levels
	SessionStart        float64 `json:"session_start"`
	SessionEnd          float64 `json:"session_end"`
	SessionDuration     float64 `json:"session_duration"`
}

// EmotionStat aggregates person rows by emotion.
type EmotionStat struct {
	Emotion        string  `json:"emotion"`
	Count          int     `json:"count"`
	AvgSpeed       float64 `json:"avg_speed"`
	AvgDangerLevel float64 `json:"avg_danger_level"`
	AlarmCount     int     `json:"alarm_count"`
}

// Burst is a whole second of media time with more than one alarm.
type Burst struct {
	Second   int `json:"second"`
	Count    int `json:"count"`
	MaxLevel int `json:"max_level"`
}

// TimelinePoint is the peak danger level of one second of media time.
type TimelinePoint struct {
	Second   int `json:"second"`
	MaxLevel int `json:"max_level"`
	Persons  int `json:"persons"`
}

// Summary computes the store-wide totals.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	var avg, start, end sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM video_analysis),
			(SELECT COUNT(*) FROM person_details),
			(SELECT COUNT(*) FROM alarm_events),
			(SELECT COUNT(*) FROM person_details WHERE danger_status = 'dangerous'),
			(SELECT COUNT(*) FROM person_details WHERE danger_status = 'at_risk'),
			(SELECT AVG(danger_level) FROM person_details WHERE danger_level > 0),
			(SELECT MIN(timestamp) FROM video_analysis),
			(SELECT MAX(timestamp) FROM video_analysis)`,
	).Scan(&sum.TotalFrames, &sum.TotalPersons, &sum.TotalAlarms,
		&sum.DangerousDetections, &sum.AtRiskDetections, &avg, &start, &end)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to query summary: %w", err)
	}

	sum.AverageDangerLevel = avg.Float64
	sum.SessionStart = start.Float64
	sum.SessionEnd = end.Float64
	sum.SessionDuration = end.Float64 - start.Float64
	return sum, nil
}

const alarmColumns = `id, timestamp, formatted_time, dangerous_person_id, dangerous_person_emotion,
	dangerous_person_speed, nearby_persons, alarm_reason, danger_level, analysis_date`

func scanAlarms(rows *sql.Rows) ([]AlarmEvent, error) {
	defer rows.Close()
	var out []AlarmEvent
	for rows.Next() {
		var ev AlarmEvent
		var nearby, date string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.FormattedTime, &ev.PersonID, &ev.Emotion,
			&ev.Speed, &nearby, &ev.Reason, &ev.Level, &date); err != nil {
			return nil, fmt.Errorf("failed to scan alarm: %w", err)
		}
		if err := json.Unmarshal([]byte(nearby), &ev.Nearby); err != nil {
			return nil, fmt.Errorf("alarm %d has invalid nearby_persons: %w", ev.ID, err)
		}
		ev.AnalysisDate = parseDate(date)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// AlarmsByTime returns every alarm ordered by media time.
func (s *Store) AlarmsByTime(ctx context.Context) ([]AlarmEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alarmColumns+` FROM alarm_events ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	return scanAlarms(rows)
}

// CriticalMoments returns alarms at or above minLevel, highest level first
// and then by media time.
func (s *Store) CriticalMoments(ctx context.Context, minLevel int) ([]AlarmEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alarmColumns+` FROM alarm_events WHERE danger_level >= ?
		 ORDER BY danger_level DESC, timestamp, id`, minLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to query critical moments: %w", err)
	}
	return scanAlarms(rows)
}

// AlarmNearby reads the normalised nearby rows of one alarm.
func (s *Store) AlarmNearby(ctx context.Context, alarmID int64) ([]NearbyPerson, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id, distance FROM alarm_nearby_persons WHERE alarm_id = ? ORDER BY rowid`, alarmID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby persons: %w", err)
	}
	defer rows.Close()

	var out []NearbyPerson
	for rows.Next() {
		var n NearbyPerson
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan nearby person: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// EmotionStats aggregates person rows by emotion, most frequent first.
func (s *Store) EmotionStats(ctx context.Context) ([]EmotionStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT emotion, COUNT(*), AVG(speed), AVG(danger_level), SUM(alarm_triggered)
		FROM person_details
		GROUP BY emotion
		ORDER BY COUNT(*) DESC, emotion`)
	if err != nil {
		return nil, fmt.Errorf("failed to query emotion stats: %w", err)
	}
	defer rows.Close()

	var out []EmotionStat
	for rows.Next() {
		var st EmotionStat
		if err := rows.Scan(&st.Emotion, &st.Count, &st.AvgSpeed, &st.AvgDangerLevel, &st.AlarmCount); err != nil {
			return nil, fmt.Errorf("failed to scan emotion stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Bursts groups alarms by whole second and keeps seconds with more than one.
func (s *Store) Bursts(ctx context.Context) ([]Burst, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(timestamp AS INTEGER) AS second, COUNT(*), MAX(danger_level)
		FROM alarm_events
		GROUP BY second
		HAVING COUNT(*) > 1
		ORDER BY second`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bursts: %w", err)
	}
	defer rows.Close()

	var out []Burst
	for rows.Next() {
		var b Burst
		if err := rows.Scan(&b.Second, &b.Count, &b.MaxLevel); err != nil {
			return nil, fmt.Errorf("failed to scan burst: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DangerTimeline returns the peak person danger level per second.
func (s *Store) DangerTimeline(ctx context.Context) ([]TimelinePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(timestamp AS INTEGER) AS second, MAX(danger_level), COUNT(*)
		FROM person_details
		GROUP BY second
		ORDER BY second`)
	if err != nil {
		return nil, fmt.Errorf("failed to query danger timeline: %w", err)
	}
	defer rows.Close()

	var out []TimelinePoint
	for rows.Next() {
		var p TimelinePoint
		if err := rows.Scan(&p.Second, &p.MaxLevel, &p.Persons); err != nil {
			return nil, fmt.Errorf("failed to scan timeline point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Frames returns every frame row in media-time order, without person rows.
func (s *Store) Frames(ctx context.Context) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, formatted_time, person_count, genders, emotions, speeds, angles,
			face_ids, distances, analysis_date, alarm_triggered, alarm_reason
		FROM video_analysis ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRecord
	for rows.Next() {
		var r FrameRecord
		var genders, emotions, speeds, angles, ids, dists, date string
		var alarm int
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.FormattedTime, &r.PersonCount,
			&genders, &emotions, &speeds, &angles, &ids, &dists, &date, &alarm, &r.AlarmReason); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		for _, col := range []struct {
			raw string
			dst interface{}
		}{
			{genders, &r.Genders},
			{emotions, &r.Emotions},
			{speeds, &r.Speeds},
			{angles, &r.Angles},
			{ids, &r.Identities},
			{dists, &r.Distances},
		} {
			if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
				return nil, fmt.Errorf("frame %d has an invalid array column: %w", r.ID, err)
			}
		}
		r.AnalysisDate = parseDate(date)
		r.AlarmTriggered = alarm != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Persons returns every person row in media-time order.
func (s *Store) Persons(ctx context.Context) ([]PersonDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT face_id, gender, emotion, speed, angle, bbox_area, distance_category,
			x, y, width, height, danger_status, danger_level, alarm_triggered
		FROM person_details ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query persons: %w", err)
	}
	defer rows.Close()

	var out []PersonDetail
	for rows.Next() {
		var p PersonDetail
		var status string
		var alarm int
		if err := rows.Scan(&p.Identity, &p.Gender, &p.Emotion, &p.Speed, &p.Angle, &p.BBoxArea,
			&p.DistanceCategory, &p.X, &p.Y, &p.Width, &p.Height, &status, &p.DangerLevel, &alarm); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		p.Status = danger.Status(status)
		p.AlarmTriggered = alarm != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// Pairs returns every distance row in media-time order.
func (s *Store) Pairs(ctx context.Context) ([]DistancePair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person1_id, person2_id, distance, is_close
		FROM person_distances ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query distances: %w", err)
	}
	defer rows.Close()

	var out []DistancePair
	for rows.Next() {
		var d DistancePair
		var isClose int
		if err := rows.Scan(&d.PersonI, &d.PersonJ, &d.Distance, &isClose); err != nil {
			return nil, fmt.Errorf("failed to scan distance: %w", err)
		}
		d.Close = isClose != 0
		out = append(out, d)
	}
	return out, rows.Err()
}
