package store

import (
	"context"
	"fmt"
)

// InsertFrame writes the frame row, its person rows and its pair rows in one
// transaction and sets r.ID.
func (s *Store) InsertFrame(ctx context.Context, r *FrameRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}

	cols, err := encodeArrays(r)
	if err != nil {
		return fmt.Errorf("failed to encode frame arrays: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO video_analysis
		(timestamp, formatted_time, person_count, genders, emotions, speeds, angles, face_ids, distances, analysis_date, alarm_triggered, alarm_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp, r.FormattedTime, r.PersonCount,
		cols[0], cols[1], cols[2], cols[3], cols[4], cols[5],
		formatDate(r.AnalysisDate), boolInt(r.AlarmTriggered), r.AlarmReason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read frame id: %w", err)
	}

	for _, p := range r.Persons {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO person_details
			(timestamp, face_id, gender, emotion, speed, angle, bbox_area, distance_category, x, y, width, height, danger_status, danger_level, alarm_triggered)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Timestamp, p.Identity, p.Gender, p.Emotion, p.Speed, p.Angle,
			p.BBoxArea, p.DistanceCategory, p.X, p.Y, p.Width, p.Height,
			string(p.Status), p.DangerLevel, boolInt(p.AlarmTriggered),
		)
		if err != nil {
			return fmt.Errorf("failed to insert person %d: %w", p.Identity, err)
		}
	}

	for _, d := range r.Pairs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO person_distances (timestamp, person1_id, person2_id, distance, is_close)
			VALUES (?, ?, ?, ?, ?)`,
			r.Timestamp, d.PersonI, d.PersonJ, d.Distance, boolInt(d.Close),
		)
		if err != nil {
			return fmt.Errorf("failed to insert distance %d-%d: %w", d.PersonI, d.PersonJ, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame: %w", err)
	}
	r.ID = id
	return nil
}

func encodeArrays(r *FrameRecord) ([6]string, error) {
	var out [6]string
	var err error
	if out[0], err = marshalList(r.Genders); err != nil {
		return out, err
	}
	if out[1], err = marshalList(r.Emotions); err != nil {
		return out, err
	}
	if out[2], err = marshalList(r.Speeds); err != nil {
		return out, err
	}
	if out[3], err = marshalList(r.Angles); err != nil {
		return out, err
	}
	if out[4], err = marshalList(r.Identities); err != nil {
		return out, err
	}
	out[5], err = marshalList(r.Distances)
	return out, err
}

// InsertAlarm writes an alarm and its normalised nearby rows and sets ev.ID.
func (s *Store) InsertAlarm(ctx context.Context, ev *AlarmEvent) error {
	nearby, err := marshalList(ev.Nearby)
	if err != nil {
		return fmt.Errorf("failed to encode nearby persons: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO alarm_events
		(timestamp, formatted_time, dangerous_person_id, dangerous_person_emotion, dangerous_person_speed,
		 nearby_persons, alarm_reason, danger_level, analysis_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp, ev.FormattedTime, ev.PersonID, ev.Emotion, ev.Speed,
		nearby, ev.Reason, ev.Level, formatDate(ev.AnalysisDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alarm: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read alarm id: %w", err)
	}

	for _, n := range ev.Nearby {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alarm_nearby_persons (alarm_id, person_id, distance) VALUES (?, ?, ?)`,
			id, n.ID, n.Distance,
		); err != nil {
			return fmt.Errorf("failed to insert nearby person %d: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alarm: %w", err)
	}
	ev.ID = id
	return nil
}
