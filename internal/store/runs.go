package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// ErrRunNotFound is returned when no analysis_runs row matches.
var ErrRunNotFound = errors.New("analysis run not found")

// Run is one analysis of one video into this store.
type Run struct {
	RunID           string          `json:"run_id"`
	CreatedAt       time.Time       `json:"created_at"`
	SourcePath      string          `json:"source_path"`
	Params          json.RawMessage `json:"params"`
	Status          string          `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	DurationSecs    float64         `json:"duration_secs"`
	TotalFrames     int             `json:"total_frames"`
	ProcessedFrames int             `json:"processed_frames"`
	TotalAlarms     int             `json:"total_alarms"`
	MaxDangerLevel  int             `json:"max_danger_level"`
}

// RunStats are the counters recorded when a run finishes.
type RunStats struct {
	TotalFrames     int
	ProcessedFrames int
	TotalAlarms     int
	MaxDangerLevel  int
	Duration        time.Duration
}

// StartRun inserts a running analysis_runs row and returns its ID.
// params is stored as JSON.
func (s *Store) StartRun(ctx context.Context, sourcePath string, params interface{}) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode run params: %w", err)
	}
	runID := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (run_id, created_at, source_path, params_json, status)
		VALUES (?, ?, ?, ?, ?)`,
		runID, formatDate(time.Now()), sourcePath, string(paramsJSON), RunRunning,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// FinishRun records the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, runID, status, errMsg string, stats RunStats) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status = ?, error_message = ?, completed_at = ?, duration_secs = ?,
			total_frames = ?, processed_frames = ?, total_alarms = ?, max_danger_level = ?
		WHERE run_id = ?`,
		status, errMsg, formatDate(time.Now()), stats.Duration.Seconds(),
		stats.TotalFrames, stats.ProcessedFrames, stats.TotalAlarms, stats.MaxDangerLevel,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `run_id, created_at, source_path, params_json, status, error_message, completed_at,
	duration_secs, total_frames, processed_frames, total_alarms, max_danger_level`

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var created, params string
	var completed sql.NullString
	err := row.Scan(&r.RunID, &created, &r.SourcePath, &params, &r.Status, &r.ErrorMessage, &completed,
		&r.DurationSecs, &r.TotalFrames, &r.ProcessedFrames, &r.TotalAlarms, &r.MaxDangerLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	r.CreatedAt = parseDate(created)
	r.Params = json.RawMessage(params)
	if completed.Valid {
		t := parseDate(completed.String)
		r.CompletedAt = &t
	}
	return &r, nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	return scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID))
}

// LatestRun loads the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	return scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM analysis_runs ORDER BY rowid DESC LIMIT 1`))
}
