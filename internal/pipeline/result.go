package pipeline

import (
	"errors"
	"fmt"
)

// State is the lifecycle of an analysis.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// ErrCancelled is returned in Result.Err when the context was cancelled
// mid-run.
var ErrCancelled = errors.New("analysis cancelled")

const successMessage = "Video analysis completed successfully!"

// Stats are the run counters reported on completion.
type Stats struct {
	TotalFrames     int `json:"total_frames"`
	ProcessedFrames int `json:"processed_frames"`
	TotalAlarms     int `json:"total_alarms"`
	MaxDangerLevel  int `json:"max_danger_level"`
}

// Files are the artifacts of a completed run.
type Files struct {
	AnalyzedVideo string `json:"analyzed_video"`
	Database      string `json:"database"`
}

// Result is the outcome of Analyze.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stats   *Stats `json:"stats,omitempty"`
	Files   *Files `json:"files,omitempty"`
	Error   string `json:"error,omitempty"`

	// Err is the failure cause for errors.Is checks.
	Err error `json:"-"`
}

func failed(err error) Result {
	return Result{
		Success: false,
		Message: fmt.Sprintf("Video analysis failed: %v", err),
		Error:   err.Error(),
		Err:     err,
	}
}

func cancelled() Result {
	return Result{
		Success: false,
		Message: ErrCancelled.Error(),
		Error:   ErrCancelled.Error(),
		Err:     ErrCancelled,
	}
}

func (r Result) state() State {
	switch {
	case r.Success:
		return StateCompleted
	case errors.Is(r.Err, ErrCancelled):
		return StateCancelled
	default:
		return StateFailed
	}
}
