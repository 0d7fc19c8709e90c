// Package jobs tracks uploaded videos and their background analyses. Each
// job owns exactly one analysis goroutine, its upload and its output
// directory.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/securityvision/analyzer/internal/fsutil"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/pipeline"
	"github.com/securityvision/analyzer/internal/security"
	"github.com/securityvision/analyzer/internal/timeutil"
)

// Status is the lifecycle of a job.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Done reports whether s is terminal.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrNotFound is returned for an unknown job ID.
	ErrNotFound = errors.New("task not found")
	// ErrNotCompleted is returned when a job's results are requested early.
	ErrNotCompleted = errors.New("analysis not completed")
	// ErrUnsupportedType is returned for uploads with a disallowed extension.
	ErrUnsupportedType = errors.New("unsupported video type")
)

// AllowedExtensions are the accepted upload types, without the dot.
var AllowedExtensions = []string{"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm"}

// Allowed reports whether filename has an accepted extension.
func Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Runner analyses one video. *pipeline.Analyzer implements it.
type Runner interface {
	Analyze(ctx context.Context, videoPath, outputDir string, progress func(float64)) pipeline.Result
}

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	ID          string           `json:"task_id"`
	Status      Status           `json:"status"`
	Progress    float64          `json:"progress"`
	Message     string           `json:"message"`
	Filename    string           `json:"filename"`
	StartTime   time.Time        `json:"start_time"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Result      *pipeline.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`

	VideoPath string `json:"-"`
	OutputDir string `json:"-"`
}

type job struct {
	snap   Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

// Options configure a Registry.
type Options struct {
	UploadDir string
	OutputDir string
	// FS defaults to fsutil.OSFileSystem.
	FS fsutil.FileSystem
	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock
}

// Registry owns every job of the process.
type Registry struct {
	runner    Runner
	fs        fsutil.FileSystem
	clock     timeutil.Clock
	uploadDir string
	outputDir string

	mu   sync.RWMutex
	jobs map[string]*job
}

// NewRegistry returns an empty Registry that analyses with runner.
func NewRegistry(runner Runner, opts Options) *Registry {
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "outputs"
	}
	return &Registry{
		runner:    runner,
		fs:        opts.FS,
		clock:     opts.Clock,
		uploadDir: opts.UploadDir,
		outputDir: opts.OutputDir,
		jobs:      make(map[string]*job),
	}
}

// Submit stores the upload, creates the job's output directory and starts
// its analysis.
func (r *Registry) Submit(filename string, src io.Reader) (Snapshot, error) {
	if !Allowed(filename) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filename)
	}
	name := security.SanitizeFilename(filename)
	if name == "" {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnsupportedType, filename)
	}

	now := r.clock.Now()
	stored := now.Format("20060102_150405") + "_" + name
	videoPath := filepath.Join(r.uploadDir, stored)
	if err := r.save(videoPath, src); err != nil {
		return Snapshot{}, err
	}

	id := uuid.New().String()
	outputDir := filepath.Join(r.outputDir, id)
	if err := r.fs.MkdirAll(outputDir, 0o755); err != nil {
		r.fs.RemoveAll(videoPath)
		return Snapshot{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		snap: Snapshot{
			ID:        id,
			Status:    StatusUploaded,
			Message:   "Video uploaded successfully, starting analysis...",
			Filename:  stored,
			StartTime: now,
			VideoPath: videoPath,
			OutputDir: outputDir,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.jobs[id] = j
	snap := j.snap
	r.mu.Unlock()

	monitoring.Logf("[Jobs] Task %s accepted: %s", id, stored)
	go r.run(ctx, j)
	return snap, nil
}

func (r *Registry) save(path string, src io.Reader) error {
	if err := r.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	w, err := r.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		r.fs.RemoveAll(path)
		return fmt.Errorf("failed to save upload: %w", err)
	}
	if err := w.Close(); err != nil {
		r.fs.RemoveAll(path)
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}

// run is the job's only analysis goroutine.
func (r *Registry) run(ctx context.Context, j *job) {
	defer close(j.done)
	defer j.cancel()

	r.update(j, func(s *Snapshot) {
		s.Status = StatusProcessing
		s.Message = "Video analysis started..."
	})

	var res pipeline.Result
	func() {
		defer func() {
			if p := recover(); p != nil {
				err := fmt.Errorf("%v", p)
				res = pipeline.Result{Message: err.Error(), Error: err.Error(), Err: err}
				monitoring.Warnf("[Jobs] Background analysis error for %s: %v", j.snap.ID, p)
			}
		}()
		res = r.runner.Analyze(ctx, j.snap.VideoPath, j.snap.OutputDir, func(p float64) {
			r.update(j, func(s *Snapshot) { s.Progress = p })
		})
	}()

	finished := r.clock.Now()
	r.update(j, func(s *Snapshot) {
		s.CompletedAt = &finished
		switch {
		case res.Success:
			s.Status = StatusCompleted
			s.Progress = 100
			s.Result = &res
			s.Message = "Video analysis completed successfully!"
		case errors.Is(res.Err, pipeline.ErrCancelled):
			s.Status = StatusCancelled
			s.Message = "Analysis cancelled"
		default:
			s.Status = StatusFailed
			s.Error = res.Message
			s.Message = "Analysis failed: " + res.Message
		}
	})
	monitoring.Logf("[Jobs] Task %s finished: %s", j.snap.ID, res.Message)
}

func (r *Registry) update(j *job, fn func(*Snapshot)) {
	r.mu.Lock()
	fn(&j.snap)
	r.mu.Unlock()
}

// Get returns a snapshot of job id.
func (r *Registry) Get(id string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return j.snap, nil
}

// Result returns the analysis result of a completed job.
func (r *Registry) Result(id string) (*pipeline.Result, error) {
	snap, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if snap.Status != StatusCompleted || snap.Result == nil {
		return nil, ErrNotCompleted
	}
	return snap.Result, nil
}

// List returns every job, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.snap)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool {
		if !out[a].StartTime.Equal(out[b].StartTime) {
			return out[a].StartTime.Before(out[b].StartTime)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// Len returns the number of jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// LatestCompleted returns the most recently finished successful job.
func (r *Registry) LatestCompleted() (Snapshot, bool) {
	var best Snapshot
	found := false
	for _, s := range r.List() {
		if s.Status != StatusCompleted || s.CompletedAt == nil {
			continue
		}
		if !found || !s.CompletedAt.Before(*best.CompletedAt) {
			best, found = s, true
		}
	}
	return best, found
}

// Wait blocks until job id finishes or ctx is done.
func (r *Registry) Wait(ctx context.Context, id string) (Snapshot, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	select {
	case <-j.done:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return j.snap, nil
}

// Cleanup cancels job id if it is still running, waits for its goroutine,
// removes its upload and output directory and forgets it.
func (r *Registry) Cleanup(id string) error {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if ok {
		delete(r.jobs, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	j.cancel()
	<-j.done

	var errs []error
	if err := r.fs.RemoveAll(j.snap.VideoPath); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove upload: %w", err))
	}
	if err := r.fs.RemoveAll(j.snap.OutputDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove output directory: %w", err))
	}
	monitoring.Logf("[Jobs] Task %s cleaned up", id)
	return errors.Join(errs...)
}

// Shutdown cancels every running job and waits for them to stop.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	pending := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		pending = append(pending, j)
	}
	r.mu.RUnlock()

	for _, j := range pending {
		j.cancel()
	}
	for _, j := range pending {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
