// Package pipeline runs the frame analytics loop over one video: it samples
// frames, detects and tracks people, scores them, raises alarms, draws the
// overlay, writes the annotated video and persists every sampled frame.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/securityvision/analyzer/internal/alarm"
	"github.com/securityvision/analyzer/internal/config"
	"github.com/securityvision/analyzer/internal/detect"
	"github.com/securityvision/analyzer/internal/kinematics"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/store"
	"github.com/securityvision/analyzer/internal/timeutil"
	"github.com/securityvision/analyzer/internal/tracking"
	"github.com/securityvision/analyzer/internal/video"
)

// Sink is the per-run persistence the pipeline writes to.
type Sink interface {
	alarm.Writer
	InsertFrame(ctx context.Context, r *store.FrameRecord) error
	StartRun(ctx context.Context, sourcePath string, params interface{}) (string, error)
	FinishRun(ctx context.Context, runID, status, errMsg string, stats store.RunStats) error
	Summary(ctx context.Context) (store.Summary, error)
	Close() error
}

// CreateStore opens a fresh run store at path.
func CreateStore(path string) (Sink, error) {
	s, err := store.Create(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Config holds the dependencies of an Analyzer.
type Config struct {
	// Settings supplies sampling, output and threshold values. Nil uses
	// config.DefaultAnalysisConfig.
	Settings *config.AnalysisConfig

	Codec    video.Codec
	Detector detect.Detector

	// NewTracker builds the tracker for each run. Nil uses a
	// tracking.EuclideanTracker configured from Settings.
	NewTracker func() tracking.Tracker

	// OpenStore creates the run store. Nil uses CreateStore.
	OpenStore func(path string) (Sink, error)

	// Notifier receives every alarm event. Optional.
	Notifier alarm.Notifier

	// Clock drives alarm dates, the banner blink and run durations. Nil
	// uses timeutil.RealClock.
	Clock timeutil.Clock
}

// Analyzer analyses videos. Each Analyze call is an independent run; the
// Analyzer only tracks the state of the most recent one.
type Analyzer struct {
	cfg Config

	mu    sync.Mutex
	state State
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Codec == nil {
		return nil, errors.New("pipeline: codec is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("pipeline: detector is required")
	}
	if cfg.Settings == nil {
		cfg.Settings = config.DefaultAnalysisConfig()
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.NewTracker == nil {
		tc := tracking.Config{
			DistanceThreshold:   cfg.Settings.GetTrackerDistanceThreshold(),
			MaxMisses:           cfg.Settings.GetTrackerMaxMisses(),
			InitializationDelay: cfg.Settings.GetTrackerInitializationDelay(),
		}
		cfg.NewTracker = func() tracking.Tracker { return tracking.NewEuclideanTracker(tc) }
	}
	if cfg.OpenStore == nil {
		cfg.OpenStore = CreateStore
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Analyzer{cfg: cfg, state: StateNotStarted}, nil
}

// State returns the state of the most recent run.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Analyzer) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// AnalyzedVideoName is the output file name for the source at videoPath.
func AnalyzedVideoName(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_analyzed.mp4"
}

// Analyze processes videoPath and writes the annotated video and run store
// into outputDir. progress, when non-nil, receives the percentage of frames
// read. Cancelling ctx stops the run at the next sampled frame.
func (a *Analyzer) Analyze(ctx context.Context, videoPath, outputDir string, progress func(float64)) Result {
	a.setState(StateRunning)
	res := a.analyze(ctx, videoPath, outputDir, progress)
	a.setState(res.state())
	return res
}

func (a *Analyzer) analyze(ctx context.Context, videoPath, outputDir string, progress func(float64)) Result {
	r, err := a.setup(ctx, videoPath, outputDir)
	if err != nil {
		monitoring.Warnf("[Pipeline] Analysis of %s failed: %v", videoPath, err)
		return failed(err)
	}

	monitoring.Logf("[Pipeline] Video processing started: %s (%d frames at %.2f fps)", videoPath, r.totalFrames, r.fps)
	loopErr := r.loop(ctx, progress)

	status, errMsg := store.RunCompleted, ""
	switch {
	case errors.Is(loopErr, ErrCancelled):
		status, errMsg = store.RunCancelled, loopErr.Error()
	case loopErr != nil:
		status, errMsg = store.RunFailed, loopErr.Error()
	}
	r.finish(ctx, status, errMsg)
	if !errors.Is(loopErr, ErrCancelled) {
		r.logSummary(ctx)
	}
	r.release()

	if errors.Is(loopErr, ErrCancelled) {
		monitoring.Logf("[Pipeline] Analysis of %s cancelled after %d frames", videoPath, r.stats.TotalFrames)
		return cancelled()
	}
	if loopErr != nil {
		return failed(loopErr)
	}

	monitoring.Logf("[Pipeline] Analysis completed: video=%s database=%s processed=%d alarms=%d",
		r.outputVideo, r.storePath, r.stats.ProcessedFrames, r.stats.TotalAlarms)
	stats := r.stats
	return Result{
		Success: true,
		Message: successMessage,
		Stats:   &stats,
		Files:   &Files{AnalyzedVideo: r.outputVideo, Database: r.storePath},
	}
}

// run is the state of one Analyze call.
type run struct {
	settings *config.AnalysisConfig
	detector detect.Detector
	clock    timeutil.Clock

	sink   Sink
	reader video.Reader
	writer video.Writer
	runID  string

	motion  *kinematics.State
	tracker tracking.Tracker
	alarms  *alarm.Coordinator

	videoPath   string
	storePath   string
	outputVideo string
	size        image.Point
	fps         float64
	totalFrames int
	started     time.Time

	stats Stats
}

func (a *Analyzer) setup(ctx context.Context, videoPath, outputDir string) (*run, error) {
	s := a.cfg.Settings
	r := &run{
		settings:    s,
		detector:    a.cfg.Detector,
		clock:       a.cfg.Clock,
		motion:      kinematics.NewState(),
		tracker:     a.cfg.NewTracker(),
		videoPath:   videoPath,
		storePath:   filepath.Join(outputDir, store.DefaultFileName),
		outputVideo: filepath.Join(outputDir, AnalyzedVideoName(videoPath)),
		size:        image.Pt(s.GetOutputWidth(), s.GetOutputHeight()),
		started:     a.cfg.Clock.Now(),
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	sink, err := a.cfg.OpenStore(r.storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.sink = sink
	monitoring.Logf("[Pipeline] Database initialised at %s", r.storePath)

	if id, err := sink.StartRun(ctx, videoPath, s); err != nil {
		monitoring.Warnf("[Pipeline] Failed to record analysis run: %v", err)
	} else {
		r.runID = id
	}

	fail := func(err error) (*run, error) {
		r.finish(ctx, store.RunFailed, err.Error())
		r.release()
		return nil, err
	}

	reader, err := a.cfg.Codec.Open(videoPath, r.size)
	if err != nil {
		return fail(fmt.Errorf("could not open video file: %w", err))
	}
	r.reader = reader

	r.fps = reader.FPS()
	if r.fps <= 0 {
		monitoring.Logf("[Pipeline] Source reports no frame rate, assuming %.0f fps", s.GetDefaultFPS())
		r.fps = s.GetDefaultFPS()
	}
	r.totalFrames = reader.FrameCount()

	outFPS := r.fps / float64(s.GetSampleInterval())
	writer, err := a.cfg.Codec.Create(r.outputVideo, s.GetVideoCodec(), outFPS, r.size)
	if err != nil {
		return fail(fmt.Errorf("could not create output video: %w", err))
	}
	r.writer = writer

	r.alarms = alarm.NewCoordinator(sink, a.cfg.Notifier, s.GetNearbyRadiusPx()).
		WithSource(filepath.Base(videoPath))
	return r, nil
}

// loop reads every frame, analyses the sampled ones and writes all of them.
func (r *run) loop(ctx context.Context, progress func(float64)) error {
	interval := r.settings.GetSampleInterval()
	lastProgress := 0.0

	for number := 0; ; number++ {
		frame, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			monitoring.Logf("[Pipeline] End of video after %d frames", number)
			return nil
		}
		if err != nil {
			monitoring.Warnf("[Pipeline] Stopped reading at frame %d: %v", number, err)
			return nil
		}
		r.stats.TotalFrames = number + 1

		if progress != nil {
			if r.totalFrames > 0 && number < r.totalFrames {
				lastProgress = float64(number) / float64(r.totalFrames) * 100
			}
			progress(lastProgress)
		}

		if number%interval == 0 {
			if ctx.Err() != nil {
				frame.Close()
				r.stats.TotalFrames = number
				return ErrCancelled
			}
			r.processSampled(ctx, frame, number)
		}

		if err := r.writer.Write(frame); err != nil {
			monitoring.Warnf("[Pipeline] Failed to write frame %d: %v", number, err)
		}
		frame.Close()
	}
}

// finish records the final state of the run. It runs even when ctx is
// cancelled.
func (r *run) finish(ctx context.Context, status, errMsg string) {
	if r.runID == "" || r.sink == nil {
		return
	}
	stats := store.RunStats{
		TotalFrames:     r.stats.TotalFrames,
		ProcessedFrames: r.stats.ProcessedFrames,
		TotalAlarms:     r.stats.TotalAlarms,
		MaxDangerLevel:  r.stats.MaxDangerLevel,
		Duration:        r.clock.Since(r.started),
	}
	if err := r.sink.FinishRun(context.WithoutCancel(ctx), r.runID, status, errMsg, stats); err != nil {
		monitoring.Warnf("[Pipeline] Failed to record run %s as %s: %v", r.runID, status, err)
	}
}

func (r *run) logSummary(ctx context.Context) {
	sum, err := r.sink.Summary(context.WithoutCancel(ctx))
	if err != nil {
		monitoring.Warnf("[Pipeline] Failed to read database statistics: %v", err)
		return
	}
	monitoring.Logf("[Pipeline] Database statistics: frames=%d persons=%d alarms=%d dangerous=%d at_risk=%d avg_level=%.2f duration=%.2fs",
		sum.TotalFrames, sum.TotalPersons, sum.TotalAlarms, sum.DangerousDetections,
		sum.AtRiskDetections, sum.AverageDangerLevel, sum.SessionDuration)
}

// release closes every resource the run opened.
func (r *run) release() {
	if r.reader != nil {
		if err := r.reader.Close(); err != nil {
			monitoring.Warnf("[Pipeline] Failed to close video reader: %v", err)
		}
	}
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			monitoring.Warnf("[Pipeline] Failed to close video writer: %v", err)
		}
	}
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			monitoring.Warnf("[Pipeline] Failed to close database: %v", err)
		}
	}
}
