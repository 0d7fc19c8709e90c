package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/securityvision/analyzer/internal/video"
)

// ReplayRecord is one line of a replay file: the faces found in one frame.
type ReplayRecord struct {
	Frame int              `json:"frame"`
	Faces []FaceAttributes `json:"faces"`
}

// ReplayDetector answers from precomputed detections keyed by frame index.
// Frames absent from the file have no detections.
type ReplayDetector struct {
	frames map[int][]Detection
}

// LoadReplay reads a JSON-lines replay file.
func LoadReplay(path string) (*ReplayDetector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()
	return ReadReplay(f)
}

// ReadReplay parses JSON-lines replay records from r. Blank lines are skipped.
func ReadReplay(r io.Reader) (*ReplayDetector, error) {
	d := &ReplayDetector{frames: make(map[int][]Detection)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var rec ReplayRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", line, err)
		}
		for _, face := range rec.Faces {
			d.frames[rec.Frame] = append(d.frames[rec.Frame], face.Detection())
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	return d, nil
}

// NewReplayDetector builds a detector from an in-memory map.
func NewReplayDetector(frames map[int][]Detection) *ReplayDetector {
	if frames == nil {
		frames = make(map[int][]Detection)
	}
	return &ReplayDetector{frames: frames}
}

// Detect implements Detector.
func (d *ReplayDetector) Detect(_ context.Context, frame video.Frame) ([]Detection, error) {
	dets := d.frames[frame.Index()]
	out := make([]Detection, len(dets))
	copy(out, dets)
	return out, nil
}

// Frames returns how many frames have detections.
func (d *ReplayDetector) Frames() int { return len(d.frames) }
