// Package cascade detects faces with an OpenCV Haar cascade. It reports boxes
// only; gender and emotion are left empty, so scoring relies on speed and
// size.
package cascade

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/securityvision/analyzer/internal/detect"
	"github.com/securityvision/analyzer/internal/video"
	"github.com/securityvision/analyzer/internal/video/cv"
)

// Detector wraps a loaded gocv.CascadeClassifier.
type Detector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// New loads the cascade XML at path.
func New(path string) (*Detector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade %s", path)
	}
	return &Detector{classifier: classifier}, nil
}

// Detect implements detect.Detector. Only frames produced by package cv are
// supported.
func (d *Detector) Detect(_ context.Context, frame video.Frame) ([]detect.Detection, error) {
	cf, ok := frame.(*cv.Frame)
	if !ok {
		return nil, fmt.Errorf("cascade: unsupported frame type %T", frame)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(cf.Mat(), &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScale(gray)
	d.mu.Unlock()

	out := make([]detect.Detection, 0, len(rects))
	for _, r := range rects {
		out = append(out, detect.Detection{Box: r})
	}
	return out, nil
}

// Close releases the classifier.
func (d *Detector) Close() error {
	return d.classifier.Close()
}
