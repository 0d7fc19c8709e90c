// Package detect defines the face-attribute detector boundary and the
// detectors that do not need OpenCV.
package detect

import (
	"context"
	"image"

	"github.com/securityvision/analyzer/internal/video"
)

// Detection is one person found in a frame.
type Detection struct {
	Box     image.Rectangle
	Gender  string
	Emotion string
}

// Center is the box center, rounded down.
func (d Detection) Center() image.Point {
	return image.Pt(d.Box.Min.X+d.Box.Dx()/2, d.Box.Min.Y+d.Box.Dy()/2)
}

// Area is the box area in px².
func (d Detection) Area() int {
	return d.Box.Dx() * d.Box.Dy()
}

// Detector finds people in a frame. An empty result is not an error.
type Detector interface {
	Detect(ctx context.Context, frame video.Frame) ([]Detection, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, frame video.Frame) ([]Detection, error)

// Detect calls fn.
func (fn DetectorFunc) Detect(ctx context.Context, frame video.Frame) ([]Detection, error) {
	return fn(ctx, frame)
}

// defaultSide is used for a region that reports no width or height.
const defaultSide = 50

// Region is a face box as reported by attribute services.
type Region struct {
	X int  `json:"x"`
	Y int  `json:"y"`
	W *int `json:"w,omitempty"`
	H *int `json:"h,omitempty"`
}

// Rect converts r, substituting defaultSide for a missing width or height.
func (r Region) Rect() image.Rectangle {
	w, h := defaultSide, defaultSide
	if r.W != nil {
		w = *r.W
	}
	if r.H != nil {
		h = *r.H
	}
	return image.Rect(r.X, r.Y, r.X+w, r.Y+h)
}

// FaceAttributes is the per-face payload of an attribute service.
type FaceAttributes struct {
	Region          Region `json:"region"`
	DominantGender  string `json:"dominant_gender"`
	DominantEmotion string `json:"dominant_emotion"`
}

// Detection converts f.
func (f FaceAttributes) Detection() Detection {
	return Detection{Box: f.Region.Rect(), Gender: f.DominantGender, Emotion: f.DominantEmotion}
}
