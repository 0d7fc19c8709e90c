// Package cv implements video.Codec on OpenCV through gocv.
package cv

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"gocv.io/x/gocv"

	"github.com/securityvision/analyzer/internal/video"
)

// Codec opens files with gocv.VideoCaptureFile and writes with
// gocv.VideoWriterFile.
type Codec struct{}

// Open opens path and resizes every frame it yields to size.
func (Codec) Open(path string, size image.Point) (video.Reader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("failed to open video %s", path)
	}
	return &reader{vc: vc, size: size}, nil
}

// Create opens an output video. fourcc is a four character codec code such
// as "mp4v".
func (Codec) Create(path, fourcc string, fps float64, size image.Point) (video.Writer, error) {
	vw, err := gocv.VideoWriterFile(path, fourcc, fps, size.X, size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create video writer %s: %w", path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("failed to create video writer %s", path)
	}
	return &writer{vw: vw}, nil
}

type reader struct {
	vc   *gocv.VideoCapture
	size image.Point
	next int
}

func (r *reader) Read() (video.Frame, error) {
	raw := gocv.NewMat()
	defer raw.Close()
	if ok := r.vc.Read(&raw); !ok || raw.Empty() {
		return nil, io.EOF
	}

	resized := gocv.NewMat()
	gocv.Resize(raw, &resized, r.size, 0, 0, gocv.InterpolationLinear)
	f := &Frame{mat: resized, index: r.next}
	r.next++
	return f, nil
}

func (r *reader) FPS() float64 {
	return r.vc.Get(gocv.VideoCaptureFPS)
}

func (r *reader) FrameCount() int {
	n := r.vc.Get(gocv.VideoCaptureFrameCount)
	if n < 0 {
		return 0
	}
	return int(n)
}

func (r *reader) Close() error {
	return r.vc.Close()
}

type writer struct {
	vw *gocv.VideoWriter
}

func (w *writer) Write(f video.Frame) error {
	cf, ok := f.(*Frame)
	if !ok {
		return fmt.Errorf("cv: cannot write %T", f)
	}
	return w.vw.Write(cf.mat)
}

func (w *writer) Close() error {
	return w.vw.Close()
}

// Frame is a decoded BGR frame backed by a gocv.Mat.
type Frame struct {
	mat   gocv.Mat
	index int
}

// Mat exposes the underlying image for OpenCV-based detectors. The Frame
// keeps ownership.
func (f *Frame) Mat() gocv.Mat { return f.mat }

func (f *Frame) Index() int { return f.index }

func (f *Frame) Size() image.Point {
	return image.Pt(f.mat.Cols(), f.mat.Rows())
}

func (f *Frame) Rectangle(r image.Rectangle, c color.RGBA, thickness int) {
	gocv.Rectangle(&f.mat, r, c, thickness)
}

func (f *Frame) Line(from, to image.Point, c color.RGBA, thickness int) {
	gocv.Line(&f.mat, from, to, c, thickness)
}

func (f *Frame) Arrow(from, to image.Point, c color.RGBA, thickness int) {
	gocv.ArrowedLine(&f.mat, from, to, c, thickness)
}

func (f *Frame) Text(s string, origin image.Point, scale float64, c color.RGBA, thickness int) {
	gocv.PutText(&f.mat, s, origin, gocv.FontHersheySimplex, scale, c, thickness)
}

func (f *Frame) EncodeJPEG() ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame %d: %w", f.index, err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

func (f *Frame) Close() error {
	return f.mat.Close()
}
