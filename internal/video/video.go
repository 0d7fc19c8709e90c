// Package video defines the frame source, frame sink and drawing surface the
// analysis pipeline works against. The gocv-backed implementation lives in
// package cv; Memory is an in-process implementation for tests.
package video

import (
	"image"
	"image/color"
)

// Canvas is the set of drawing primitives used for overlays.
type Canvas interface {
	Size() image.Point
	Rectangle(r image.Rectangle, c color.RGBA, thickness int)
	Line(from, to image.Point, c color.RGBA, thickness int)
	Arrow(from, to image.Point, c color.RGBA, thickness int)
	Text(s string, origin image.Point, scale float64, c color.RGBA, thickness int)
}

// Frame is one decoded frame, already resized to the output size.
type Frame interface {
	Canvas
	// Index is the zero-based position of the frame in the source.
	Index() int
	EncodeJPEG() ([]byte, error)
	Close() error
}

// Reader yields frames in order. Read returns io.EOF after the last frame.
type Reader interface {
	Read() (Frame, error)
	// FPS is the source frame rate, or 0 when unknown.
	FPS() float64
	// FrameCount is the source frame count, or 0 when unknown.
	FrameCount() int
	Close() error
}

// Writer encodes frames into an output video.
type Writer interface {
	Write(Frame) error
	Close() error
}

// Codec opens sources and creates sinks.
type Codec interface {
	Open(path string, size image.Point) (Reader, error)
	Create(path, fourcc string, fps float64, size image.Point) (Writer, error)
}
