package video

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"
	"sync"
)

// OpKind names a recorded drawing call.
type OpKind string

const (
	OpRectangle OpKind = "rectangle"
	OpLine      OpKind = "line"
	OpArrow     OpKind = "arrow"
	OpText      OpKind = "text"
)

// Op is one recorded drawing call on a MemoryFrame.
type Op struct {
	Kind      OpKind
	Rect      image.Rectangle
	From, To  image.Point
	Text      string
	Scale     float64
	Color     color.RGBA
	Thickness int
}

// MemoryFrame records drawing calls instead of rasterising them.
type MemoryFrame struct {
	mu     sync.Mutex
	index  int
	size   image.Point
	ops    []Op
	closed bool
}

// NewMemoryFrame returns a blank frame.
func NewMemoryFrame(index int, size image.Point) *MemoryFrame {
	return &MemoryFrame{index: index, size: size}
}

func (f *MemoryFrame) record(op Op) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
}

func (f *MemoryFrame) Size() image.Point { return f.size }
func (f *MemoryFrame) Index() int        { return f.index }

func (f *MemoryFrame) Rectangle(r image.Rectangle, c color.RGBA, thickness int) {
	f.record(Op{Kind: OpRectangle, Rect: r, Color: c, Thickness: thickness})
}

func (f *MemoryFrame) Line(from, to image.Point, c color.RGBA, thickness int) {
	f.record(Op{Kind: OpLine, From: from, To: to, Color: c, Thickness: thickness})
}

func (f *MemoryFrame) Arrow(from, to image.Point, c color.RGBA, thickness int) {
	f.record(Op{Kind: OpArrow, From: from, To: to, Color: c, Thickness: thickness})
}

func (f *MemoryFrame) Text(s string, origin image.Point, scale float64, c color.RGBA, thickness int) {
	f.record(Op{Kind: OpText, Text: s, From: origin, Scale: scale, Color: c, Thickness: thickness})
}

// EncodeJPEG returns a small placeholder payload naming the frame index.
func (f *MemoryFrame) EncodeJPEG() ([]byte, error) {
	return []byte(fmt.Sprintf("frame-%d", f.index)), nil
}

func (f *MemoryFrame) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Ops returns a copy of the recorded drawing calls.
func (f *MemoryFrame) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Op, len(f.ops))
	copy(out, f.ops)
	return out
}

// Texts returns the text of every recorded Text call.
func (f *MemoryFrame) Texts() []string {
	var out []string
	for _, op := range f.Ops() {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

// HasText reports whether any recorded text starts with prefix.
func (f *MemoryFrame) HasText(prefix string) bool {
	for _, s := range f.Texts() {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// Closed reports whether Close was called.
func (f *MemoryFrame) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Memory is a Codec over a synthetic clip of blank frames. Every writer it
// creates appends to Written.
type Memory struct {
	FPS    float64
	Frames int

	// FrameCountUnknown makes readers report a frame count of 0.
	FrameCountUnknown bool

	OpenErr   error
	CreateErr error

	mu         sync.Mutex
	written    []*MemoryFrame
	created    []WriterSpec
	closedRead int
}

// WriterSpec records the arguments of a Create call.
type WriterSpec struct {
	Path   string
	FourCC string
	FPS    float64
	Size   image.Point
}

// ErrUnsupportedFrame is returned when a Memory writer receives a frame it did
// not produce.
var ErrUnsupportedFrame = errors.New("video: frame is not a MemoryFrame")

func (m *Memory) Open(path string, size image.Point) (Reader, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return &memoryReader{codec: m, size: size}, nil
}

func (m *Memory) Create(path, fourcc string, fps float64, size image.Point) (Writer, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	m.created = append(m.created, WriterSpec{Path: path, FourCC: fourcc, FPS: fps, Size: size})
	m.mu.Unlock()
	return &memoryWriter{codec: m}, nil
}

// Written returns every frame written so far, in order.
func (m *Memory) Written() []*MemoryFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MemoryFrame, len(m.written))
	copy(out, m.written)
	return out
}

// Created returns the arguments of every Create call.
func (m *Memory) Created() []WriterSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriterSpec, len(m.created))
	copy(out, m.created)
	return out
}

// ReadersClosed returns how many readers were closed.
func (m *Memory) ReadersClosed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closedRead
}

type memoryReader struct {
	codec *Memory
	size  image.Point
	next  int
}

func (r *memoryReader) Read() (Frame, error) {
	if r.next >= r.codec.Frames {
		return nil, io.EOF
	}
	f := NewMemoryFrame(r.next, r.size)
	r.next++
	return f, nil
}

func (r *memoryReader) FPS() float64 { return r.codec.FPS }

func (r *memoryReader) FrameCount() int {
	if r.codec.FrameCountUnknown {
		return 0
	}
	return r.codec.Frames
}

func (r *memoryReader) Close() error {
	r.codec.mu.Lock()
	r.codec.closedRead++
	r.codec.mu.Unlock()
	return nil
}

type memoryWriter struct {
	codec *Memory
}

func (w *memoryWriter) Write(f Frame) error {
	mf, ok := f.(*MemoryFrame)
	if !ok {
		return ErrUnsupportedFrame
	}
	w.codec.mu.Lock()
	w.codec.written = append(w.codec.written, mf)
	w.codec.mu.Unlock()
	return nil
}

func (w *memoryWriter) Close() error { return nil }
