//go:build nogocv
// +build nogocv

package main

import (
	"errors"

	"github.com/securityvision/analyzer/internal/detect"
	"github.com/securityvision/analyzer/internal/video"
)

var errNoOpenCV = errors.New("OpenCV support not enabled: rebuild without -tags=nogocv")

// newCodec is a stub when OpenCV support is disabled.
func newCodec() (video.Codec, error) {
	return nil, errNoOpenCV
}

// newCascadeDetector is a stub when OpenCV support is disabled.
func newCascadeDetector(string) (detect.Detector, func() error, error) {
	return nil, nil, errNoOpenCV
}
