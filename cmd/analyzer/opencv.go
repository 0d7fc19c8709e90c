//go:build !nogocv
// +build !nogocv

package main

import (
	"github.com/securityvision/analyzer/internal/detect"
	"github.com/securityvision/analyzer/internal/detect/cascade"
	"github.com/securityvision/analyzer/internal/video"
	"github.com/securityvision/analyzer/internal/video/cv"
)

func newCodec() (video.Codec, error) {
	return cv.Codec{}, nil
}

func newCascadeDetector(path string) (detect.Detector, func() error, error) {
	d, err := cascade.New(path)
	if err != nil {
		return nil, nil, err
	}
	return d, d.Close, nil
}
