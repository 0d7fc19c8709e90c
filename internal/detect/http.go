package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/securityvision/analyzer/internal/video"
)

// HTTPDetector posts each frame as JPEG to a face-attribute service and reads
// back a JSON array of FaceAttributes.
type HTTPDetector struct {
	client   *resty.Client
	endpoint string
}

// NewHTTPDetector creates a detector for endpoint.
func NewHTTPDetector(endpoint string, timeout time.Duration) *HTTPDetector {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPDetector{client: client, endpoint: endpoint}
}

// Detect implements Detector.
func (d *HTTPDetector) Detect(ctx context.Context, frame video.Frame) ([]Detection, error) {
	img, err := frame.EncodeJPEG()
	if err != nil {
		return nil, err
	}

	var faces []FaceAttributes
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "image/jpeg").
		SetQueryParam("frame", fmt.Sprint(frame.Index())).
		SetBody(img).
		SetResult(&faces).
		Post(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("detector returned HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]Detection, 0, len(faces))
	for _, f := range faces {
		out = append(out, f.Detection())
	}
	return out, nil
}
