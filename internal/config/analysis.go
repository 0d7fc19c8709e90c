// Package config loads the JSON configuration shared by the analyze and serve
// commands.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExampleConfigPath is the example configuration shipped with the repository.
const ExampleConfigPath = "config/analysis.example.json"

// Detector backends.
const (
	DetectorCascade = "cascade"
	DetectorHTTP    = "http"
	DetectorReplay  = "replay"
)

// AnalysisConfig is the root configuration. Every field is optional; the Get*
// methods return the default when a field is absent.
type AnalysisConfig struct {
	// Pipeline
	SampleInterval *int     `json:"sample_interval,omitempty"`
	OutputWidth    *int     `json:"output_width,omitempty"`
	OutputHeight   *int     `json:"output_height,omitempty"`
	DefaultFPS     *float64 `json:"default_fps,omitempty"`
	VideoCodec     *string  `json:"video_codec,omitempty"`

	// Proximity
	NearbyRadiusPx  *float64 `json:"nearby_radius_px,omitempty"`
	CloseDistancePx *float64 `json:"close_distance_px,omitempty"`

	// Tracker
	TrackerDistanceThreshold   *float64 `json:"tracker_distance_threshold,omitempty"`
	TrackerMaxMisses           *int     `json:"tracker_max_misses,omitempty"`
	TrackerInitializationDelay *int     `json:"tracker_initialization_delay,omitempty"`

	// Detector
	Detector         *string `json:"detector,omitempty"`
	CascadePath      *string `json:"cascade_path,omitempty"`
	DetectorEndpoint *string `json:"detector_endpoint,omitempty"`
	DetectorTimeout  *string `json:"detector_timeout,omitempty"` // duration string like "10s"
	ReplayPath       *string `json:"replay_path,omitempty"`

	// Alarm notifiers; empty disables
	MQTTBroker  *string `json:"mqtt_broker,omitempty"`
	MQTTTopic   *string `json:"mqtt_topic,omitempty"`
	RedisAddr   *string `json:"redis_addr,omitempty"`
	RedisStream *string `json:"redis_stream,omitempty"`

	// Logging
	LogLevel  *string `json:"log_level,omitempty"`
	LogFormat *string `json:"log_format,omitempty"`

	// Job shell
	UploadDir      *string `json:"upload_dir,omitempty"`
	OutputDir      *string `json:"output_dir,omitempty"`
	MaxUploadBytes *int64  `json:"max_upload_bytes,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// DefaultAnalysisConfig returns a config with every field populated.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		SampleInterval:             ptrInt(5),
		OutputWidth:                ptrInt(1280),
		OutputHeight:               ptrInt(720),
		DefaultFPS:                 ptrFloat64(30),
		VideoCodec:                 ptrString("mp4v"),
		NearbyRadiusPx:             ptrFloat64(200),
		CloseDistancePx:            ptrFloat64(150),
		TrackerDistanceThreshold:   ptrFloat64(40),
		TrackerMaxMisses:           ptrInt(15),
		TrackerInitializationDelay: ptrInt(7),
		Detector:                   ptrString(DetectorCascade),
		CascadePath:                ptrString("haarcascade_frontalface_default.xml"),
		DetectorTimeout:            ptrString("10s"),
		MQTTTopic:                  ptrString("analyzer/alarms"),
		RedisStream:                ptrString("analyzer:alarms"),
		LogLevel:                   ptrString("info"),
		LogFormat:                  ptrString("json"),
		UploadDir:                  ptrString("uploads"),
		OutputDir:                  ptrString("outputs"),
		MaxUploadBytes:             ptrInt64(500 * 1024 * 1024),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults through the Get* methods.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AnalysisConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.SampleInterval != nil && *c.SampleInterval < 1 {
		return fmt.Errorf("sample_interval must be at least 1, got %d", *c.SampleInterval)
	}
	if c.OutputWidth != nil && *c.OutputWidth <= 0 {
		return fmt.Errorf("output_width must be positive, got %d", *c.OutputWidth)
	}
	if c.OutputHeight != nil && *c.OutputHeight <= 0 {
		return fmt.Errorf("output_height must be positive, got %d", *c.OutputHeight)
	}
	if c.DefaultFPS != nil && *c.DefaultFPS <= 0 {
		return fmt.Errorf("default_fps must be positive, got %f", *c.DefaultFPS)
	}
	if c.VideoCodec != nil && len(*c.VideoCodec) != 4 {
		return fmt.Errorf("video_codec must be a four character code, got %q", *c.VideoCodec)
	}
	if c.NearbyRadiusPx != nil && *c.NearbyRadiusPx <= 0 {
		return fmt.Errorf("nearby_radius_px must be positive, got %f", *c.NearbyRadiusPx)
	}
	if c.CloseDistancePx != nil && *c.CloseDistancePx <= 0 {
		return fmt.Errorf("close_distance_px must be positive, got %f", *c.CloseDistancePx)
	}
	if c.TrackerDistanceThreshold != nil && *c.TrackerDistanceThreshold <= 0 {
		return fmt.Errorf("tracker_distance_threshold must be positive, got %f", *c.TrackerDistanceThreshold)
	}
	if c.TrackerMaxMisses != nil && *c.TrackerMaxMisses < 0 {
		return fmt.Errorf("tracker_max_misses must be non-negative, got %d", *c.TrackerMaxMisses)
	}
	if c.TrackerInitializationDelay != nil && *c.TrackerInitializationDelay < 0 {
		return fmt.Errorf("tracker_initialization_delay must be non-negative, got %d", *c.TrackerInitializationDelay)
	}
	if c.Detector != nil {
		switch *c.Detector {
		case DetectorCascade, DetectorHTTP, DetectorReplay:
		default:
			return fmt.Errorf("detector must be one of %q, %q, %q; got %q",
				DetectorCascade, DetectorHTTP, DetectorReplay, *c.Detector)
		}
	}
	if c.DetectorTimeout != nil && *c.DetectorTimeout != "" {
		if _, err := time.ParseDuration(*c.DetectorTimeout); err != nil {
			return fmt.Errorf("invalid detector_timeout '%s': %w", *c.DetectorTimeout, err)
		}
	}
	if c.MaxUploadBytes != nil && *c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", *c.MaxUploadBytes)
	}
	return nil
}

// GetSampleInterval returns how many raw frames separate analysed frames.
func (c *AnalysisConfig) GetSampleInterval() int {
	if c.SampleInterval == nil {
		return 5
	}
	return *c.SampleInterval
}

// GetOutputWidth returns the output_width value or the default.
func (c *AnalysisConfig) GetOutputWidth() int {
	if c.OutputWidth == nil {
		return 1280
	}
	return *c.OutputWidth
}

// GetOutputHeight returns the output_height value or the default.
func (c *AnalysisConfig) GetOutputHeight() int {
	if c.OutputHeight == nil {
		return 720
	}
	return *c.OutputHeight
}

// GetDefaultFPS returns the frame rate assumed when the source reports none.
func (c *AnalysisConfig) GetDefaultFPS() float64 {
	if c.DefaultFPS == nil {
		return 30
	}
	return *c.DefaultFPS
}

// GetVideoCodec returns the video_codec value or the default.
func (c *AnalysisConfig) GetVideoCodec() string {
	if c.VideoCodec == nil || *c.VideoCodec == "" {
		return "mp4v"
	}
	return *c.VideoCodec
}

// GetNearbyRadiusPx returns the nearby_radius_px value or the default.
func (c *AnalysisConfig) GetNearbyRadiusPx() float64 {
	if c.NearbyRadiusPx == nil {
		return 200
	}
	return *c.NearbyRadiusPx
}

// GetCloseDistancePx returns the close_distance_px value or the default.
func (c *AnalysisConfig) GetCloseDistancePx() float64 {
	if c.CloseDistancePx == nil {
		return 150
	}
	return *c.CloseDistancePx
}

// GetTrackerDistanceThreshold returns the tracker_distance_threshold value or the default.
func (c *AnalysisConfig) GetTrackerDistanceThreshold() float64 {
	if c.TrackerDistanceThreshold == nil {
		return 40
	}
	return *c.TrackerDistanceThreshold
}

// GetTrackerMaxMisses returns the tracker_max_misses value or the default.
func (c *AnalysisConfig) GetTrackerMaxMisses() int {
	if c.TrackerMaxMisses == nil {
		return 15
	}
	return *c.TrackerMaxMisses
}

// GetTrackerInitializationDelay returns how many further matches a new track
// needs before it is reported.
func (c *AnalysisConfig) GetTrackerInitializationDelay() int {
	if c.TrackerInitializationDelay == nil {
		return 7
	}
	return *c.TrackerInitializationDelay
}

// GetDetector returns the detector backend name.
func (c *AnalysisConfig) GetDetector() string {
	if c.Detector == nil || *c.Detector == "" {
		return DetectorCascade
	}
	return *c.Detector
}

// GetCascadePath returns the cascade_path value or the default.
func (c *AnalysisConfig) GetCascadePath() string {
	if c.CascadePath == nil || *c.CascadePath == "" {
		return "haarcascade_frontalface_default.xml"
	}
	return *c.CascadePath
}

// GetDetectorEndpoint returns the detector_endpoint value.
func (c *AnalysisConfig) GetDetectorEndpoint() string {
	if c.DetectorEndpoint == nil {
		return ""
	}
	return *c.DetectorEndpoint
}

// GetDetectorTimeout parses and returns the DetectorTimeout as a time.Duration.
func (c *AnalysisConfig) GetDetectorTimeout() time.Duration {
	if c.DetectorTimeout == nil || *c.DetectorTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.DetectorTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetReplayPath returns the replay_path value.
func (c *AnalysisConfig) GetReplayPath() string {
	if c.ReplayPath == nil {
		return ""
	}
	return *c.ReplayPath
}

// GetMQTTBroker returns the broker URL; empty disables MQTT publishing.
func (c *AnalysisConfig) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetMQTTTopic returns the mqtt_topic value or the default.
func (c *AnalysisConfig) GetMQTTTopic() string {
	if c.MQTTTopic == nil || *c.MQTTTopic == "" {
		return "analyzer/alarms"
	}
	return *c.MQTTTopic
}

// GetRedisAddr returns the Redis address; empty disables stream publishing.
func (c *AnalysisConfig) GetRedisAddr() string {
	if c.RedisAddr == nil {
		return ""
	}
	return *c.RedisAddr
}

// GetRedisStream returns the redis_stream value or the default.
func (c *AnalysisConfig) GetRedisStream() string {
	if c.RedisStream == nil || *c.RedisStream == "" {
		return "analyzer:alarms"
	}
	return *c.RedisStream
}

// GetLogLevel returns the log_level value or the default.
func (c *AnalysisConfig) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}

// GetLogFormat returns the log_format value or the default.
func (c *AnalysisConfig) GetLogFormat() string {
	if c.LogFormat == nil || *c.LogFormat == "" {
		return "json"
	}
	return *c.LogFormat
}

// GetUploadDir returns the upload_dir value or the default.
func (c *AnalysisConfig) GetUploadDir() string {
	if c.UploadDir == nil || *c.UploadDir == "" {
		return "uploads"
	}
	return *c.UploadDir
}

// GetOutputDir returns the output_dir value or the default.
func (c *AnalysisConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "outputs"
	}
	return *c.OutputDir
}

// GetMaxUploadBytes returns the max_upload_bytes value or the default.
func (c *AnalysisConfig) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return 500 * 1024 * 1024
	}
	return *c.MaxUploadBytes
}
