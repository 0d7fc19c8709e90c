package main

import (
	"context"
	"fmt"
	"os"

	"github.com/securityvision/analyzer/internal/alarm"
	"github.com/securityvision/analyzer/internal/alarm/notify"
	"github.com/securityvision/analyzer/internal/config"
	"github.com/securityvision/analyzer/internal/detect"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/pipeline"
)

// closers runs cleanup functions in reverse order.
type closers []func() error

func (cs closers) Close() {
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i](); err != nil {
			monitoring.Warnf("[Main] Close error: %v", err)
		}
	}
}

// buildDetector returns the detector selected by cfg.
func buildDetector(cfg *config.AnalysisConfig) (detect.Detector, func() error, error) {
	switch cfg.GetDetector() {
	case config.DetectorHTTP:
		if cfg.GetDetectorEndpoint() == "" {
			return nil, nil, fmt.Errorf("detector_endpoint is required for the http detector")
		}
		return detect.NewHTTPDetector(cfg.GetDetectorEndpoint(), cfg.GetDetectorTimeout()), nil, nil
	case config.DetectorReplay:
		if cfg.GetReplayPath() == "" {
			return nil, nil, fmt.Errorf("replay_path is required for the replay detector")
		}
		d, err := detect.LoadReplay(cfg.GetReplayPath())
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil
	case config.DetectorCascade:
		return newCascadeDetector(cfg.GetCascadePath())
	default:
		return nil, nil, fmt.Errorf("unknown detector %q", cfg.GetDetector())
	}
}

// buildNotifier connects every configured alarm sink. It returns nil when
// none is configured.
func buildNotifier(ctx context.Context, cfg *config.AnalysisConfig) (alarm.Notifier, closers, error) {
	var sinks alarm.MultiNotifier
	var cs closers

	if broker := cfg.GetMQTTBroker(); broker != "" {
		host, _ := os.Hostname()
		m, err := notify.NewMQTT(broker, fmt.Sprintf("analyzer-%s-%d", host, os.Getpid()), cfg.GetMQTTTopic())
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, m)
		cs = append(cs, m.Close)
		monitoring.Logf("[Main] Publishing alarms to MQTT %s topic %s", broker, cfg.GetMQTTTopic())
	}
	if addr := cfg.GetRedisAddr(); addr != "" {
		rs, err := notify.NewRedisStream(ctx, addr, cfg.GetRedisStream())
		if err != nil {
			cs.Close()
			return nil, nil, err
		}
		sinks = append(sinks, rs)
		cs = append(cs, rs.Close)
		monitoring.Logf("[Main] Publishing alarms to Redis %s stream %s", addr, cfg.GetRedisStream())
	}

	if len(sinks) == 0 {
		return nil, nil, nil
	}
	return sinks, cs, nil
}

// newAnalyzer wires the codec, detector and notifiers selected by cfg.
func newAnalyzer(ctx context.Context, cfg *config.AnalysisConfig) (*pipeline.Analyzer, closers, error) {
	codec, err := newCodec()
	if err != nil {
		return nil, nil, err
	}
	det, closeDet, err := buildDetector(cfg)
	if err != nil {
		return nil, nil, err
	}
	var cs closers
	if closeDet != nil {
		cs = append(cs, closeDet)
	}

	notifier, notifyClosers, err := buildNotifier(ctx, cfg)
	if err != nil {
		cs.Close()
		return nil, nil, err
	}
	cs = append(cs, notifyClosers...)

	an, err := pipeline.New(pipeline.Config{
		Settings: cfg,
		Codec:    codec,
		Detector: det,
		Notifier: notifier,
	})
	if err != nil {
		cs.Close()
		return nil, nil, err
	}
	return an, cs, nil
}
