// Package monitoring holds the process-wide diagnostic logger used by the
// analysis pipeline, the job registry and the HTTP shell.
package monitoring

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and is
// normally replaced at startup with a zap sugared logger via UseZap.
var Logf func(format string, v ...interface{}) = log.Printf

// Warnf logs failures the caller recovers from. It shares Logf's sink unless
// UseZap gives it a higher level.
var Warnf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces both package loggers. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
	Warnf = f
}

// NewLogger builds a zap logger.
// level: "debug", "info", "warn", "error" (default "info").
// format: "json" or "console" (default "json").
func NewLogger(level, format, service string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if service != "" {
		logger = logger.With(zap.String("service_name", service))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		logger = logger.With(zap.String("hostname", hostname))
	}
	return logger, nil
}

// UseZap routes Logf through the given zap logger at info level and Warnf at
// warn level, and returns a function that flushes it.
func UseZap(logger *zap.Logger) func() {
	sugar := logger.WithOptions(zap.AddCallerSkip(1)).Sugar()
	Logf = sugar.Infof
	Warnf = sugar.Warnf
	return func() { _ = logger.Sync() }
}
