package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securityvision/analyzer/internal/config"
	"github.com/securityvision/analyzer/internal/detect"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/store"
)

// Build with -tags=nogocv to run these without the OpenCV libraries.

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func runDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), store.DefaultFileName)
	s, err := store.Create(path)
	require.NoError(t, err)
	defer s.Close()
	ev := &store.AlarmEvent{Timestamp: 3.2, FormattedTime: "00:00:03", PersonID: 2, Emotion: "angry", Speed: 120, Reason: "1 person(s) in dangerous state", Level: 7}
	require.NoError(t, s.InsertAlarm(context.Background(), ev))
	return path
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "analyzer dev (commit unknown, built unknown)\n", out.String())
}

func TestMigrateCmd(t *testing.T) {
	path := runDB(t)

	out, err := run(t, "migrate", "version", path)
	require.NoError(t, err)
	assert.Equal(t, "schema version 3 (dirty=false)\n", out)

	out, err = run(t, "migrate", "down", path)
	require.NoError(t, err)
	assert.Equal(t, "schema version 2 (dirty=false)\n", out)

	out, err = run(t, "migrate", "up", path)
	require.NoError(t, err)
	assert.Equal(t, "schema version 3 (dirty=false)\n", out)
}

func TestReportCmd_JSON(t *testing.T) {
	out, err := run(t, "report", runDB(t))
	require.NoError(t, err)

	var rep struct {
		Summary struct {
			TotalAlarms int `json:"total_alarms"`
		} `json:"summary"`
		CriticalMoments []json.RawMessage `json:"critical_moments"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 1, rep.Summary.TotalAlarms)
	assert.Len(t, rep.CriticalMoments, 1)
}

func TestReportCmd_Files(t *testing.T) {
	dir := t.TempDir()
	xlsx := filepath.Join(dir, "report.xlsx")
	png := filepath.Join(dir, "timeline.png")
	html := filepath.Join(dir, "chart.html")

	out, err := run(t, "report", runDB(t), "--xlsx", xlsx, "--png", png, "--html", html)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "wrote "))
	for _, p := range []string{xlsx, png, html} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.NotZero(t, info.Size(), p)
	}
}

func TestReportCmd_MissingDatabase(t *testing.T) {
	_, err := run(t, "report", filepath.Join(t.TempDir(), "nope.db"))
	assert.ErrorContains(t, err, "database not found")
}

func TestConfigFlag(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.json"), "report", runDB(t))
	assert.ErrorContains(t, err, "failed to stat config file")
}

func strPtr(s string) *string { return &s }

func TestBuildDetector(t *testing.T) {
	replay := filepath.Join(t.TempDir(), "faces.jsonl")
	require.NoError(t, os.WriteFile(replay, []byte(`{"frame":0,"faces":[]}`+"\n"), 0o644))

	cfg := config.DefaultAnalysisConfig()
	cfg.Detector = strPtr(config.DetectorReplay)
	cfg.ReplayPath = &replay
	d, closeFn, err := buildDetector(cfg)
	require.NoError(t, err)
	assert.IsType(t, &detect.ReplayDetector{}, d)
	assert.Nil(t, closeFn)

	cfg.ReplayPath = nil
	_, _, err = buildDetector(cfg)
	assert.ErrorContains(t, err, "replay_path is required")

	cfg.Detector = strPtr(config.DetectorHTTP)
	_, _, err = buildDetector(cfg)
	assert.ErrorContains(t, err, "detector_endpoint is required")

	cfg.DetectorEndpoint = strPtr("http://127.0.0.1:5005/analyze")
	d, _, err = buildDetector(cfg)
	require.NoError(t, err)
	assert.IsType(t, &detect.HTTPDetector{}, d)

	cfg.Detector = strPtr("yolo")
	_, _, err = buildDetector(cfg)
	assert.ErrorContains(t, err, `unknown detector "yolo"`)
}

func TestBuildNotifier(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultAnalysisConfig()

	n, cs, err := buildNotifier(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Empty(t, cs)

	mr := miniredis.RunT(t)
	cfg.RedisAddr = strPtr(mr.Addr())
	n, cs, err = buildNotifier(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Len(t, cs, 1)
	cs.Close()

	mr.Close()
	_, _, err = buildNotifier(ctx, cfg)
	assert.Error(t, err)
}
