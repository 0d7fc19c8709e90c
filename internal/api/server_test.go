package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securityvision/analyzer/internal/jobs"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/pipeline"
	"github.com/securityvision/analyzer/internal/store"
	"github.com/securityvision/analyzer/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

var testNow = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

// fakeRunner writes a real run database and an analysed video into the
// job's output directory once gate is closed.
type fakeRunner struct {
	gate       chan struct{}
	writeVideo bool
}

func (f *fakeRunner) Analyze(ctx context.Context, videoPath, outputDir string, progress func(float64)) pipeline.Result {
	progress(10)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return pipeline.Result{Message: "analysis cancelled", Err: pipeline.ErrCancelled}
		}
	}

	dbPath := filepath.Join(outputDir, store.DefaultFileName)
	st, err := store.Create(dbPath)
	if err != nil {
		return pipeline.Result{Message: err.Error(), Err: err}
	}
	defer st.Close()
	ev := &store.AlarmEvent{Timestamp: 2.4, FormattedTime: "00:00:02", PersonID: 1, Emotion: "fear", Speed: 250, Reason: "1 person(s) in dangerous state", Level: 8}
	if err := st.InsertAlarm(ctx, ev); err != nil {
		return pipeline.Result{Message: err.Error(), Err: err}
	}

	video := filepath.Join(outputDir, pipeline.AnalyzedVideoName(videoPath))
	if f.writeVideo {
		if err := os.WriteFile(video, []byte("analyzed frames"), 0o644); err != nil {
			return pipeline.Result{Message: err.Error(), Err: err}
		}
	}
	return pipeline.Result{
		Success: true,
		Message: "Video analysis completed successfully!",
		Stats:   &pipeline.Stats{TotalFrames: 30, ProcessedFrames: 6, TotalAlarms: 1, MaxDangerLevel: 8},
		Files:   &pipeline.Files{AnalyzedVideo: video, Database: dbPath},
	}
}

type testEnv struct {
	reg    *jobs.Registry
	srv    *Server
	h      http.Handler
	runner *fakeRunner
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	dir := t.TempDir()
	runner := &fakeRunner{writeVideo: true}
	clock := timeutil.NewMockClock(testNow)
	reg := jobs.NewRegistry(runner, jobs.Options{
		UploadDir: filepath.Join(dir, "uploads"),
		OutputDir: filepath.Join(dir, "outputs"),
		Clock:     clock,
	})
	srv := NewServer(reg, Options{MaxUploadBytes: maxUpload, OutputDir: filepath.Join(dir, "outputs"), Clock: clock})
	t.Cleanup(func() {
		reg.Shutdown(context.Background())
		srv.Close()
	})
	return &testEnv{reg: reg, srv: srv, h: srv.Routes(), runner: runner}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// submit uploads a clip and waits for its analysis to finish.
func (e *testEnv) submit(t *testing.T) string {
	t.Helper()
	rec, body := e.do(t, uploadRequest(t, "video", "lobby cam.mp4", []byte("raw video")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := body["task_id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := e.reg.Wait(ctx, id)
	require.NoError(t, err)
	return id
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, 0)
	rec, body := e.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2025-03-04T10:00:00Z", body["timestamp"])
	assert.Equal(t, 0.0, body["active_tasks"])
}

func TestUpload(t *testing.T) {
	e := newTestEnv(t, 0)
	rec, body := e.do(t, uploadRequest(t, "video", "lobby cam.mp4", []byte("raw video")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Video uploaded and analysis started", body["message"])
	assert.Equal(t, "20250304_100000_lobby_cam.mp4", body["filename"])
	assert.NotEmpty(t, body["task_id"])
	assert.Equal(t, 1, e.reg.Len())
}

func TestUpload_Rejected(t *testing.T) {
	e := newTestEnv(t, 1<<20)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{
			name:    "wrong field",
			req:     uploadRequest(t, "file", "a.mp4", []byte("x")),
			status:  http.StatusBadRequest,
			message: "No video file provided",
		},
		{
			name:    "not multipart",
			req:     httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("plain")),
			status:  http.StatusBadRequest,
			message: "No video file provided",
		},
		{
			name:    "bad extension",
			req:     uploadRequest(t, "video", "notes.txt", []byte("x")),
			status:  http.StatusBadRequest,
			message: "Invalid file type. Allowed types: mp4, avi, mov, mkv, wmv, flv, webm",
		},
		{
			name:    "too large",
			req:     uploadRequest(t, "video", "big.mp4", bytes.Repeat([]byte("v"), 2<<20)),
			status:  http.StatusRequestEntityTooLarge,
			message: "File too large. Maximum size is 1MB.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := e.do(t, tt.req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
	assert.Zero(t, e.reg.Len())
}

func TestStatusAndResults(t *testing.T) {
	e := newTestEnv(t, 0)
	e.runner.gate = make(chan struct{})

	rec, body := e.do(t, uploadRequest(t, "video", "a.mov", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)
	id := body["task_id"].(string)

	rec, body = e.do(t, httptest.NewRequest(http.MethodGet, "/results/"+id, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Analysis not completed yet", body["message"])

	rec, body = e.do(t, httptest.NewRequest(http.MethodGet, "/download/video/"+id, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Analysis not completed", body["message"])

	rec, body = e.do(t, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.NotContains(t, data, "download_links")

	close(e.runner.gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := e.reg.Wait(ctx, id)
	require.NoError(t, err)

	_, body = e.do(t, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
	data = body["data"].(map[string]interface{})
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, 100.0, data["progress"])
	assert.Equal(t, id, data["task_id"])
	assert.Equal(t, map[string]interface{}{
		"video":    "/download/video/" + id,
		"database": "/download/database/" + id,
	}, data["download_links"])

	rec, body = e.do(t, httptest.NewRequest(http.MethodGet, "/results/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	res := body["data"].(map[string]interface{})
	assert.Equal(t, true, res["success"])
	assert.Equal(t, 8.0, res["stats"].(map[string]interface{})["max_danger_level"])

	_, body = e.do(t, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	assert.Len(t, body["data"], 1)
}

func TestUnknownTask(t *testing.T) {
	e := newTestEnv(t, 0)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/status/nope", nil),
		httptest.NewRequest(http.MethodGet, "/results/nope", nil),
		httptest.NewRequest(http.MethodGet, "/download/video/nope", nil),
		httptest.NewRequest(http.MethodGet, "/download/database/nope", nil),
		httptest.NewRequest(http.MethodGet, "/report/nope", nil),
		httptest.NewRequest(http.MethodDelete, "/cleanup/nope", nil),
	} {
		rec, body := e.do(t, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.URL.Path)
		assert.Equal(t, "Task not found", body["message"], req.URL.Path)
	}
}

func TestDownloads(t *testing.T) {
	e := newTestEnv(t, 0)
	id := e.submit(t)

	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/video/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "analyzed frames", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="20250304_100000_lobby_cam_analyzed.mp4"`, rec.Header().Get("Content-Disposition"))

	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/database/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("SQLite format 3")))
}

func TestDownloadMissingVideo(t *testing.T) {
	e := newTestEnv(t, 0)
	e.runner.writeVideo = false
	id := e.submit(t)

	rec, body := e.do(t, httptest.NewRequest(http.MethodGet, "/download/video/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Video file not found", body["message"])
}

func TestCleanup(t *testing.T) {
	e := newTestEnv(t, 0)
	id := e.submit(t)
	snap, err := e.reg.Get(id)
	require.NoError(t, err)

	rec, body := e.do(t, httptest.NewRequest(http.MethodDelete, "/cleanup/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Task cleaned up successfully", body["message"])

	_, err = os.Stat(snap.OutputDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(snap.VideoPath)
	assert.True(t, os.IsNotExist(err))

	rec, _ = e.do(t, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReport(t *testing.T) {
	e := newTestEnv(t, 0)
	id := e.submit(t)

	rec, body := e.do(t, httptest.NewRequest(http.MethodGet, "/report/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body["data"].(map[string]interface{})
	assert.Equal(t, 1.0, data["summary"].(map[string]interface{})["total_alarms"])
	critical := data["critical_moments"].([]interface{})
	require.Len(t, critical, 1)
	assert.Equal(t, "fear", critical[0].(map[string]interface{})["dangerous_person_emotion"])

	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report/"+id+"/chart", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body2, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body2), "Danger timeline")
	assert.Contains(t, string(body2), "lobby_cam_analyzed.mp4")
}

func TestAdminDB_FollowsLatestCompletedRun(t *testing.T) {
	e := newTestEnv(t, 0)
	a := &adminDB{jobs: e.reg}
	require.NoError(t, a.attach(http.NewServeMux()))
	defer a.close()

	assert.Error(t, a.refresh())

	first := e.submit(t)
	require.NoError(t, a.refresh())
	snap, err := e.reg.Get(first)
	require.NoError(t, err)
	assert.Equal(t, snap.Result.Files.Database, a.path)

	var n int
	require.NoError(t, a.store.DB().QueryRow(`SELECT COUNT(*) FROM alarm_events`).Scan(&n))
	assert.Equal(t, 1, n)

	require.NoError(t, a.close())
	assert.Nil(t, a.store)
}

func TestConfinedToOutputDir(t *testing.T) {
	e := newTestEnv(t, 0)
	id := e.submit(t)

	outside := filepath.Join(t.TempDir(), "other.db")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	assert.False(t, e.srv.confined(outside))

	snap, err := e.reg.Get(id)
	require.NoError(t, err)
	assert.True(t, e.srv.confined(snap.Result.Files.Database))
}
