package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/securityvision/analyzer/internal/httputil"
	"github.com/securityvision/analyzer/internal/jobs"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/pipeline"
)

// multipartMemory is the part of an upload kept in memory while parsing.
const multipartMemory = 32 << 20

var invalidTypeMessage = "Invalid file type. Allowed types: " + strings.Join(jobs.AllowedExtensions, ", ")

type downloadLinks struct {
	Video    string `json:"video"`
	Database string `json:"database"`
}

type taskView struct {
	jobs.Snapshot
	DownloadLinks *downloadLinks `json:"download_links,omitempty"`
}

func newTaskView(snap jobs.Snapshot) taskView {
	v := taskView{Snapshot: snap}
	if snap.Status == jobs.StatusCompleted {
		v.DownloadLinks = &downloadLinks{
			Video:    "/download/video/" + snap.ID,
			Database: "/download/database/" + snap.ID,
		}
	}
	return v
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"timestamp":    s.clock.Now().Format(time.RFC3339),
		"active_tasks": s.jobs.Len(),
	})
}

func (s *Server) tooLarge(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, r, httputil.TooLarge(
		fmt.Sprintf("File too large. Maximum size is %dMB.", s.maxUpload>>20)))
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		s.tooLarge(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.tooLarge(w, r)
			return
		}
		httputil.WriteError(w, r, httputil.BadRequest("No video file provided"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		httputil.WriteError(w, r, httputil.BadRequest("No video file provided"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		httputil.WriteError(w, r, httputil.BadRequest("No video file selected"))
		return
	}
	if !jobs.Allowed(header.Filename) {
		httputil.WriteError(w, r, httputil.BadRequest(invalidTypeMessage))
		return
	}

	snap, err := s.jobs.Submit(header.Filename, file)
	if err != nil {
		if errors.Is(err, jobs.ErrUnsupportedType) {
			httputil.WriteError(w, r, httputil.BadRequest(invalidTypeMessage))
			return
		}
		monitoring.Warnf("[API] Upload of %s failed: %v", header.Filename, err)
		httputil.WriteError(w, r, httputil.Internal("Upload failed: "+err.Error(), err))
		return
	}

	httputil.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Video uploaded and analysis started",
		"task_id":  snap.ID,
		"filename": snap.Filename,
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	list := s.jobs.List()
	views := make([]taskView, len(list))
	for i, snap := range list {
		views[i] = newTaskView(snap)
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "data": views})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, httputil.NotFound("Task not found"))
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "data": newTaskView(snap)})
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	res, err := s.jobs.Result(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		httputil.WriteError(w, r, httputil.NotFound("Task not found"))
		return
	case err != nil:
		httputil.WriteError(w, r, httputil.BadRequest("Analysis not completed yet"))
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "data": res})
}

// completedResult resolves a finished job for the download and report routes.
func (s *Server) completedResult(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	res, err := s.jobs.Result(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		httputil.WriteError(w, r, httputil.NotFound("Task not found"))
		return nil, false
	case err != nil:
		httputil.WriteError(w, r, httputil.BadRequest("Analysis not completed"))
		return nil, false
	case res.Files == nil:
		httputil.WriteError(w, r, httputil.NotFound("Result files not found"))
		return nil, false
	}
	return res, true
}

func (s *Server) downloadVideo(w http.ResponseWriter, r *http.Request) {
	res, ok := s.completedResult(w, r)
	if !ok {
		return
	}
	s.serveFile(w, r, res.Files.AnalyzedVideo, "video/mp4", "Video file not found")
}

func (s *Server) downloadDatabase(w http.ResponseWriter, r *http.Request) {
	res, ok := s.completedResult(w, r)
	if !ok {
		return
	}
	s.serveFile(w, r, res.Files.Database, "application/octet-stream", "Database file not found")
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, contentType, missing string) {
	if !s.confined(path) {
		httputil.WriteError(w, r, httputil.NotFound(missing))
		return
	}
	info, err := s.fs.Stat(path)
	if err != nil || info.IsDir() {
		httputil.WriteError(w, r, httputil.NotFound(missing))
		return
	}
	f, err := s.fs.Open(path)
	if err != nil {
		httputil.WriteError(w, r, httputil.NotFound(missing))
		return
	}
	defer f.Close()

	name := filepath.Base(path)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) cleanup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.jobs.Cleanup(id)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		httputil.WriteError(w, r, httputil.NotFound("Task not found"))
		return
	case err != nil:
		monitoring.Warnf("[API] Cleanup of %s failed: %v", id, err)
		httputil.WriteError(w, r, httputil.Internal("Cleanup failed: "+err.Error(), err))
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Task cleaned up successfully",
	})
}
