package api

import (
	"bytes"
	"net/http"
	"path/filepath"

	"github.com/securityvision/analyzer/internal/httputil"
	"github.com/securityvision/analyzer/internal/report"
	"github.com/securityvision/analyzer/internal/store"
)

// buildReport runs the report queries against a completed job's database.
// The name of the analysed video is returned alongside.
func (s *Server) buildReport(w http.ResponseWriter, r *http.Request) (*report.Report, string, bool) {
	res, ok := s.completedResult(w, r)
	if !ok {
		return nil, "", false
	}
	if !s.confined(res.Files.Database) || !s.fs.Exists(res.Files.Database) {
		httputil.WriteError(w, r, httputil.NotFound("Database file not found"))
		return nil, "", false
	}
	st, err := store.OpenExisting(res.Files.Database)
	if err != nil {
		httputil.WriteError(w, r, httputil.Internal("Failed to open database", err))
		return nil, "", false
	}
	defer st.Close()

	rep, err := report.Build(r.Context(), st)
	if err != nil {
		httputil.WriteError(w, r, httputil.Internal("Failed to build report", err))
		return nil, "", false
	}
	return rep, filepath.Base(res.Files.AnalyzedVideo), true
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	rep, _, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "data": rep})
}

func (s *Server) reportChart(w http.ResponseWriter, r *http.Request) {
	rep, name, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, rep, name); err != nil {
		httputil.WriteError(w, r, httputil.Internal("Failed to render chart", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
