// Package api is the HTTP shell around the job registry: uploads, status
// polling, downloads, reports and the SQL debug console.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/securityvision/analyzer/internal/fsutil"
	"github.com/securityvision/analyzer/internal/jobs"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/security"
	"github.com/securityvision/analyzer/internal/timeutil"
)

// DefaultMaxUploadBytes caps an upload at 500 MB.
const DefaultMaxUploadBytes int64 = 500 << 20

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Options configure a Server.
type Options struct {
	// MaxUploadBytes defaults to DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// OutputDir, when set, confines downloads and reports to the registry's
	// output directory.
	OutputDir string
	// FS must be the filesystem the registry writes to. Defaults to the host.
	FS    fsutil.FileSystem
	Clock timeutil.Clock
}

type Server struct {
	jobs      *jobs.Registry
	fs        fsutil.FileSystem
	clock     timeutil.Clock
	maxUpload int64
	outputDir string
	admin     *adminDB
}

func NewServer(reg *jobs.Registry, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Server{
		jobs:      reg,
		fs:        opts.FS,
		clock:     opts.Clock,
		maxUpload: opts.MaxUploadBytes,
		outputDir: opts.OutputDir,
		admin:     &adminDB{jobs: reg},
	}
}

// Routes returns the HTTP handler of the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Post("/upload", s.upload)
	r.Get("/tasks", s.listTasks)
	r.Get("/status/{id}", s.status)
	r.Get("/results/{id}", s.results)
	r.Route("/download", func(r chi.Router) {
		r.Get("/video/{id}", s.downloadVideo)
		r.Get("/database/{id}", s.downloadDatabase)
	})
	r.Delete("/cleanup/{id}", s.cleanup)
	r.Route("/report/{id}", func(r chi.Router) {
		r.Get("/", s.report)
		r.Get("/chart", s.reportChart)
	})

	debug := http.NewServeMux()
	if err := s.admin.attach(debug); err != nil {
		monitoring.Warnf("[API] Debug routes disabled: %v", err)
	} else {
		r.Handle("/debug/*", debug)
	}
	return r
}

// confined reports whether path may be served.
func (s *Server) confined(path string) bool {
	if s.outputDir == "" {
		return true
	}
	if err := security.ValidatePathWithinDirectory(path, s.outputDir); err != nil {
		monitoring.Warnf("[API] Refusing to serve %s: %v", path, err)
		return false
	}
	return true
}

// Close releases the database held open by the debug console.
func (s *Server) Close() error {
	return s.admin.close()
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[API] [%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
