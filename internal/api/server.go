// Package api serves stored finder runs over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/simplefinder/internal/db"
	"github.com/banshee-data/simplefinder/internal/finder"
	"github.com/banshee-data/simplefinder/internal/httputil"
	"github.com/banshee-data/simplefinder/internal/monitoring"
	"github.com/banshee-data/simplefinder/internal/report"
	"github.com/banshee-data/simplefinder/internal/version"
)

// ANSI escape codes for status colouring
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Store is the subset of *db.DB the handlers read from.
type Store interface {
	ListRuns(limit int) ([]db.Run, error)
	Summary(runID string) (*db.RunSummary, error)
	CandidatesForEvent(runID, eventID string) ([]finder.Candidate, error)
	RunCandidates(runID string) ([]finder.Candidate, error)
}

var _ Store = (*db.DB)(nil)

type Server struct {
	store Store
}

func NewServer(store Store) *Server {
	return &Server{store: store}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
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
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{run}", s.showRun)
	mux.HandleFunc("GET /api/runs/{run}/events/{event}", s.listCandidates)
	mux.HandleFunc("GET /api/runs/{run}/distributions", s.showDistributions)
	mux.HandleFunc("GET /api/runs/{run}/report", s.showReport)
	return mux
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Current())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		monitoring.Logf("failed to list runs: %v", err)
		httputil.InternalServerError(w, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.Summary(r.PathValue("run"))
	if s.fail(w, err) {
		return
	}
	httputil.WriteJSONOK(w, sum)
}

func (s *Server) listCandidates(w http.ResponseWriter, r *http.Request) {
	run := r.PathValue("run")
	if _, err := s.store.Summary(run); s.fail(w, err) {
		return
	}
	cands, err := s.store.CandidatesForEvent(run, r.PathValue("event"))
	if s.fail(w, err) {
		return
	}
	httputil.WriteJSONOK(w, toCandidateJSON(cands))
}

// distribution is one histogram's summary as served by the API.
type distribution struct {
	Name    string         `json:"name"`
	Summary report.Summary `json:"summary"`
	Edges   []float64      `json:"edges,omitempty"`
	Counts  []float64      `json:"counts,omitempty"`
}

func (s *Server) showDistributions(w http.ResponseWriter, r *http.Request) {
	hs, ok := s.histograms(w, r.PathValue("run"))
	if !ok {
		return
	}
	out := make([]distribution, 0, len(hs))
	for _, h := range hs {
		edges, counts := h.Counts()
		out = append(out, distribution{Name: h.Name, Summary: h.Summarise(), Edges: edges, Counts: counts})
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	run := r.PathValue("run")
	hs, ok := s.histograms(w, run)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, "run "+run, hs); err != nil {
		monitoring.Logf("failed to render report for run %s: %v", run, err)
	}
}

func (s *Server) histograms(w http.ResponseWriter, run string) ([]report.Histogram, bool) {
	if _, err := s.store.Summary(run); s.fail(w, err) {
		return nil, false
	}
	cands, err := s.store.RunCandidates(run)
	if s.fail(w, err) {
		return nil, false
	}
	return report.Collect(cands), true
}

// fail writes the error response for err and reports whether it did.
func (s *Server) fail(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, db.ErrRunNotFound):
		httputil.NotFound(w, err.Error())
	default:
		monitoring.Logf("api: %v", err)
		httputil.InternalServerError(w, "database error")
	}
	return true
}
