// Package api serves the run history stored by db.RunStore over HTTP, read
// only, and provides a client for it.
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/banshee-data/veto.report/internal/db"
	"github.com/banshee-data/veto.report/internal/httputil"
	"github.com/banshee-data/veto.report/internal/monitoring"
	"github.com/banshee-data/veto.report/internal/report"
	"github.com/banshee-data/veto.report/internal/security"
	"github.com/banshee-data/veto.report/internal/segment"
	"github.com/banshee-data/veto.report/internal/timeutil"
	"github.com/banshee-data/veto.report/internal/version"
	"github.com/banshee-data/veto.report/internal/veto"
)

// ANSI escape codes for request logging.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// DefaultListLimit caps GET /runs when no limit is given.
const DefaultListLimit = 50

// RunReader is the read side of db.RunStore.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]*db.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*db.RunSummary, error)
	Rounds(ctx context.Context, runID string) ([]veto.RoundRecord, error)
	Segments(ctx context.Context, runID string) (segment.Set, error)
	Skipped(ctx context.Context, runID string) ([]veto.SkippedChannel, error)
}

var _ RunReader = (*db.RunStore)(nil)

// RunDetail is the body of GET /runs/{runID}.
type RunDetail struct {
	*db.RunSummary
	Skipped []veto.SkippedChannel `json:"skipped"`
}

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type Server struct {
	runs  RunReader
	clock timeutil.Clock
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithClock sets the clock used to time requests.
func WithClock(c timeutil.Clock) ServerOption {
	return func(s *Server) { s.clock = c }
}

func NewServer(runs RunReader, opts ...ServerOption) *Server {
	s := &Server{runs: runs, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
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

// LoggingMiddleware logs method, path, query, status, and duration as
// measured by clock.
func LoggingMiddleware(clock timeutil.Clock) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clock.Now()
			lrw := &loggingResponseWriter{w, http.StatusOK}
			next.ServeHTTP(lrw, r)
			monitoring.Logf(
				"[%s] %s %s%s%s %vms",
				statusCodeColor(lrw.statusCode), r.Method,
				colorCyan, r.RequestURI, colorReset,
				float64(clock.Since(start).Nanoseconds())/1e6,
			)
		})
	}
}

// NewRouter builds the route table, wrapped in LoggingMiddleware.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(s.clock))
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{runID}", s.getRun).Methods(http.MethodGet)
	r.HandleFunc("/runs/{runID}/rounds", s.getRounds).Methods(http.MethodGet)
	r.HandleFunc("/runs/{runID}/segments", s.getSegments).Methods(http.MethodGet)
	r.HandleFunc("/runs/{runID}/chart", s.getChart).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// writeStoreError maps ErrRunNotFound to 404 and everything else to 500.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	monitoring.Logf("[api] %v", err)
	httputil.InternalServerError(w, "failed to read run history")
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSONOK(w, Health{Status: "ok", Version: version.Version})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if runs == nil {
		runs = []*db.RunSummary{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	sum, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	skipped, err := s.runs.Skipped(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if skipped == nil {
		skipped = []veto.SkippedChannel{}
	}
	httputil.WriteJSONOK(w, RunDetail{RunSummary: sum, Skipped: skipped})
}

// getRounds serves JSON, or the CSV round table with ?format=csv.
func (s *Server) getRounds(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	rounds, err := s.runs.Rounds(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		httputil.WriteJSONOK(w, rounds)
	case "csv":
		var buf bytes.Buffer
		if err := report.WriteRoundsCSV(&buf, rounds); err != nil {
			httputil.InternalServerError(w, "failed to render rounds")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+security.SanitizeFilename(runID)+`-rounds.csv"`)
		w.Write(buf.Bytes())
	default:
		httputil.BadRequest(w, "format must be json or csv")
	}
}

// getSegments serves JSON, or "start end" lines with ?format=txt.
func (s *Server) getSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := s.runs.Segments(r.Context(), mux.Vars(r)["runID"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		httputil.WriteJSONOK(w, segs)
	case "txt":
		var buf bytes.Buffer
		if err := report.WriteSegments(&buf, segs); err != nil {
			httputil.InternalServerError(w, "failed to render segments")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(buf.Bytes())
	default:
		httputil.BadRequest(w, "format must be json or txt")
	}
}

func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	sum, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	rounds, err := s.runs.Rounds(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteRoundsHTML(&buf, sum.Primary, rounds); err != nil {
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

// ListenAndServe serves the router on addr until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("[api] listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
