package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"slotcal/internal/clock"
	"slotcal/internal/ics"
	appLog "slotcal/internal/log"
	"slotcal/internal/planner"
	"slotcal/internal/schedule"
	"slotcal/internal/webadapter"
)

const (
	maxRequestBytes = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Server exposes the scheduler over HTTP.
type Server struct {
	planner *planner.Planner
	clock   clock.Clock
	mux     *http.ServeMux
}

type Option func(*Server)

// WithClock replaces the wall clock used for ad-hoc schedule requests.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// NewServer constructs a new Server.
func NewServer(p *planner.Planner, opts ...Option) *Server {
	s := &Server{
		planner: p,
		clock:   clock.System(),
		mux:     http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartServer serves the API on listen until ctx is cancelled, then shuts
// down gracefully.
func StartServer(ctx context.Context, listen string, s *Server) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/plan", s.handlePlan)
	s.mux.HandleFunc("GET /api/plan.ics", s.handlePlanICS)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSchedule runs one stateless pass over the posted UI rows.
//
// POST /api/schedule
//
//	{"tasks":[...], "events":[...], "hourSettings":{...}, "schedulingSettings":{"min_buffer":15}}
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req webadapter.Request
	if err := dec.Decode(&req); err != nil {
		appLog.Warn("api schedule: bad request", "err", err.Error())
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LookaheadDays < 0 || req.LookaheadDays > schedule.MaxLookaheadDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("lookaheadDays must be between 0 and %d", schedule.MaxLookaheadDays))
		return
	}

	started := time.Now()
	res := webadapter.Schedule(req, s.clock.Now())
	appLog.Info("api schedule request",
		"tasks", len(req.Tasks),
		"events", len(req.Events),
		"scheduled", len(res.Events),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, res)
}

// handlePlan returns the last plan built from the config file.
func (s *Server) handlePlan(w http.ResponseWriter, _ *http.Request) {
	plan, ok := s.planner.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no plan yet")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handlePlanICS serves the scheduled events of the last plan as a calendar
// feed.
func (s *Server) handlePlanICS(w http.ResponseWriter, _ *http.Request) {
	plan, ok := s.planner.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no plan yet")
		return
	}
	var buf bytes.Buffer
	err := ics.WriteICS(&buf, plan.Events, ics.ExportOptions{
		Name:  "slotcal " + plan.Timezone,
		Stamp: plan.GeneratedAt,
	})
	if err != nil {
		appLog.Error("api plan.ics: export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export plan")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleRefresh runs a pass now and returns it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	plan, err := s.planner.Run(r.Context())
	if err != nil {
		appLog.Error("api refresh failed", err)
		if plan == nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, plan)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
