// Package server exposes the dashboard to the rendering layer over HTTP and
// WebSocket.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/history"
	"codeberg.org/mutker/devdash/internal/logger"
	"codeberg.org/mutker/devdash/internal/source"
	"codeberg.org/mutker/devdash/internal/telemetry"
	"github.com/gorilla/mux"
)

const (
	maxBodyBytes    = 1 << 16
	shutdownTimeout = 5 * time.Second
)

// Backend is what the API needs from the dashboard.
type Backend interface {
	State() telemetry.View
	OnRefreshRequested()
	StepGoal() int
	OnStepGoalChanged(ctx context.Context, goal int) error
	RecordSteps(at time.Time, steps int) error
	History(ctx context.Context, limit int) ([]history.Sample, error)
}

type Server struct {
	backend Backend
	router  *mux.Router
	log     logger.Logger
	started time.Time
}

// New builds the router. live, when not nil, is mounted at /ws.
func New(backend Backend, live http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		backend: backend,
		router:  mux.NewRouter(),
		log:     log,
		started: time.Now(),
	}
	s.setupRoutes(live)

	return s
}

func (s *Server) setupRoutes(live http.Handler) {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/goal", s.handleGetGoal).Methods(http.MethodGet)
	api.HandleFunc("/goal", s.handleSetGoal).Methods(http.MethodPut)
	api.HandleFunc("/steps", s.handleSteps).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.Use(jsonMiddleware)

	if live != nil {
		s.router.Handle("/ws", live).Methods(http.MethodGet)
	}

	s.router.Use(s.loggingMiddleware)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errFactory := errors.New()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("API listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return errFactory.Wrap(errors.ErrMainLoop, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrade pass through the logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New().WithMessage(errors.ErrNotImplemented, "response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response is the envelope of every API reply.
type Response struct {
	Success bool             `json:"success"`
	Data    any              `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
	Code    errors.ErrorCode `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, err error) {
	code, _ := errors.CodeOf(err)
	w.WriteHeader(statusFor(code))
	_ = json.NewEncoder(w).Encode(Response{Success: false, Error: err.Error(), Code: code})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrInvalidGoal, errors.ErrInvalidArgument:
		return http.StatusBadRequest
	case source.ErrUnavailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	respondJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Truncate(time.Second).String(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.backend.State())
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.backend.OnRefreshRequested()
	respondJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// GoalRequest is the body of PUT /api/goal.
type GoalRequest struct {
	Goal int `json:"goal"`
}

func (s *Server) handleGetGoal(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, GoalRequest{Goal: s.backend.StepGoal()})
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.backend.OnStepGoalChanged(r.Context(), req.Goal); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, GoalRequest{Goal: s.backend.StepGoal()})
}

// StepsRequest is the body of POST /api/steps. A zero At means now.
type StepsRequest struct {
	Steps int       `json:"steps"`
	At    time.Time `json:"at,omitempty"`
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	var req StepsRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.backend.RecordSteps(req.At, req.Steps); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]int{"recorded": req.Steps})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, errors.New().WithData(errors.ErrInvalidArgument, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	samples, err := s.backend.History(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, samples)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New().Wrap(errors.ErrInvalidArgument, err)
	}
	return nil
}
