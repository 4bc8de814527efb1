// Package health serves the liveness, readiness and metrics endpoints of
// long-running race-edge services.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Check reports whether one dependency is usable
type Check func(ctx context.Context) error

// HealthResponse represents the JSON response for liveness endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
}

// ReadyResponse represents the JSON response for the readiness endpoint.
type ReadyResponse struct {
	Status      string            `json:"status"`
	Service     string            `json:"service"`
	Checks      map[string]string `json:"checks,omitempty"`
	LastRefresh *RefreshStatus    `json:"last_refresh,omitempty"`
	Duration    string            `json:"duration,omitempty"`
}

// RefreshStatus is the outcome of the latest cache refresh
type RefreshStatus struct {
	FinishedAt time.Time `json:"finished_at"`
	Merged     int       `json:"merged"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Config holds the configuration for the server.
type Config struct {
	ServiceName string
	Version     string
	// Addr is the listen address, ":9090" when empty
	Addr string
	// Metrics is mounted at MetricsPath when set
	Metrics     http.Handler
	MetricsPath string
	Logger      logrus.FieldLogger
}

// Server serves /health, /live, /ready and optionally metrics
type Server struct {
	cfg    Config
	server *http.Server
	logger logrus.FieldLogger

	mu          sync.RWMutex
	ready       bool
	checks      map[string]Check
	lastRefresh *RefreshStatus
}

// NewServer creates a server. It is not ready until SetReady(true).
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":9090"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		cfg:    cfg,
		logger: log.WithField("component", "health_server"),
		checks: make(map[string]Check),
	}
}

// AddCheck registers a readiness check under name
func (s *Server) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// SetReady marks the server as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady returns whether the server is ready.
func (s *Server) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// RecordRefresh stores the outcome of a refresh for the readiness report
func (s *Server) RecordRefresh(merged, failed int, err error) {
	status := &RefreshStatus{FinishedAt: time.Now().UTC(), Merged: merged, Failed: failed}
	if err != nil {
		status.Error = err.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRefresh = status
}

// Handler returns the routes without starting a listener
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/live", s.handleLive)
	r.Get("/ready", s.handleReady)
	if s.cfg.Metrics != nil {
		r.Handle(s.cfg.MetricsPath, s.cfg.Metrics)
	}
	return r
}

// Start listens in the background until ctx ends
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr":    ln.Addr().String(),
			"service": s.cfg.ServiceName,
		}).Info("Health server starting")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Health server error")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			s.logger.WithError(err).Warn("Health server shutdown failed")
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Health server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.cfg.ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.cfg.Version,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: s.cfg.ServiceName})
}

// handleReady runs every registered check
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	s.mu.RLock()
	ready := s.ready
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	last := s.lastRefresh
	s.mu.RUnlock()
	sort.Strings(names)

	results := map[string]string{"service": "ok"}
	healthy := ready
	if !ready {
		results["service"] = "not_ready"
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		err := checks[name](ctx)
		cancel()
		if err != nil {
			healthy = false
			results[name] = fmt.Sprintf("error: %v", err)
			continue
		}
		results[name] = "ok"
	}

	resp := ReadyResponse{
		Status:      "ok",
		Service:     s.cfg.ServiceName,
		Checks:      results,
		LastRefresh: last,
		Duration:    time.Since(start).String(),
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
