// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/savdobot/core/buildinfo"
	"github.com/m3rciful/savdobot/core/logger"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Server exposes /healthz and /readyz.
type Server struct {
	mu     sync.RWMutex
	checks map[string]Check
	srv    *http.Server
	log    *slog.Logger
}

// New returns a server listening on addr once Start is called.
func New(addr string) *Server {
	s := &Server{checks: make(map[string]Check), log: logger.Component("health")}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// AddCheck registers a readiness check under name.
func (s *Server) AddCheck(name string, c Check) {
	if c == nil {
		return
	}
	s.mu.Lock()
	s.checks[name] = c
	s.mu.Unlock()
}

// Router builds the chi router serving the probes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.String()})
	})
	r.Get("/readyz", s.ready)
	return r
}

type readyReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = s.checks[name]
	}
	s.mu.RUnlock()

	report := readyReport{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for i, name := range names {
		if err := checks[i](r.Context()); err != nil {
			report.Checks[name] = err.Error()
			report.Status = "fail"
			code = http.StatusServiceUnavailable
			s.log.Warn("readiness check failed",
				slog.String("event", "health.check"),
				slog.String("check", name),
				slog.String("err", err.Error()),
			)
			continue
		}
		report.Checks[name] = "ok"
	}
	writeJSON(w, code, report)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves in the background. Listener errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.log.Info("health listening",
			slog.String("event", "health.listen"),
			slog.String("listen", s.srv.Addr),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server failed",
				slog.String("event", "health.listen"),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
