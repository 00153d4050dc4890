// Package health exposes liveness and capture statistics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Status values reported by /readiness
const (
	StatusCapturing = "capturing"
	StatusWarmingUp = "warming_up"
	StatusStopping  = "stopping"
)

// Probe supplies the data served by the endpoints.
type Probe interface {
	// State returns one of the Status values
	State() string
	// Snapshot returns a JSON-serializable statistics value
	Snapshot() any
}

// Server serves /health, /readiness and /stats.
type Server struct {
	probe   Probe
	started time.Time
	srv     *http.Server
}

// NewServer creates a server bound to addr (not yet listening).
func NewServer(addr string, probe Probe) *Server {
	s := &Server{
		probe:   probe,
		started: time.Now(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the endpoint mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.HandleFunc("/stats", s.StatsHandler)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	slog.Info("health: http server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health: http server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// LivenessHandler handles /health (process alive)
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

// ReadinessHandler handles /readiness. Returns 503 once the session is
// shutting down.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	state := s.probe.State()

	code := http.StatusOK
	if state == StatusStopping {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": state})
}

// StatsHandler handles /stats (full statistics snapshot)
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.probe.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("health: encode response failed", "error", err)
	}
}
