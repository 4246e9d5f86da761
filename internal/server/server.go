// Package server exposes the skill over HTTP for the voice platform.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/yairfalse/fleetvoice/internal/skill"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP transport in front of a skill.Handler.
type Server struct {
	handler skill.Handler
	logger  zerolog.Logger
	ready   atomic.Bool
	srv     *http.Server
}

// New builds a Server listening on addr. metrics, when non-nil, is mounted
// on /metrics.
func New(addr string, handler skill.Handler, metrics http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		handler: handler,
		logger:  logger.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/skill", s.handleSkill)
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// SetReady marks the server ready (or not) to take turns.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("starting skill server")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var env skill.RequestEnvelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&env); err != nil {
		s.logger.Warn().Err(err).Msg("bad request body")
		writeText(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.handler.Handle(r.Context(), env)
	switch {
	case errors.Is(err, skill.ErrInvalidIntent), errors.Is(err, skill.ErrInvalidRequest):
		s.logger.Error().Err(err).Str("request_id", env.Request.RequestID).Msg("rejected turn")
		writeText(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Str("request_id", env.Request.RequestID).Msg("turn failed")
		writeText(w, http.StatusInternalServerError, "internal error")
		return
	}

	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("write response failed")
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
