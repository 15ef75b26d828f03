package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/api/devices", s.handleListDevices)
	r.Post("/api/control", s.handleControl)
	r.Get("/api/health", s.handleHealth)
	r.Get(s.wsPath(), s.handleWebSocket)

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path != "" {
		return s.wsCfg.Path
	}
	return "/ws"
}

// handleListDevices returns every registered device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry().List())
}

// controlRequest is the POST /api/control body.
type controlRequest struct {
	DeviceID string `json:"deviceId"`
	Relay    int    `json:"relay"`
	State    bool   `json:"state"`
}

// handleControl applies a relay command from the dashboard. The command
// flows through the engine so suppression windows are marked the same
// way chat commands mark them.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.engine.SetSwitch(r.Context(), req.DeviceID, req.Relay, req.State)
	switch {
	case errors.Is(err, device.ErrInvalidRelay):
		writeBadRequest(w, "relay must be between 1 and 4")
		return
	case errors.Is(err, device.ErrNotFound):
		writeNotFound(w, "device not found")
		return
	case err != nil:
		s.logger.Error("dashboard control failed",
			"device", req.DeviceID, "relay", req.Relay, "error", err)
		writeInternalError(w, "command failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": s.registry().Count(),
		"clients": s.hub.ClientCount(),
	})
}
