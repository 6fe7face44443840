package api

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Printf("api: readiness check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "DOWN"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}
