package server

import (
	"net/http"
)

// handleHealth reports service liveness and database health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.db.QuickCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, s.log, code, map[string]interface{}{
		"status":  status,
		"service": "folio",
	})
}
