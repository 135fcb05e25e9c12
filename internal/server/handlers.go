package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const serviceName = "signalscope"

// handleHealth reports healthy only when every database answers a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	dbs := make(map[string]string, len(s.databases))
	for name, db := range s.databases {
		if err := db.QuickCheck(ctx); err != nil {
			dbs[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		dbs[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":    state,
		"service":   serviceName,
		"databases": dbs,
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
