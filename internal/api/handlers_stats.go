package api

import (
	"net/http"
)

func (s *Server) handleDeliveryStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reporter == nil {
		jsonError(w, "delivery stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": s.deps.Reporter.Stats().Snapshot(),
	})
}
