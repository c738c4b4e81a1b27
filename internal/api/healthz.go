package api

import "net/http"

// handleHealthz is public and unauthenticated by design: infrastructure
// probes should not need a credential (spec §4.7/§7).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store unreachable", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
