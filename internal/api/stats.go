package api

import "net/http"

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !authFrom(r).IsAdmin() {
		writeError(w, http.StatusForbidden, "only an admin credential may view stats", "")
		return
	}
	totals, err := s.svc.Stats.Totals()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
