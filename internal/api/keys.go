package api

import "net/http"

type createApiKeyRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleApiKeyCreate(w http.ResponseWriter, r *http.Request) {
	var req createApiKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	k, err := s.svc.ApiKey.Create(req.Name, authFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

func (s *Server) handleApiKeyList(w http.ResponseWriter, r *http.Request) {
	keys, err := s.svc.ApiKey.List(authFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (s *Server) handleApiKeyDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ApiKey.Delete(param(r, "prefix"), authFrom(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApiKeyUsage aggregates the buckets owned via this key's owner
// name (spec §4.7: "Aggregates over owned buckets").
func (s *Server) handleApiKeyUsage(w http.ResponseWriter, r *http.Request) {
	if !authFrom(r).IsAdmin() {
		writeError(w, http.StatusForbidden, "only an admin credential may view key usage", "")
		return
	}
	prefix := param(r, "prefix")
	keys, err := s.svc.ApiKey.List(authFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var ownerName string
	found := false
	for _, k := range keys {
		if k.Prefix == prefix {
			ownerName = k.Name
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "api key not found", "")
		return
	}
	totals, err := s.svc.Stats.Totals()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	for _, ou := range totals.StorageByOwner {
		if ou.Owner == ownerName {
			writeJSON(w, http.StatusOK, ou)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"owner": ownerName, "buckets": 0, "files": 0, "total_size": 0})
}
