package api

import (
	"net/http"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

type createUploadTokenRequest struct {
	ExpiresIn  string `json:"expires_in"`
	MaxUploads *int64 `json:"max_uploads"`
}

func (s *Server) handleUploadTokenCreate(w http.ResponseWriter, r *http.Request) {
	var req createUploadTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	tok, err := s.svc.UploadToken.Create(param(r, "id"), req.ExpiresIn, req.MaxUploads, authFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

type issueDashboardRequest struct {
	ExpiresIn string `json:"expires_in"`
}

func (s *Server) handleDashboardIssue(w http.ResponseWriter, r *http.Request) {
	var req issueDashboardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	cred, err := s.svc.Dashboard.Issue(req.ExpiresIn, authFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

// handleDashboardMe backs GET /api/tokens/dashboard/me, the one endpoint
// that answers 401: for a missing credential, and for one that does not
// resolve to an Admin context.
func (s *Server) handleDashboardMe(w http.ResponseWriter, r *http.Request) {
	if bearerCredential(r) == "" {
		writeError(w, http.StatusUnauthorized, "missing dashboard credential", "")
		return
	}
	a := authFrom(r)
	if !a.IsAdmin() {
		writeServiceError(w, xerr.New(xerr.Unauthenticated, "invalid or expired dashboard credential"))
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Dashboard.Introspect(a))
}
