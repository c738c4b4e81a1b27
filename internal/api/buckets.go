package api

import (
	"net/http"
	"strconv"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
)

type createBucketRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ExpiresIn   string `json:"expires_in"`
}

func (s *Server) handleBucketsCreate(w http.ResponseWriter, r *http.Request) {
	var req createBucketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	b, err := s.svc.Bucket.Create(req.Name, req.Description, req.ExpiresIn, authFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleBucketsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageFromQuery(q)
	includeExpired := q.Get("include_expired") == "true"
	res, err := s.svc.Bucket.List(page, authFrom(r), includeExpired)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func pageFromQuery(q interface{ Get(string) string }) service.Page {
	p := service.Page{Sort: q.Get("sort")}
	if v := q.Get("offset"); v != "" {
		p.Offset, _ = strconv.Atoi(v)
	}
	if v := q.Get("limit"); v != "" {
		p.Limit, _ = strconv.Atoi(v)
	}
	p.Desc = q.Get("desc") == "true"
	return p
}

func (s *Server) handleBucketGet(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Bucket.GetById(param(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type patchBucketRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ExpiresIn   *string `json:"expires_in"`
}

func (s *Server) handleBucketPatch(w http.ResponseWriter, r *http.Request) {
	var req patchBucketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	patch := service.BucketPatch{Name: req.Name, Description: req.Description, ExpiresIn: req.ExpiresIn}
	b, err := s.svc.Bucket.Update(param(r, "id"), patch, authFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleBucketDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Bucket.Delete(param(r, "id"), authFrom(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBucketSummary(w http.ResponseWriter, r *http.Request) {
	text, err := s.svc.Bucket.Summary(param(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

func (s *Server) handleBucketZip(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")
	if r.Method == http.MethodHead {
		n, err := s.svc.Bucket.ZipEntryCount(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("X-Entry-Count", strconv.Itoa(n))
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="bucket.zip"`)
	w.WriteHeader(http.StatusOK)
	if err := s.svc.Bucket.ZipStream(r.Context(), id, w); err != nil {
		// headers are already flushed; nothing more to do but log.
		logZipErr(err)
	}
}
