package api

import (
	"net/http"
	"strings"
)

const contentSuffix = "/content"

// dispatchFileOrContent implements the single route pattern that spec
// §4.7 splits by trailing segment: ".../files/{*path}" for metadata,
// ".../files/{*path}/content" for the byte stream.
func (s *Server) dispatchFileOrContent(w http.ResponseWriter, r *http.Request) {
	p := param(r, "path")
	if strings.HasSuffix(p, contentSuffix) {
		setParam(r, "path", strings.TrimSuffix(p, contentSuffix))
		s.handleFileContent(w, r)
		return
	}
	s.handleFileMetadata(w, r)
}

// dispatchFilePatch requires the "/content" suffix; PATCH against the
// bare metadata path is not a defined operation.
func (s *Server) dispatchFilePatch(w http.ResponseWriter, r *http.Request) {
	p := param(r, "path")
	if !strings.HasSuffix(p, contentSuffix) {
		writeError(w, http.StatusBadRequest, "PATCH only applies to .../content", "")
		return
	}
	setParam(r, "path", strings.TrimSuffix(p, contentSuffix))
	s.handleFilePatch(w, r)
}

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r.URL.Query())
	res, err := s.svc.File.List(param(r, "id"), page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleFileMetadata serves GET/HEAD on the bare
// /api/buckets/{id}/files/{*path}: the file's metadata row.
func (s *Server) handleFileMetadata(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.File.GetMetadata(param(r, "id"), param(r, "path"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.File.Delete(param(r, "id"), param(r, "path"), authFrom(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
