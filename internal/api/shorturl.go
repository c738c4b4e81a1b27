package api

import "net/http"

// handleShortRedirect backs GET /s/{code}: a 302 to the content URL
// (spec §4.7).
func (s *Server) handleShortRedirect(w http.ResponseWriter, r *http.Request) {
	resolved, err := s.svc.ShortUrl.Resolve(param(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	target := "/api/buckets/" + resolved.BucketID + "/files/" + resolved.FilePath + "/content"
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleShortDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ShortUrl.Delete(param(r, "code"), authFrom(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
