package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
)

// handleUploadMultipart implements spec §4.6.3's multipart entry point:
// streamingly parsed, one commit per part, with upload-token usage
// accounted once per committed file.
func (s *Server) handleUploadMultipart(w http.ResponseWriter, r *http.Request) {
	bucketID := param(r, "id")
	a := authFrom(r)
	tok, err := s.svc.Upload.Authorize(bucketID, a, r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data", "")
		return
	}

	var uploaded []*service.UploadedFile
	var committed int64
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed multipart body", "")
			return
		}
		logicalPath := pathForPart(part)
		if logicalPath == "" {
			part.Close()
			continue
		}
		uf, err := s.svc.Upload.CommitFile(bucketID, logicalPath, part)
		part.Close()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		uploaded = append(uploaded, uf)
		committed++
	}

	s.svc.Upload.ConsumeToken(tok, committed)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"uploaded": uploaded})
}

// pathForPart implements the field-name rule of spec §4.6.3: the part's
// filename supplies the path for the five well-known field names
// (case-insensitive), otherwise the field name itself is the path.
func pathForPart(part *multipart.Part) string {
	name := strings.ToLower(part.FormName())
	if service.MultipartFieldNames[name] {
		return part.FileName()
	}
	return part.FormName()
}

// handleUploadStream implements spec §4.6.3's single-stream entry point:
// the request body is the blob verbatim.
func (s *Server) handleUploadStream(w http.ResponseWriter, r *http.Request) {
	bucketID := param(r, "id")
	a := authFrom(r)
	tok, err := s.svc.Upload.Authorize(bucketID, a, r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename query parameter is required", "")
		return
	}

	uf, err := s.svc.Upload.CommitFile(bucketID, filename, r.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.svc.Upload.ConsumeToken(tok, 1)
	writeJSON(w, http.StatusCreated, uf)
}
