package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/blob"
)

// contentHeaders writes the fixed set of spec §4.7 headers shared by GET,
// HEAD and the 304/206/416 short-circuits.
func (s *Server) contentHeaders(w http.ResponseWriter, bucketID, path string, size int64, updatedAt time.Time, mimeType string) string {
	etag := fmt.Sprintf("%q", fmt.Sprintf("%d-%s", size, blob.LastModifiedTicks(updatedAt.Unix())))
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", "public, no-cache")
	return etag
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	bucketID := param(r, "id")
	path := param(r, "path")

	f, rc, err := s.svc.File.OpenContent(bucketID, path)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer rc.Close()

	etag := s.contentHeaders(w, bucketID, path, f.Size, f.UpdatedAt, f.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))

	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, f.Name))
	}

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !f.UpdatedAt.After(t.Add(time.Second)) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	rangeHeader := r.Header.Get("Range")
	if ir := r.Header.Get("If-Range"); ir != "" && ir != etag {
		rangeHeader = ""
	}

	if rangeHeader == "" {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		io.Copy(w, rc)
		s.svc.File.UpdateLastUsed(bucketID)
		return
	}

	start, end, ok := parseRange(rangeHeader, f.Size)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", f.Size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable", "")
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, f.Size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := rc.Seek(start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(w, rc, length)
	s.svc.File.UpdateLastUsed(bucketID)
}

// parseRange supports the three single-range forms of spec §4.7:
// "s-e", "s-" (to end) and "-n" (suffix of n bytes). Multi-range lists
// are rejected as unsatisfiable, matching "multi-range lists are not
// supported".
func parseRange(header string, size int64) (start, end int64, ok bool) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	if parts[0] == "" {
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}
	if parts[1] == "" {
		return s, size - 1, true
	}
	e, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || e < s {
		return 0, 0, false
	}
	if e >= size {
		e = size - 1
	}
	return s, e, true
}

// handleFilePatch implements spec §4.6.4/§4.7's PATCH content semantics.
func (s *Server) handleFilePatch(w http.ResponseWriter, r *http.Request) {
	bucketID := param(r, "id")
	path := param(r, "path")
	a := authFrom(r)

	if _, err := s.svc.Upload.Authorize(bucketID, a, r.URL.Query().Get("token")); err != nil {
		writeServiceError(w, err)
		return
	}

	appendMode := strings.EqualFold(r.Header.Get("X-Append"), "true")
	var offset int64
	if !appendMode {
		cr := r.Header.Get("Content-Range")
		if cr == "" {
			writeError(w, http.StatusBadRequest, "Content-Range or X-Append is required", "")
			return
		}
		start, ok := parseContentRangeStart(cr)
		if !ok {
			writeError(w, http.StatusBadRequest, "malformed Content-Range", "")
			return
		}
		offset = start
	}

	updated, err := s.svc.File.Patch(bucketID, path, r.Body, offset, appendMode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// parseContentRangeStart reads the {start} out of "bytes {start}-{end}/*".
func parseContentRangeStart(header string) (int64, bool) {
	header = strings.TrimPrefix(header, "bytes ")
	dash := strings.IndexByte(header, '-')
	if dash < 0 {
		return 0, false
	}
	start, err := strconv.ParseInt(header[:dash], 10, 64)
	if err != nil || start < 0 {
		return 0, false
	}
	return start, true
}
