package api

import (
	"net/http"
	"strings"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/config"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
)

// Server is the root pipeline (C10): it owns the router, the configured
// CORS allowlist, the auth resolver that tags every request, and the
// domain services each handler calls into.
type Server struct {
	svc    *service.Services
	auth   *auth.Resolver
	cfg    *config.Config
	store  *store.Store
	router *Router
}

func NewServer(svc *service.Services, ar *auth.Resolver, cfg *config.Config, st *store.Store) *Server {
	s := &Server{svc: svc, auth: ar, cfg: cfg, store: st, router: NewRouter()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router

	r.Handle(http.MethodGet, "/healthz", s.handleHealthz)

	r.Handle(http.MethodPost, "/api/keys", s.handleApiKeyCreate)
	r.Handle(http.MethodGet, "/api/keys", s.handleApiKeyList)
	r.Handle(http.MethodDelete, "/api/keys/:prefix", s.handleApiKeyDelete)
	r.Handle(http.MethodGet, "/api/keys/:prefix/usage", s.handleApiKeyUsage)

	r.Handle(http.MethodPost, "/api/buckets", s.handleBucketsCreate)
	r.Handle(http.MethodGet, "/api/buckets", s.handleBucketsList)
	r.Handle(http.MethodGet, "/api/buckets/:id", s.handleBucketGet)
	r.Handle(http.MethodPatch, "/api/buckets/:id", s.handleBucketPatch)
	r.Handle(http.MethodDelete, "/api/buckets/:id", s.handleBucketDelete)
	r.Handle(http.MethodGet, "/api/buckets/:id/summary", s.handleBucketSummary)
	r.Handle(http.MethodGet, "/api/buckets/:id/zip", s.handleBucketZip)
	r.Handle(http.MethodHead, "/api/buckets/:id/zip", s.handleBucketZip)
	r.Handle(http.MethodGet, "/api/buckets/:id/files", s.handleFilesList)
	r.Handle(http.MethodGet, "/api/buckets/:id/files/*", s.dispatchFileOrContent)
	r.Handle(http.MethodHead, "/api/buckets/:id/files/*", s.dispatchFileOrContent)
	r.Handle(http.MethodPatch, "/api/buckets/:id/files/*", s.limitBody(s.dispatchFilePatch))
	r.Handle(http.MethodDelete, "/api/buckets/:id/files/*", s.handleFileDelete)
	r.Handle(http.MethodPost, "/api/buckets/:id/upload", s.limitBody(s.handleUploadMultipart))
	r.Handle(http.MethodPut, "/api/buckets/:id/upload/stream", s.limitBody(s.handleUploadStream))
	r.Handle(http.MethodPost, "/api/buckets/:id/tokens", s.handleUploadTokenCreate)

	r.Handle(http.MethodPost, "/api/tokens/dashboard", s.handleDashboardIssue)
	r.Handle(http.MethodGet, "/api/tokens/dashboard/me", s.handleDashboardMe)

	r.Handle(http.MethodGet, "/api/stats", s.handleStats)

	r.Handle(http.MethodGet, "/s/:code", s.handleShortRedirect)
	r.Handle(http.MethodDelete, "/api/short/:code", s.handleShortDelete)
}

// limitBody caps an upload body at cfg.MaxUploadSize (0 means no cap) with
// http.MaxBytesReader; UploadService.CommitFile and FileService.Patch turn
// the resulting *http.MaxBytesError into an Overflow failure, answered 413.
func (s *Server) limitBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.MaxUploadSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
		}
		next(w, r)
	}
}

// ServeHTTP wires the CORS allowlist, forwarded-header trust and the
// auth-resolution middleware around the router, per spec §4.10.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.applyForwardedHeaders(r)
	s.applyCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	withAuth(s.auth, s.router.ServeHTTP)(w, r)
}

func (s *Server) applyForwardedHeaders(r *http.Request) {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		r.RemoteAddr = strings.SplitN(ip, ",", 2)[0]
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		r.URL.Scheme = proto
	}
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if !s.cfg.AllowedOrigin(origin) {
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Content-Range, X-Append")
	h.Set("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges, Content-Length, ETag, Last-Modified")
}
