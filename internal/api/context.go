package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
)

type authKey struct{}

// withAuth attaches the resolved AuthContext for the lifetime of the
// request (spec §4.10's "extract the bearer credential and attach the
// resolved AuthContext to the request").
func withAuth(r *auth.Resolver, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		cred := bearerCredential(req)
		actx := r.Resolve(cred)
		ctx := context.WithValue(req.Context(), authKey{}, actx)
		next(w, req.WithContext(ctx))
	}
}

func bearerCredential(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func authFrom(r *http.Request) *auth.Context {
	if v := r.Context().Value(authKey{}); v != nil {
		return v.(*auth.Context)
	}
	return &auth.Context{Role: auth.Public}
}
