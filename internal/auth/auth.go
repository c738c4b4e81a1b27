// Package auth is the authentication resolver (C5): it maps a bearer
// credential to one of {Admin, Owner(name, keyPrefix), Public}, performing
// the admin-key compare in constant time and signing/validating the
// short-lived dashboard credential with golang-jwt/jwt/v4, the same
// library the teacher's authn package uses for its own Token type.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xlog"
)

type Role int

const (
	Public Role = iota
	Owner
	Admin
)

// Context is the transient, per-request authentication result (spec §3).
// It is never persisted.
type Context struct {
	Role      Role
	OwnerName string
	KeyPrefix string
	// ExpiresAt is set only for a dashboard-credential-resolved Context, so
	// the dashboard's self-introspection endpoint can report remaining
	// validity (spec §4.6.7).
	ExpiresAt *time.Time
}

// CanManage is the predicate of spec §3/GLOSSARY: Admin unconditionally,
// Owner only when bucketOwner equals its own name.
func (c *Context) CanManage(bucketOwner string) bool {
	if c == nil {
		return false
	}
	return c.Role == Admin || (c.Role == Owner && c.OwnerName == bucketOwner)
}

func (c *Context) IsAdmin() bool { return c != nil && c.Role == Admin }
func (c *Context) IsPublic() bool { return c == nil || c.Role == Public }

const apiKeyCredentialTTL = 30 * time.Second

type Resolver struct {
	adminKey  string
	jwtSecret []byte
	store     *store.Store
	cache     *cache.Cache
}

func NewResolver(adminKey, jwtSecret string, st *store.Store, c *cache.Cache) *Resolver {
	return &Resolver{adminKey: adminKey, jwtSecret: []byte(jwtSecret), store: st, cache: c}
}

type cachedOwner struct {
	name   string
	prefix string
}

// Resolve implements spec §4.5's four-credential-kind procedure. It never
// returns an error for an unrecognized credential — it degrades to
// Public, per "never 401 here — the route's authorization check does
// that."
func (r *Resolver) Resolve(credential string) *Context {
	cred := strings.TrimSpace(credential)
	if cred == "" {
		return &Context{Role: Public}
	}
	if constantTimeEqual(cred, r.adminKey) {
		return &Context{Role: Admin}
	}
	if strings.HasPrefix(cred, "cf4_") {
		return r.resolveApiKey(cred)
	}
	if claims, err := r.ValidateDashboardCredential(cred); err == nil && claims.Scope == "admin" {
		var exp *time.Time
		if claims.ExpiresAt != nil {
			t := claims.ExpiresAt.Time
			exp = &t
		}
		return &Context{Role: Admin, ExpiresAt: exp}
	}
	return &Context{Role: Public}
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		// still run a compare of equal-length buffers so timing does not
		// leak the true length difference trivially.
		subtle.ConstantTimeCompare([]byte(a), []byte(a))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (r *Resolver) resolveApiKey(cred string) *Context {
	if cached, ok := r.cache.Get("apikeycred:" + cred); ok {
		co := cached.(cachedOwner)
		return &Context{Role: Owner, OwnerName: co.name, KeyPrefix: co.prefix}
	}

	parts := strings.SplitN(cred, "_", 3)
	if len(parts) != 3 {
		return &Context{Role: Public}
	}
	prefix := parts[0] + "_" + parts[1]
	secret := parts[2]

	var key *store.ApiKey
	err := r.store.View(func(tx *store.Tx) error {
		k, err := tx.GetApiKey(prefix)
		if err != nil {
			return err
		}
		key = k
		return nil
	})
	if err != nil || key == nil {
		return &Context{Role: Public}
	}

	sum := sha256.Sum256([]byte(secret))
	if hex.EncodeToString(sum[:]) != key.HashedSecret {
		return &Context{Role: Public}
	}

	now := time.Now().UTC()
	if err := r.store.Update(func(tx *store.Tx) error {
		return tx.TouchApiKeyLastUsed(prefix, now)
	}); err != nil {
		xlog.Warningf("auth: failed to stamp lastUsedAt for %s: %v", prefix, err)
	}

	r.cache.Set("apikeycred:"+cred, cachedOwner{name: key.Name, prefix: prefix}, apiKeyCredentialTTL, "")
	return &Context{Role: Owner, OwnerName: key.Name, KeyPrefix: prefix}
}

// HashSecret is the ApiKey secret-hashing routine of spec §3: hex SHA-256.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// --- Dashboard credential (spec §4.6.7) ---

type DashboardClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

const DashboardCap = 24 * time.Hour

func (r *Resolver) IssueDashboardCredential(expiresIn time.Duration) (string, error) {
	if expiresIn <= 0 || expiresIn > DashboardCap {
		return "", xerr.Validationf("dashboard credential expiry must be between 0 and %s", DashboardCap)
	}
	now := time.Now().UTC()
	claims := DashboardClaims{
		Scope: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(r.jwtSecret)
}

// ValidateDashboardCredential checks signature and expiry; the 24h cap is
// enforced only at issuance (spec §9: validators must still reject
// past-expiry tokens regardless of the cap, clocks may drift).
func (r *Resolver) ValidateDashboardCredential(raw string) (*DashboardClaims, error) {
	var claims DashboardClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, xerr.New(xerr.Unauthenticated, "unexpected signing method")
		}
		return r.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return nil, xerr.New(xerr.Unauthenticated, "invalid or expired dashboard credential")
	}
	return &claims, nil
}
