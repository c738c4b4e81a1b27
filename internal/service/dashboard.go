package service

import (
	"time"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/expiry"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

// DashboardService issues and introspects the short-lived, admin-scoped
// credential an operator dashboard uses in place of the raw admin key
// (spec §4.6.7/§9).
type DashboardService struct{ d *deps }

type DashboardCredential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue is Admin-only: the caller must hold the admin key or a valid
// dashboard credential, both of which resolve to Admin. expiresIn
// follows the same preset/ISO-8601/unix shapes as bucket and upload-token
// expiries, defaulting to 1h and hard-capped at auth.DashboardCap (spec
// §4.1).
func (s *DashboardService) Issue(expiresIn string, a *auth.Context) (*DashboardCredential, error) {
	if !a.IsAdmin() {
		return nil, xerr.Forbiddenf("only an admin credential may issue a dashboard credential")
	}
	n := now()
	exp, err := expiry.ParseCapped(expiresIn, "1h", n, auth.DashboardCap)
	if err != nil {
		return nil, err
	}
	tok, err := s.d.auth.IssueDashboardCredential(exp.Sub(n))
	if err != nil {
		return nil, err
	}
	return &DashboardCredential{Token: tok, ExpiresAt: *exp}, nil
}

// Introspect backs the dashboard's "/me" endpoint.
type Identity struct {
	Role             string `json:"role"`
	OwnerName        string `json:"owner_name,omitempty"`
	RemainingSeconds *int64 `json:"remaining_seconds,omitempty"`
}

func (s *DashboardService) Introspect(a *auth.Context) *Identity {
	id := &Identity{}
	switch {
	case a.IsAdmin():
		id.Role = "admin"
	case a.Role == auth.Owner:
		id.Role, id.OwnerName = "owner", a.OwnerName
	default:
		id.Role = "public"
	}
	if a != nil && a.ExpiresAt != nil {
		remaining := int64(a.ExpiresAt.Sub(now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		id.RemainingSeconds = &remaining
	}
	return id
}
