package service

import (
	"strings"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/ids"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

// ApiKeyService manages the long-lived owner credentials of spec §4.7's
// /api/keys* routes. Only Admin may mint or revoke one; the full secret is
// returned exactly once, at creation.
type ApiKeyService struct{ d *deps }

type CreatedApiKey struct {
	Key    string `json:"key"`
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

func (s *ApiKeyService) Create(name string, a *auth.Context) (*CreatedApiKey, error) {
	if !a.IsAdmin() {
		return nil, xerr.Forbiddenf("only an admin credential may create api keys")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return nil, xerr.Validationf("name is required and must be 1-255 chars")
	}

	full, prefix := ids.ApiKey()
	k := &store.ApiKey{
		Prefix: prefix, HashedSecret: auth.HashSecret(strings.SplitN(full, "_", 3)[2]),
		Name: name, CreatedAt: now(),
	}
	err := s.d.store.Update(func(tx *store.Tx) error {
		return tx.PutApiKey(k)
	})
	if err != nil {
		return nil, err
	}
	return &CreatedApiKey{Key: full, Prefix: prefix, Name: name}, nil
}

func (s *ApiKeyService) List(a *auth.Context) ([]store.ApiKey, error) {
	if !a.IsAdmin() {
		return nil, xerr.Forbiddenf("only an admin credential may list api keys")
	}
	var out []store.ApiKey
	err := s.d.store.View(func(tx *store.Tx) error {
		return tx.AscendApiKeys(func(k *store.ApiKey) bool {
			out = append(out, *k)
			return true
		})
	})
	return out, err
}

func (s *ApiKeyService) Delete(prefix string, a *auth.Context) error {
	if !a.IsAdmin() {
		return xerr.Forbiddenf("only an admin credential may delete api keys")
	}
	return s.d.store.Update(func(tx *store.Tx) error {
		if _, err := tx.GetApiKey(prefix); err != nil {
			if err == store.ErrNotFound {
				return xerr.NotFoundf("api key %s not found", prefix)
			}
			return xerr.Wrap(xerr.Internal, "metadata store", err)
		}
		return tx.DeleteApiKey(prefix)
	})
}
