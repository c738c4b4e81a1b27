package service

import (
	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/expiry"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/ids"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

// UploadTokenService implements spec §4.6.6: scoped, expiring credentials
// that let an unauthenticated caller upload into one bucket.
type UploadTokenService struct {
	d             *deps
	invalidFilter *cache.InvalidTokenFilter
}

// Create mints a new token for bucketID; only the bucket's owner or Admin
// may do so (spec §4.6.6).
func (s *UploadTokenService) Create(bucketID, expiresIn string, maxUploads *int64, a *auth.Context) (*store.UploadToken, error) {
	n := now()
	exp, err := expiry.Parse(expiresIn, "1d", n)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, xerr.Validationf("upload tokens must expire")
	}
	if maxUploads != nil && *maxUploads <= 0 {
		return nil, xerr.Validationf("max_uploads must be positive")
	}

	tok := &store.UploadToken{
		Token: ids.UploadToken(), BucketID: bucketID,
		CreatedAt: n, ExpiresAt: *exp, MaxUploads: maxUploads,
	}
	err = s.d.store.Update(func(tx *store.Tx) error {
		b, err := tx.GetBucket(bucketID)
		if err != nil {
			return wrapBucketErr(bucketID, err)
		}
		if !a.CanManage(b.Owner) {
			return xerr.Forbiddenf("caller cannot manage bucket %s", bucketID)
		}
		return tx.PutUploadToken(tok)
	})
	if err != nil {
		return nil, err
	}
	s.d.cache.Invalidate(cache.StatsKey)
	return tok, nil
}

// tokenValidity is the cached (bucketId, isValid) pair keyed by
// "uploadtoken:{token}" (spec §4.4/§4.6.6), TTL cache.TTLToken.
type tokenValidity struct {
	BucketID string
	Valid    bool
}

func (s *UploadTokenService) cacheValidity(token, bucketID string, valid bool) {
	s.d.cache.Set(cache.TokenKey(token), tokenValidity{BucketID: bucketID, Valid: valid}, cache.TTLToken, bucketID)
}

// Validate checks a token string for fitness to upload: cache-first
// against the "uploadtoken:{token}" entry (spec §4.4/§4.6.6), then a
// metadata-store lookup for expiry/exhaustion (done whether or not the
// cuckoo filter has the token marked invalid). A false return with a nil error means
// "not valid", distinct from a store failure.
func (s *UploadTokenService) Validate(token string) (*store.UploadToken, bool, error) {
	if v, ok := s.d.cache.Get(cache.TokenKey(token)); ok {
		tv := v.(tokenValidity)
		if !tv.Valid {
			return nil, false, nil
		}
		return &store.UploadToken{Token: token, BucketID: tv.BucketID}, true, nil
	}

	if s.invalidFilter.MightBeInvalid(token) {
		// Probably dead; still confirm against the store since the filter
		// can false-positive.
		tok, ok, err := s.lookup(token)
		if err == nil && !ok {
			return nil, false, nil
		}
		return tok, ok, err
	}
	return s.lookup(token)
}

func (s *UploadTokenService) lookup(token string) (*store.UploadToken, bool, error) {
	var tok *store.UploadToken
	err := s.d.store.View(func(tx *store.Tx) error {
		got, err := tx.GetUploadToken(token)
		if err != nil {
			if err == store.ErrNotFound {
				return nil
			}
			return xerr.Wrap(xerr.Internal, "metadata store", err)
		}
		tok = got
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if tok == nil {
		s.cacheValidity(token, "", false)
		return nil, false, nil
	}
	n := now()
	if tok.Expired(n) || tok.Exhausted() {
		s.invalidFilter.MarkInvalid(token)
		s.cacheValidity(token, tok.BucketID, false)
		return nil, false, nil
	}
	s.cacheValidity(token, tok.BucketID, true)
	return tok, true, nil
}

// IncrementUsage bumps UploadsUsed by count; once the token becomes
// expired or exhausted as a result, it is marked in the fast-reject filter.
func (s *UploadTokenService) IncrementUsage(token string, count int64) error {
	var tok *store.UploadToken
	err := s.d.store.Update(func(tx *store.Tx) error {
		updated, err := tx.IncrUploadTokenUsage(token, count)
		if err != nil {
			if err == store.ErrNotFound {
				return xerr.NotFoundf("upload token not found")
			}
			return xerr.Wrap(xerr.Internal, "metadata store", err)
		}
		tok = updated
		return nil
	})
	if err != nil {
		return err
	}
	if tok.Expired(now()) || tok.Exhausted() {
		s.invalidFilter.MarkInvalid(token)
		s.cacheValidity(token, tok.BucketID, false)
	} else {
		s.d.cache.Invalidate(cache.TokenKey(token))
	}
	return nil
}

// Delete revokes a token before its natural expiry (spec §4.6.6).
func (s *UploadTokenService) Delete(token string, a *auth.Context) error {
	return s.d.store.Update(func(tx *store.Tx) error {
		tok, err := tx.GetUploadToken(token)
		if err != nil {
			if err == store.ErrNotFound {
				return xerr.NotFoundf("upload token not found")
			}
			return xerr.Wrap(xerr.Internal, "metadata store", err)
		}
		b, err := tx.GetBucket(tok.BucketID)
		if err != nil {
			return wrapBucketErr(tok.BucketID, err)
		}
		if !a.CanManage(b.Owner) {
			return xerr.Forbiddenf("caller cannot manage bucket %s", tok.BucketID)
		}
		s.invalidFilter.MarkInvalid(token)
		s.cacheValidity(token, tok.BucketID, false)
		return tx.DeleteUploadToken(token)
	})
}

// ResetInvalidFilter clears the fast-reject filter so a token string that
// is later reused (a fresh token colliding with an old, expired one) is
// never permanently shadowed; invoked by the cleanup sweeper each pass.
func (s *UploadTokenService) ResetInvalidFilter() {
	s.invalidFilter.Reset()
}

// List returns every outstanding token for a bucket (spec §4.6.6).
func (s *UploadTokenService) List(bucketID string, a *auth.Context) ([]store.UploadToken, error) {
	var out []store.UploadToken
	err := s.d.store.View(func(tx *store.Tx) error {
		b, err := tx.GetBucket(bucketID)
		if err != nil {
			return wrapBucketErr(bucketID, err)
		}
		if !a.CanManage(b.Owner) {
			return xerr.Forbiddenf("caller cannot manage bucket %s", bucketID)
		}
		return tx.AscendUploadTokensByBucket(bucketID, func(u *store.UploadToken) bool {
			out = append(out, *u)
			return true
		})
	})
	return out, err
}
