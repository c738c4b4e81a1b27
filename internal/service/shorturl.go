package service

import (
	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/ids"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

type ShortUrlService struct{ d *deps }

const maxCodeRetries = 10

// generateUniqueCode retries a fresh 6-char code on collision (spec §3/§4.6.5).
func (s *ShortUrlService) generateUniqueCode(tx *store.Tx) (string, error) {
	for i := 0; i < maxCodeRetries; i++ {
		code := ids.ShortCode()
		if !tx.ShortUrlExists(code) {
			return code, nil
		}
	}
	return "", xerr.New(xerr.Conflict, "could not allocate a unique short code")
}

// Create implements spec §4.6.5 Create, standalone from an upload (used
// when a caller wants a short code for an already-uploaded file).
func (s *ShortUrlService) Create(bucketID, filePath string) (*store.ShortUrl, error) {
	var su store.ShortUrl
	err := s.d.store.Update(func(tx *store.Tx) error {
		if _, err := tx.GetFile(bucketID, filePath); err != nil {
			if err == store.ErrNotFound {
				return xerr.NotFoundf("file %s not found", filePath)
			}
			return xerr.Wrap(xerr.Internal, "metadata store", err)
		}
		code, err := s.generateUniqueCode(tx)
		if err != nil {
			return err
		}
		su = store.ShortUrl{Code: code, BucketID: bucketID, FilePath: filePath, CreatedAt: now()}
		if err := tx.PutShortUrl(&su); err != nil {
			return err
		}
		f, _ := tx.GetFile(bucketID, filePath)
		f.ShortCode = code
		return tx.PutFile(f)
	})
	if err != nil {
		return nil, err
	}
	s.d.cache.Invalidate(cache.FileKey(bucketID, filePath))
	return &su, nil
}

type ResolvedShortUrl struct {
	BucketID string
	FilePath string
}

// Resolve is cache-first; returns not-found if the bucket is expired or
// the code is unknown (spec §4.6.5).
func (s *ShortUrlService) Resolve(code string) (*ResolvedShortUrl, error) {
	key := cache.ShortKey(code)
	v, err := s.d.cache.GetOrPopulate(key, cache.TTLShort, "", func() (interface{}, error) {
		var su *store.ShortUrl
		err := s.d.store.View(func(tx *store.Tx) error {
			got, err := tx.GetShortUrl(code)
			if err != nil {
				if err == store.ErrNotFound {
					return xerr.NotFoundf("short code %s not found", code)
				}
				return xerr.Wrap(xerr.Internal, "metadata store", err)
			}
			su = got
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &ResolvedShortUrl{BucketID: su.BucketID, FilePath: su.FilePath}, nil
	})
	if err != nil {
		return nil, err
	}
	resolved := v.(*ResolvedShortUrl)

	var expired bool
	_ = s.d.store.View(func(tx *store.Tx) error {
		b, err := tx.GetBucket(resolved.BucketID)
		if err != nil {
			expired = true
			return nil
		}
		expired = b.Expired(now())
		return nil
	})
	if expired {
		return nil, xerr.NotFoundf("short code %s not found", code)
	}
	return resolved, nil
}

// Delete removes only the reverse row; the file keeps existing (spec §4.6.5).
func (s *ShortUrlService) Delete(code string, a *auth.Context) error {
	err := s.d.store.Update(func(tx *store.Tx) error {
		su, err := tx.GetShortUrl(code)
		if err != nil {
			if err == store.ErrNotFound {
				return xerr.NotFoundf("short code %s not found", code)
			}
			return xerr.Wrap(xerr.Internal, "metadata store", err)
		}
		b, err := tx.GetBucket(su.BucketID)
		if err != nil {
			return wrapBucketErr(su.BucketID, err)
		}
		if !a.CanManage(b.Owner) {
			return xerr.Forbiddenf("caller cannot manage bucket %s", su.BucketID)
		}
		if f, err := tx.GetFile(su.BucketID, su.FilePath); err == nil {
			f.ShortCode = ""
			if err := tx.PutFile(f); err != nil {
				return err
			}
		}
		return tx.DeleteShortUrl(code)
	})
	if err != nil {
		return err
	}
	s.d.cache.Invalidate(cache.ShortKey(code))
	return nil
}
