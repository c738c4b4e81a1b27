// Package service: Upload service (C6.3). Multipart and single-stream
// uploads share the same write-and-reconcile pipeline: StoreAtomic to the
// blob store, then reconcile the File/ShortUrl/Bucket rows in one
// metadata-store transaction.
package service

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	xmime "github.com/CarbonNeuron/carbon-files-sub000/internal/mime"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

type UploadService struct {
	d         *deps
	files     *FileService
	shortUrls *ShortUrlService
	tokens    *UploadTokenService
}

// MultipartFieldNames is the case-insensitive set of field names whose
// part filename supplies the logical path (spec §4.6.3); any other field
// name is itself used as the path.
var MultipartFieldNames = map[string]bool{
	"file": true, "files": true, "upload": true, "uploads": true, "blob": true,
}

type UploadedFile struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	ShortCode string    `json:"short_code,omitempty"`
	ShortUrl  string    `json:"short_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Authorize implements the shared "Admin, Owner, or a valid upload token
// matching the bucket" rule of spec §4.6.3/§4.7. When tokenStr is
// non-empty it is validated once, up front; the returned token (if any)
// must be passed to ConsumeToken for usage accounting.
func (s *UploadService) Authorize(bucketID string, a *auth.Context, tokenStr string) (*store.UploadToken, error) {
	var bucketOwner string
	err := s.d.store.View(func(tx *store.Tx) error {
		b, err := tx.GetBucket(bucketID)
		if err != nil {
			return wrapBucketErr(bucketID, err)
		}
		bucketOwner = b.Owner
		return nil
	})
	if err != nil {
		return nil, err
	}

	if a.CanManage(bucketOwner) {
		return nil, nil
	}
	if tokenStr == "" {
		return nil, xerr.Forbiddenf("caller cannot upload to bucket %s", bucketID)
	}
	tok, valid, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return nil, err
	}
	if !valid || tok.BucketID != bucketID {
		return nil, xerr.Forbiddenf("upload token is invalid or does not match bucket %s", bucketID)
	}
	return tok, nil
}

// CommitFile writes r to the blob store and reconciles the metadata rows
// for (bucketID, logicalPath), preserving an existing shortCode on
// re-upload (spec §3 File invariant, §4.6.3).
func (s *UploadService) CommitFile(bucketID, logicalPath string, r io.Reader) (*UploadedFile, error) {
	lowerPath := strings.ToLower(logicalPath)
	size, err := s.d.blob.StoreAtomic(bucketID, lowerPath, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, xerr.Overflowf("upload exceeds maximum allowed size of %d bytes", maxErr.Limit)
		}
		return nil, xerr.Wrap(xerr.Internal, "blob write failed", err)
	}

	n := now()
	name := path.Base(lowerPath)
	mimeType := xmime.Lookup(name)

	var result UploadedFile
	var eventType string
	err = s.d.store.Update(func(tx *store.Tx) error {
		existing, getErr := tx.GetFile(bucketID, lowerPath)
		if getErr == nil {
			oldSize := existing.Size
			existing.Size = size
			existing.MimeType = mimeType
			existing.UpdatedAt = n
			if err := tx.PutFile(existing); err != nil {
				return err
			}
			if _, err := tx.IncrBucketAggregates(bucketID, 0, size-oldSize); err != nil {
				return err
			}
			result = UploadedFile{
				Path: existing.Path, Name: existing.Name, Size: existing.Size,
				MimeType: existing.MimeType, ShortCode: existing.ShortCode,
				CreatedAt: existing.CreatedAt, UpdatedAt: existing.UpdatedAt,
			}
			eventType = "updated"
			return nil
		}
		if getErr != store.ErrNotFound {
			return xerr.Wrap(xerr.Internal, "metadata store", getErr)
		}

		code, err := s.shortUrls.generateUniqueCode(tx)
		if err != nil {
			return err
		}
		f := &store.File{
			BucketID: bucketID, Path: lowerPath, Name: name, Size: size,
			MimeType: mimeType, ShortCode: code, CreatedAt: n, UpdatedAt: n,
		}
		if err := tx.PutFile(f); err != nil {
			return err
		}
		if err := tx.PutShortUrl(&store.ShortUrl{Code: code, BucketID: bucketID, FilePath: lowerPath, CreatedAt: n}); err != nil {
			return err
		}
		if _, err := tx.IncrBucketAggregates(bucketID, 1, size); err != nil {
			return err
		}
		result = UploadedFile{
			Path: f.Path, Name: f.Name, Size: f.Size, MimeType: f.MimeType,
			ShortCode: f.ShortCode, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt,
		}
		eventType = "created"
		return nil
	})
	if err != nil {
		// Compensate: the blob committed but the row did not. Remove it so
		// the on-disk/row invariant (spec §3, testable property #1) holds.
		_ = s.d.blob.DeleteBlob(bucketID, lowerPath)
		return nil, err
	}

	result.ShortUrl = "/api/buckets/" + bucketID + "/files/" + result.Path + "/content"
	s.d.cache.Invalidate(cache.FileKey(bucketID, lowerPath))
	s.d.cache.Invalidate(cache.BucketKey(bucketID))
	s.d.cache.Invalidate(cache.StatsKey)
	if result.ShortCode != "" {
		s.d.cache.Invalidate(cache.ShortKey(result.ShortCode))
	}

	fileCopy := result
	if eventType == "created" {
		s.d.hub.FileCreated(bucketID, lowerPath, &fileCopy)
	} else {
		s.d.hub.FileUpdated(bucketID, lowerPath, &fileCopy)
	}
	return &result, nil
}

// ConsumeToken increments a token's usage by count after a batch of
// files has been committed (spec §4.6.3's "each file committed increments
// uploadsUsed by one").
func (s *UploadService) ConsumeToken(tok *store.UploadToken, count int64) {
	if tok == nil || count == 0 {
		return
	}
	_ = s.tokens.IncrementUsage(tok.Token, count)
}
