package service

import (
	"errors"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/blob"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xlog"
)

type FileService struct{ d *deps }

type FileListResult struct {
	Files []store.File `json:"files"`
	Total int          `json:"total"`
}

// List implements spec §4.6.2 List: paginated, 404 if bucket missing or
// expired.
func (s *FileService) List(bucketID string, page Page) (*FileListResult, error) {
	page = page.normalized()
	if _, err := s.ensureBucketLive(bucketID); err != nil {
		return nil, err
	}

	var files []store.File
	err := s.d.store.View(func(tx *store.Tx) error {
		return tx.AscendFilesByBucket(bucketID, func(f *store.File) bool {
			files = append(files, *f)
			return true
		})
	})
	if err != nil {
		return nil, xerr.Wrap(xerr.Internal, "metadata store", err)
	}
	sortFiles(files, page.Sort, page.Desc)

	total := len(files)
	lo := page.Offset
	if lo > total {
		lo = total
	}
	hi := lo + page.Limit
	if hi > total {
		hi = total
	}
	return &FileListResult{Files: files[lo:hi], Total: total}, nil
}

func sortFiles(files []store.File, field string, desc bool) {
	less := func(i, j int) bool {
		switch field {
		case "name":
			return files[i].Name < files[j].Name
		case "size":
			return files[i].Size < files[j].Size
		case "updatedAt":
			return files[i].UpdatedAt.Before(files[j].UpdatedAt)
		case "mimeType":
			return files[i].MimeType < files[j].MimeType
		case "createdAt":
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		default: // path
			return files[i].Path < files[j].Path
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func (s *FileService) ensureBucketLive(bucketID string) (*store.Bucket, error) {
	var b *store.Bucket
	err := s.d.store.View(func(tx *store.Tx) error {
		got, err := tx.GetBucket(bucketID)
		if err != nil {
			return wrapBucketErr(bucketID, err)
		}
		b = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	if b.Expired(now()) {
		return nil, xerr.NotFoundf("bucket %s not found", bucketID)
	}
	return b, nil
}

// GetMetadata is cache-first (spec §4.6.2).
func (s *FileService) GetMetadata(bucketID, path string) (*store.File, error) {
	path = strings.ToLower(path)
	key := cache.FileKey(bucketID, path)
	v, err := s.d.cache.GetOrPopulate(key, cache.TTLFile, bucketID, func() (interface{}, error) {
		var f *store.File
		err := s.d.store.View(func(tx *store.Tx) error {
			got, err := tx.GetFile(bucketID, path)
			if err != nil {
				if err == store.ErrNotFound {
					return xerr.NotFoundf("file %s not found in bucket %s", path, bucketID)
				}
				return xerr.Wrap(xerr.Internal, "metadata store", err)
			}
			f = got
			return nil
		})
		return f, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.File), nil
}

// Delete implements spec §4.6.2 Delete: cascades the blob and the file's
// ShortUrl, decrements bucket aggregates, invalidates and notifies.
func (s *FileService) Delete(bucketID, path string, a *auth.Context) error {
	path = strings.ToLower(path)
	var size int64
	err := s.d.store.Update(func(tx *store.Tx) error {
		b, err := tx.GetBucket(bucketID)
		if err != nil {
			return wrapBucketErr(bucketID, err)
		}
		if !a.CanManage(b.Owner) {
			return xerr.Forbiddenf("caller cannot manage bucket %s", bucketID)
		}
		f, err := tx.GetFile(bucketID, path)
		if err != nil {
			if err == store.ErrNotFound {
				return xerr.NotFoundf("file %s not found", path)
			}
			return xerr.Wrap(xerr.Internal, "metadata store", err)
		}
		size = f.Size
		if err := tx.DeleteFile(bucketID, path); err != nil {
			return err
		}
		if su, err := tx.FindShortUrlByPath(bucketID, path); err == nil {
			if err := tx.DeleteShortUrl(su.Code); err != nil {
				return err
			}
		}
		_, err = tx.IncrBucketAggregates(bucketID, -1, -size)
		return err
	})
	if err != nil {
		return err
	}
	if err := s.d.blob.DeleteBlob(bucketID, path); err != nil {
		return xerr.Wrap(xerr.Internal, "failed to remove blob", err)
	}
	s.d.cache.Invalidate(cache.FileKey(bucketID, path))
	s.d.cache.Invalidate(cache.BucketKey(bucketID))
	s.d.cache.Invalidate(cache.StatsKey)
	s.d.hub.FileDeleted(bucketID, path)
	return nil
}

// UpdateFileSize adjusts a file row and propagates to bucket aggregates
// (spec §4.6.2).
func (s *FileService) UpdateFileSize(bucketID, path string, newSize int64) (*store.File, error) {
	path = strings.ToLower(path)
	var updated store.File
	err := s.d.store.Update(func(tx *store.Tx) error {
		f, err := tx.GetFile(bucketID, path)
		if err != nil {
			if err == store.ErrNotFound {
				return xerr.NotFoundf("file %s not found", path)
			}
			return xerr.Wrap(xerr.Internal, "metadata store", err)
		}
		delta := newSize - f.Size
		f.Size = newSize
		f.UpdatedAt = now()
		if err := tx.PutFile(f); err != nil {
			return err
		}
		if _, err := tx.IncrBucketAggregates(bucketID, 0, delta); err != nil {
			return err
		}
		updated = *f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.d.cache.Invalidate(cache.FileKey(bucketID, path))
	s.d.cache.Invalidate(cache.BucketKey(bucketID))
	s.d.cache.Invalidate(cache.StatsKey)
	s.d.hub.FileUpdated(bucketID, path, &updated)
	return &updated, nil
}

// OpenContent resolves (bucketId, path) to its metadata row and an open,
// read-only handle on the backing blob, for the HTTP layer's range/
// conditional download logic (spec §4.7).
func (s *FileService) OpenContent(bucketID, path string) (*store.File, *os.File, error) {
	path = strings.ToLower(path)
	f, err := s.GetMetadata(bucketID, path)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.d.blob.OpenRead(bucketID, path)
	if err != nil {
		if err == blob.ErrNotFound {
			return nil, nil, xerr.NotFoundf("file %s not found", path)
		}
		return nil, nil, xerr.Wrap(xerr.Internal, "blob open failed", err)
	}
	return f, rc, nil
}

// Patch implements spec §4.6.4: in-place overwrite of [offset, offset+len)
// when appendMode is false, or append-to-current-end when it is true. The
// exclusive lock for the patch's duration lives in blob.PatchFile;
// callers (the caller of an upload token) are authorized the same way as
// CommitFile, via UploadService.Authorize.
func (s *FileService) Patch(bucketID, path string, r io.Reader, offset int64, appendMode bool) (*store.File, error) {
	path = strings.ToLower(path)
	if _, err := s.ensureBucketLive(bucketID); err != nil {
		return nil, err
	}
	if _, err := s.GetMetadata(bucketID, path); err != nil {
		return nil, err
	}

	newSize, err := s.d.blob.PatchFile(bucketID, path, r, offset, appendMode)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, blob.ErrNotFound):
			return nil, xerr.NotFoundf("file %s not found", path)
		case errors.Is(err, blob.ErrUnsatisfiable):
			return nil, xerr.New(xerr.RangeUnsatisfiable, "patch offset out of range")
		case errors.As(err, &maxErr):
			return nil, xerr.Overflowf("patch exceeds maximum allowed size of %d bytes", maxErr.Limit)
		default:
			return nil, xerr.Wrap(xerr.Internal, "blob patch failed", err)
		}
	}
	return s.UpdateFileSize(bucketID, path, newSize)
}

// UpdateLastUsed stamps the bucket's lastUsedAt and bumps its lifetime
// downloadCount on successful download (spec §3, §4.6.2); fire-and-forget,
// failures are logged, never surfaced.
func (s *FileService) UpdateLastUsed(bucketID string) {
	if err := s.d.store.Update(func(tx *store.Tx) error {
		return tx.IncrBucketDownloadCount(bucketID, now())
	}); err != nil {
		xlog.Warningf("service: failed to record download for bucket %s: %v", bucketID, err)
	}
	s.d.cache.Invalidate(cache.BucketKey(bucketID))
	s.d.cache.Invalidate(cache.StatsKey)
}
