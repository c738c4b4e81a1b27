package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/expiry"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/ids"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

type BucketService struct{ d *deps }

type Page struct {
	Offset int
	Limit  int
	Sort   string
	Desc   bool
}

func (p Page) normalized() Page {
	if p.Limit <= 0 || p.Limit > 1000 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type BucketDetail struct {
	store.Bucket
	Files        []store.File `json:"files"`
	HasMoreFiles bool         `json:"has_more_files,omitempty"`
}

type BucketListResult struct {
	Buckets []store.Bucket `json:"buckets"`
	Total   int            `json:"total"`
}

const maxInlineFiles = 100

// Create implements spec §4.6.1 Create: name required, owner derived from
// auth, expiry parsed with a 1-week default, emits BucketCreated and
// invalidates the stats cache.
func (s *BucketService) Create(name, description, expiresIn string, a *auth.Context) (*store.Bucket, error) {
	if a.IsPublic() {
		return nil, xerr.Forbiddenf("public callers cannot create buckets")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return nil, xerr.Validationf("name is required and must be 1-255 chars")
	}
	if len(description) > 1000 {
		return nil, xerr.Validationf("description must be at most 1000 chars")
	}

	n := now()
	exp, err := expiry.Parse(expiresIn, "1w", n)
	if err != nil {
		return nil, err
	}

	owner := "admin"
	if a.Role == auth.Owner {
		owner = a.OwnerName
	}

	b := &store.Bucket{
		Name:        name,
		Description: description,
		Owner:       owner,
		CreatedAt:   n,
		ExpiresAt:   exp,
	}
	if a.Role == auth.Owner {
		b.OwnerKeyPrefix = a.KeyPrefix
	}

	const maxIDRetries = 10
	err = s.d.store.Update(func(tx *store.Tx) error {
		for i := 0; i < maxIDRetries; i++ {
			id := ids.BucketID()
			if _, err := tx.GetBucket(id); err == store.ErrNotFound {
				b.ID = id
				return tx.PutBucket(b)
			}
		}
		return xerr.New(xerr.Conflict, "could not allocate a unique bucket id")
	})
	if err != nil {
		return nil, err
	}

	s.d.cache.Invalidate(cache.StatsKey)
	s.d.hub.BucketCreated(b)
	return b, nil
}

// GetById is cache-first and returns the first 100 files (spec §4.6.1).
func (s *BucketService) GetById(id string) (*BucketDetail, error) {
	key := cache.BucketKey(id)
	v, err := s.d.cache.GetOrPopulate(key, cache.TTLBucket, id, func() (interface{}, error) {
		return s.loadDetail(id)
	})
	if err != nil {
		return nil, err
	}
	detail := v.(*BucketDetail)
	if detail.Expired(now()) {
		return nil, xerr.NotFoundf("bucket %s not found", id)
	}
	return detail, nil
}

func (s *BucketService) loadDetail(id string) (*BucketDetail, error) {
	var detail BucketDetail
	err := s.d.store.View(func(tx *store.Tx) error {
		b, err := tx.GetBucket(id)
		if err != nil {
			return wrapBucketErr(id, err)
		}
		detail.Bucket = *b
		var files []store.File
		if err := tx.AscendFilesByBucket(id, func(f *store.File) bool {
			files = append(files, *f)
			return true
		}); err != nil {
			return err
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		if len(files) > maxInlineFiles {
			detail.Files = files[:maxInlineFiles]
			detail.HasMoreFiles = true
		} else {
			detail.Files = files
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func wrapBucketErr(id string, err error) error {
	if err == store.ErrNotFound {
		return xerr.NotFoundf("bucket %s not found", id)
	}
	return xerr.Wrap(xerr.Internal, "metadata store", err)
}

// List implements spec §4.6.1 List: Admin sees all, Owner sees only its
// own, expired rows are excluded unless includeExpired && admin.
func (s *BucketService) List(page Page, a *auth.Context, includeExpired bool) (*BucketListResult, error) {
	page = page.normalized()
	n := now()
	var all []store.Bucket
	visit := func(b *store.Bucket) bool {
		if !(includeExpired && a.IsAdmin()) && b.Expired(n) {
			return true
		}
		all = append(all, *b)
		return true
	}
	err := s.d.store.View(func(tx *store.Tx) error {
		if a.Role == auth.Public {
			return nil
		}
		if a.Role == auth.Owner {
			return tx.AscendBucketsByOwner(a.OwnerName, visit)
		}
		return tx.AscendBuckets(visit)
	})
	if err != nil {
		return nil, xerr.Wrap(xerr.Internal, "metadata store", err)
	}

	sortBuckets(all, page.Sort, page.Desc)

	total := len(all)
	lo := page.Offset
	if lo > total {
		lo = total
	}
	hi := lo + page.Limit
	if hi > total {
		hi = total
	}
	return &BucketListResult{Buckets: all[lo:hi], Total: total}, nil
}

func sortBuckets(b []store.Bucket, field string, desc bool) {
	less := func(i, j int) bool {
		switch field {
		case "name":
			return b[i].Name < b[j].Name
		case "expiresAt":
			return bucketExpiryBefore(b[i], b[j])
		case "lastUsedAt":
			return bucketLastUsedBefore(b[i], b[j])
		case "totalSize":
			return b[i].TotalSize < b[j].TotalSize
		default: // createdAt, default sort
			return b[i].CreatedAt.Before(b[j].CreatedAt)
		}
	}
	if field == "" {
		desc = true // default createdAt desc
	}
	sort.Slice(b, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func bucketExpiryBefore(a, b store.Bucket) bool {
	if a.ExpiresAt == nil {
		return false
	}
	if b.ExpiresAt == nil {
		return true
	}
	return a.ExpiresAt.Before(*b.ExpiresAt)
}

func bucketLastUsedBefore(a, b store.Bucket) bool {
	if a.LastUsedAt == nil {
		return false
	}
	if b.LastUsedAt == nil {
		return true
	}
	return a.LastUsedAt.Before(*b.LastUsedAt)
}

type BucketPatch struct {
	Name        *string
	Description *string
	ExpiresIn   *string
}

// Update implements spec §4.6.1 Update.
func (s *BucketService) Update(id string, patch BucketPatch, a *auth.Context) (*store.Bucket, error) {
	if patch.Name == nil && patch.Description == nil && patch.ExpiresIn == nil {
		return nil, xerr.Validationf("at least one of name, description, expiresIn is required")
	}
	changes := map[string]interface{}{}
	var updated store.Bucket
	err := s.d.store.Update(func(tx *store.Tx) error {
		b, err := tx.GetBucket(id)
		if err != nil {
			return wrapBucketErr(id, err)
		}
		if !a.CanManage(b.Owner) {
			return xerr.Forbiddenf("caller cannot manage bucket %s", id)
		}
		if patch.Name != nil {
			n := strings.TrimSpace(*patch.Name)
			if n == "" || len(n) > 255 {
				return xerr.Validationf("name must be 1-255 chars")
			}
			changes["name"] = n
			b.Name = n
		}
		if patch.Description != nil {
			if len(*patch.Description) > 1000 {
				return xerr.Validationf("description must be at most 1000 chars")
			}
			changes["description"] = *patch.Description
			b.Description = *patch.Description
		}
		if patch.ExpiresIn != nil {
			exp, err := expiry.Parse(*patch.ExpiresIn, "", now())
			if err != nil {
				return err
			}
			changes["expires_at"] = exp
			b.ExpiresAt = exp
		}
		updated = *b
		return tx.PutBucket(b)
	})
	if err != nil {
		return nil, err
	}
	s.d.cache.InvalidateBucket(id)
	s.d.cache.Invalidate(cache.StatsKey)
	s.d.hub.BucketUpdated(id, changes)
	return &updated, nil
}

// Delete implements spec §4.6.1 Delete: cascades Files, ShortUrls,
// UploadTokens, removes the Bucket row, the blob tree, and every tracked
// cache entry for the bucket.
func (s *BucketService) Delete(id string, a *auth.Context) error {
	err := s.d.store.Update(func(tx *store.Tx) error {
		b, err := tx.GetBucket(id)
		if err != nil {
			return wrapBucketErr(id, err)
		}
		if !a.CanManage(b.Owner) {
			return xerr.Forbiddenf("caller cannot manage bucket %s", id)
		}
		if _, err := tx.DeleteFilesByBucket(id); err != nil {
			return err
		}
		if err := tx.DeleteShortUrlsByBucket(id); err != nil {
			return err
		}
		if err := tx.DeleteUploadTokensByBucket(id); err != nil {
			return err
		}
		return tx.DeleteBucket(id)
	})
	if err != nil {
		return err
	}
	if err := s.d.blob.DeleteBucketTree(id); err != nil {
		return xerr.Wrap(xerr.Internal, "failed to remove bucket blob tree", err)
	}
	s.d.cache.InvalidateBucket(id)
	s.d.cache.Invalidate(cache.StatsKey)
	s.d.hub.BucketDeleted(id)
	return nil
}

// Summary renders the plain-text report of spec §4.6.1.
func (s *BucketService) Summary(id string) (string, error) {
	detail, err := s.GetById(id)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bucket: %s\n", detail.Name)
	fmt.Fprintf(&sb, "Owner: %s\n", detail.Owner)
	fmt.Fprintf(&sb, "Files: %d (%s)\n", detail.FileCount, humanSize(detail.TotalSize))
	fmt.Fprintf(&sb, "Created: %s\n", detail.CreatedAt.Format("2006-01-02T15:04:05Z"))
	if detail.ExpiresAt != nil {
		fmt.Fprintf(&sb, "Expires: %s\n", detail.ExpiresAt.Format("2006-01-02T15:04:05Z"))
	}
	sb.WriteString("\n")
	for _, f := range detail.Files {
		fmt.Fprintf(&sb, "%s\t%s\n", f.Path, humanSize(f.Size))
	}
	return sb.String(), nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
