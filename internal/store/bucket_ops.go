package store

import (
	"strings"
	"time"

	"github.com/tidwall/buntdb"
)

func (t *Tx) PutBucket(b *Bucket) error {
	v, err := encode(b)
	if err != nil {
		return err
	}
	_, _, err = t.btx.Set(bucketKey(b.ID), v, nil)
	return err
}

func (t *Tx) GetBucket(id string) (*Bucket, error) {
	v, err := t.btx.Get(bucketKey(id))
	if err != nil {
		return nil, mapGetErr(err)
	}
	var b Bucket
	if err := json.UnmarshalFromString(v, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *Tx) DeleteBucket(id string) error {
	_, err := t.btx.Delete(bucketKey(id))
	if err != nil && err != buntdb.ErrNotFound {
		return err
	}
	return nil
}

// AscendBuckets visits every Bucket row in key order; callers filter by
// owner/expiry/role themselves (List is a modest, single-node scan, not
// a clustered query planner).
func (t *Tx) AscendBuckets(fn func(*Bucket) bool) error {
	return t.btx.Ascend("", func(key, value string) bool {
		if !strings.HasPrefix(key, prefixBucket) {
			return true
		}
		var b Bucket
		if err := json.UnmarshalFromString(value, &b); err != nil {
			return true
		}
		return fn(&b)
	})
}

// AscendBucketsByOwner visits only the Bucket rows belonging to owner,
// via idx_bucket_owner, so an Owner-scoped List avoids a full table scan.
func (t *Tx) AscendBucketsByOwner(owner string, fn func(*Bucket) bool) error {
	return t.btx.AscendEqual("idx_bucket_owner", pivot("owner", owner), func(key, value string) bool {
		var b Bucket
		if err := json.UnmarshalFromString(value, &b); err != nil {
			return true
		}
		return fn(&b)
	})
}

func (t *Tx) IncrBucketAggregates(id string, deltaFiles, deltaSize int64) (*Bucket, error) {
	b, err := t.GetBucket(id)
	if err != nil {
		return nil, err
	}
	b.FileCount += deltaFiles
	b.TotalSize += deltaSize
	if b.FileCount < 0 {
		b.FileCount = 0
	}
	if b.TotalSize < 0 {
		b.TotalSize = 0
	}
	if err := t.PutBucket(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (t *Tx) TouchBucketLastUsed(id string, now time.Time) error {
	b, err := t.GetBucket(id)
	if err != nil {
		return err
	}
	b.LastUsedAt = &now
	return t.PutBucket(b)
}

// IncrBucketDownloadCount bumps the bucket's lifetime download counter
// (spec §3's downloadCount aggregate), stamped alongside LastUsedAt on
// every successful content download.
func (t *Tx) IncrBucketDownloadCount(id string, now time.Time) error {
	b, err := t.GetBucket(id)
	if err != nil {
		return err
	}
	b.DownloadCount++
	b.LastUsedAt = &now
	return t.PutBucket(b)
}
