package store

import (
	"strings"

	"github.com/tidwall/buntdb"
)

func (t *Tx) PutShortUrl(s *ShortUrl) error {
	v, err := encode(s)
	if err != nil {
		return err
	}
	_, _, err = t.btx.Set(shortUrlKey(s.Code), v, nil)
	return err
}

func (t *Tx) GetShortUrl(code string) (*ShortUrl, error) {
	v, err := t.btx.Get(shortUrlKey(code))
	if err != nil {
		return nil, mapGetErr(err)
	}
	var s ShortUrl
	if err := json.UnmarshalFromString(v, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *Tx) ShortUrlExists(code string) bool {
	_, err := t.btx.Get(shortUrlKey(code))
	return err == nil
}

func (t *Tx) DeleteShortUrl(code string) error {
	_, err := t.btx.Delete(shortUrlKey(code))
	if err != nil && err != buntdb.ErrNotFound {
		return err
	}
	return nil
}

// FindShortUrlByPath implements the ShortUrl(bucketId, filePath) lookup
// required by spec §4.2's index list, scanning the bucket-scoped index.
func (t *Tx) FindShortUrlByPath(bucketID, path string) (*ShortUrl, error) {
	var found *ShortUrl
	err := t.btx.AscendEqual("idx_shorturl_bucket", pivot("bucket_id", bucketID), func(key, value string) bool {
		var s ShortUrl
		if err := json.UnmarshalFromString(value, &s); err == nil && s.BucketID == bucketID && strings.EqualFold(s.FilePath, path) {
			found = &s
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (t *Tx) DeleteShortUrlsByBucket(bucketID string) error {
	var codes []string
	err := t.btx.AscendEqual("idx_shorturl_bucket", pivot("bucket_id", bucketID), func(key, value string) bool {
		var s ShortUrl
		if err := json.UnmarshalFromString(value, &s); err == nil {
			codes = append(codes, s.Code)
		}
		return true
	})
	if err != nil {
		return err
	}
	for _, c := range codes {
		if err := t.DeleteShortUrl(c); err != nil {
			return err
		}
	}
	return nil
}
