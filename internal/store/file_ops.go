package store

import (
	"strings"

	"github.com/tidwall/buntdb"
)

func (t *Tx) PutFile(f *File) error {
	v, err := encode(f)
	if err != nil {
		return err
	}
	_, _, err = t.btx.Set(fileKey(f.BucketID, f.Path), v, nil)
	return err
}

func (t *Tx) GetFile(bucketID, path string) (*File, error) {
	v, err := t.btx.Get(fileKey(bucketID, path))
	if err != nil {
		return nil, mapGetErr(err)
	}
	var f File
	if err := json.UnmarshalFromString(v, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (t *Tx) DeleteFile(bucketID, path string) error {
	_, err := t.btx.Delete(fileKey(bucketID, path))
	if err != nil && err != buntdb.ErrNotFound {
		return err
	}
	return nil
}

// AscendFilesByBucket visits every File row owned by bucketID.
func (t *Tx) AscendFilesByBucket(bucketID string, fn func(*File) bool) error {
	prefix := prefixFile + bucketID + ":"
	return t.btx.AscendEqual("idx_file_bucket", pivot("bucket_id", bucketID), func(key, value string) bool {
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		var f File
		if err := json.UnmarshalFromString(value, &f); err != nil {
			return true
		}
		return fn(&f)
	})
}

// DeleteFilesByBucket removes every File row owned by bucketID, returning
// the deleted rows so callers can clean up blobs/short-codes.
func (t *Tx) DeleteFilesByBucket(bucketID string) ([]*File, error) {
	var files []*File
	if err := t.AscendFilesByBucket(bucketID, func(f *File) bool {
		cp := *f
		files = append(files, &cp)
		return true
	}); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := t.DeleteFile(f.BucketID, f.Path); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (t *Tx) GetFileByShortCode(code string) (*File, error) {
	var found *File
	err := t.btx.AscendEqual("idx_file_shortcode", pivot("short_code", code), func(key, value string) bool {
		var f File
		if err := json.UnmarshalFromString(value, &f); err == nil && f.ShortCode == code {
			found = &f
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
