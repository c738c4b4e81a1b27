package store

import (
	"github.com/tidwall/buntdb"
)

func (t *Tx) PutUploadToken(u *UploadToken) error {
	v, err := encode(u)
	if err != nil {
		return err
	}
	_, _, err = t.btx.Set(uploadTokenKey(u.Token), v, nil)
	return err
}

func (t *Tx) GetUploadToken(token string) (*UploadToken, error) {
	v, err := t.btx.Get(uploadTokenKey(token))
	if err != nil {
		return nil, mapGetErr(err)
	}
	var u UploadToken
	if err := json.UnmarshalFromString(v, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *Tx) DeleteUploadToken(token string) error {
	_, err := t.btx.Delete(uploadTokenKey(token))
	if err != nil && err != buntdb.ErrNotFound {
		return err
	}
	return nil
}

func (t *Tx) AscendUploadTokensByBucket(bucketID string, fn func(*UploadToken) bool) error {
	return t.btx.AscendEqual("idx_uploadtoken_bucket", pivot("bucket_id", bucketID), func(key, value string) bool {
		var u UploadToken
		if err := json.UnmarshalFromString(value, &u); err == nil {
			return fn(&u)
		}
		return true
	})
}

func (t *Tx) DeleteUploadTokensByBucket(bucketID string) error {
	var tokens []string
	err := t.AscendUploadTokensByBucket(bucketID, func(u *UploadToken) bool {
		tokens = append(tokens, u.Token)
		return true
	})
	if err != nil {
		return err
	}
	for _, tk := range tokens {
		if err := t.DeleteUploadToken(tk); err != nil {
			return err
		}
	}
	return nil
}

// IncrUploadTokenUsage atomically bumps UploadsUsed by count inside the
// caller's transaction (spec §4.1's "uploadsUsed is incremented atomically").
func (t *Tx) IncrUploadTokenUsage(token string, count int64) (*UploadToken, error) {
	u, err := t.GetUploadToken(token)
	if err != nil {
		return nil, err
	}
	u.UploadsUsed += count
	if err := t.PutUploadToken(u); err != nil {
		return nil, err
	}
	return u, nil
}
