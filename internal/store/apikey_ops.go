package store

import (
	"strings"
	"time"

	"github.com/tidwall/buntdb"
)

func (t *Tx) PutApiKey(k *ApiKey) error {
	v, err := encode(k)
	if err != nil {
		return err
	}
	_, _, err = t.btx.Set(apiKeyKey(k.Prefix), v, nil)
	return err
}

func (t *Tx) GetApiKey(prefix string) (*ApiKey, error) {
	v, err := t.btx.Get(apiKeyKey(prefix))
	if err != nil {
		return nil, mapGetErr(err)
	}
	var k ApiKey
	if err := json.UnmarshalFromString(v, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (t *Tx) DeleteApiKey(prefix string) error {
	_, err := t.btx.Delete(apiKeyKey(prefix))
	if err != nil && err != buntdb.ErrNotFound {
		return err
	}
	return nil
}

func (t *Tx) AscendApiKeys(fn func(*ApiKey) bool) error {
	return t.btx.Ascend("", func(key, value string) bool {
		if !strings.HasPrefix(key, prefixApiKey) {
			return true
		}
		var k ApiKey
		if err := json.UnmarshalFromString(value, &k); err != nil {
			return true
		}
		return fn(&k)
	})
}

func (t *Tx) TouchApiKeyLastUsed(prefix string, now time.Time) error {
	k, err := t.GetApiKey(prefix)
	if err != nil {
		return err
	}
	k.LastUsedAt = &now
	return t.PutApiKey(k)
}
