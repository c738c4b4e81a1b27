package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNotFound = errors.New("store: not found")

// Store wraps a single buntdb handle. Schema bootstrap is idempotent
// CREATE-INDEX-IF-NOT-EXISTS, matching spec §4.2's "idempotent
// CREATE TABLE IF NOT EXISTS" requirement translated to buntdb's index
// model; buntdb itself provides WAL + statement-level ACID writes.
type Store struct {
	db *buntdb.DB
}

const (
	prefixBucket      = "b:"
	prefixFile        = "f:"
	prefixApiKey      = "k:"
	prefixShortUrl    = "s:"
	prefixUploadToken = "t:"
)

// Open creates the DbPath's parent directory, opens (or creates) the
// buntdb file, enables its WAL-backed durability config and bootstraps
// the indexes named in spec §4.2.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
	}
	db, err := buntdb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetConfig(buntdb.Config{
		SyncPolicy:           buntdb.EverySecond,
		AutoShrinkPercentage: 100,
	})
	s := &Store{db: db}
	if err := s.bootstrapIndexes(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the metadata store is reachable (spec §4.7 /healthz).
func (s *Store) Ping() error {
	return s.db.View(func(tx *buntdb.Tx) error { return nil })
}

func (s *Store) bootstrapIndexes() error {
	type idx struct {
		name, pattern, path string
	}
	indexes := []idx{
		{"idx_bucket_owner", prefixBucket + "*", "owner"},
		{"idx_file_bucket", prefixFile + "*", "bucket_id"},
		{"idx_file_shortcode", prefixFile + "*", "short_code"},
		{"idx_shorturl_bucket", prefixShortUrl + "*", "bucket_id"},
		{"idx_uploadtoken_bucket", prefixUploadToken + "*", "bucket_id"},
	}
	for _, ix := range indexes {
		err := s.db.CreateIndex(ix.name, ix.pattern, buntdb.IndexJSON(ix.path))
		if err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
			return fmt.Errorf("store: create index %s: %w", ix.name, err)
		}
	}
	return nil
}

func bucketKey(id string) string        { return prefixBucket + id }
func fileKey(bucketID, path string) string { return prefixFile + bucketID + ":" + strings.ToLower(path) }
func apiKeyKey(prefix string) string     { return prefixApiKey + prefix }
func shortUrlKey(code string) string     { return prefixShortUrl + code }
func uploadTokenKey(token string) string { return prefixUploadToken + token }

func encode(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// pivot renders the minimal JSON document an IndexJSON(field)-backed
// AscendEqual/AscendRange pivot needs: buntdb's IndexJSON comparator reads
// `field` out of whatever document it is handed, so the pivot only needs
// to carry that one field.
func pivot(field, value string) string {
	s, _ := json.MarshalToString(map[string]string{field: value})
	return s
}

// Update runs fn inside a single buntdb write transaction, giving services
// an atomic compound write across bucket/file/shorturl/uploadtoken rows
// (spec §5's "aggregate counter updates must be atomic").
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *buntdb.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *buntdb.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Tx is a single metadata-store transaction, read-write or read-only
// depending on whether it was opened via Store.Update or Store.View.
type Tx struct {
	btx *buntdb.Tx
}

func mapGetErr(err error) error {
	if errors.Is(err, buntdb.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
