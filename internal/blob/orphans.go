package blob

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
)

// OrphanFiles walks a bucket's directory tree looking for on-disk blobs
// with no matching row, returning their decoded logical paths. This
// repairs the residue of spec §7's compensation policy (a blob write that
// committed but whose aggregate update failed before the row was written)
// — a scenario the cleanup sweeper (C9) checks for on every pass.
// godirwalk is used here for the same reason the teacher pulls it in: a
// fast, allocation-light recursive directory scan.
func (s *Store) OrphanFiles(bucketID string, known map[string]bool) ([]string, error) {
	dir := s.bucketDir(bucketID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var orphans []string
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			base := filepath.Base(osPathname)
			decoded, err := url.QueryUnescape(base)
			if err != nil {
				return nil
			}
			if !known[decoded] {
				orphans = append(orphans, decoded)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return orphans, nil
}
