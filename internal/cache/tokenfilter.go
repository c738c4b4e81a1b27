package cache

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// InvalidTokenFilter is a probabilistic set of upload tokens already seen
// to be permanently invalid (expired, exhausted or deleted).
// UploadTokenService.Validate consults it on a cache miss, but because the
// filter can report false positives it still confirms a hit with a
// metadata-store lookup, so a hit does not save that round trip.
type InvalidTokenFilter struct {
	mu sync.Mutex
	cf *cuckoo.Filter
}

func NewInvalidTokenFilter() *InvalidTokenFilter {
	return &InvalidTokenFilter{cf: cuckoo.NewFilter(10000)}
}

func (f *InvalidTokenFilter) MarkInvalid(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cf.InsertUnique([]byte(token))
}

// MightBeInvalid reports whether token has previously been marked
// invalid. A false negative is impossible; a false positive only costs an
// extra metadata-store lookup.
func (f *InvalidTokenFilter) MightBeInvalid(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cf.Lookup([]byte(token))
}

// Reset is invoked periodically (alongside the cleanup sweeper) so that a
// token string that is later reused cannot be permanently shadowed.
func (f *InvalidTokenFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cf = cuckoo.NewFilter(10000)
}
