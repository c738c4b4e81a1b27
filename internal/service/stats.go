package service

import (
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

// StatsService answers the operator dashboard's aggregate view (spec
// §4.6.8): totals across live buckets plus a per-owner storage breakdown.
type StatsService struct{ d *deps }

type OwnerUsage struct {
	Owner     string `json:"owner"`
	Buckets   int64  `json:"buckets"`
	Files     int64  `json:"files"`
	TotalSize int64  `json:"total_size"`
}

type Totals struct {
	Buckets        int64        `json:"total_buckets"`
	Files          int64        `json:"total_files"`
	TotalSize      int64        `json:"total_size"`
	TotalKeys      int64        `json:"total_keys"`
	TotalDownloads int64        `json:"total_downloads"`
	StorageByOwner []OwnerUsage `json:"storage_by_owner"`
}

func (s *StatsService) Totals() (*Totals, error) {
	v, err := s.d.cache.GetOrPopulate(cache.StatsKey, cache.TTLStats, "", func() (interface{}, error) {
		return s.compute()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Totals), nil
}

func (s *StatsService) compute() (*Totals, error) {
	t := &Totals{}
	byOwner := map[string]*OwnerUsage{}
	n := now()
	err := s.d.store.View(func(tx *store.Tx) error {
		if err := tx.AscendBuckets(func(b *store.Bucket) bool {
			if b.Expired(n) {
				return true
			}
			t.Buckets++
			t.Files += b.FileCount
			t.TotalSize += b.TotalSize
			t.TotalDownloads += b.DownloadCount

			ou, ok := byOwner[b.Owner]
			if !ok {
				ou = &OwnerUsage{Owner: b.Owner}
				byOwner[b.Owner] = ou
			}
			ou.Buckets++
			ou.Files += b.FileCount
			ou.TotalSize += b.TotalSize
			return true
		}); err != nil {
			return err
		}
		return tx.AscendApiKeys(func(*store.ApiKey) bool {
			t.TotalKeys++
			return true
		})
	})
	if err != nil {
		return nil, xerr.Wrap(xerr.Internal, "metadata store", err)
	}
	for _, ou := range byOwner {
		t.StorageByOwner = append(t.StorageByOwner, *ou)
	}
	return t, nil
}
