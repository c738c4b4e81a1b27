// Package sweep is the cleanup sweeper (C9): a single background worker
// that deletes expired buckets on a fixed interval, independent of
// request flow, following spec §4.9/§5's "missing a tick is acceptable"
// tolerance.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package sweep

import (
	"context"
	"time"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/blob"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xlog"
)

type Sweeper struct {
	store    *store.Store
	blob     *blob.Store
	cache    *cache.Cache
	tokens   *service.UploadTokenService
	interval time.Duration
}

func New(st *store.Store, bl *blob.Store, ca *cache.Cache, tokens *service.UploadTokenService, interval time.Duration) *Sweeper {
	return &Sweeper{store: st, blob: bl, cache: ca, tokens: tokens, interval: interval}
}

// Run blocks, firing RunOnce every interval until ctx is canceled. One
// missed tick is harmless — the next tick's scan still catches any
// bucket whose expiry has since passed.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.RunOnce(); err != nil {
				xlog.Errorf("sweep: pass failed: %v", err)
			} else if n > 0 {
				xlog.Infof("sweep: reclaimed %d expired bucket(s)", n)
			}
		}
	}
}

// RunOnce implements the single pass of spec §4.9: select expired
// buckets, cascade-delete each (rows, then blob tree, then cache), repair
// orphan blobs under every live bucket, reset the upload-token fast-reject
// filter, and invalidate stats once at the end. A database with nothing
// expired is a no-op, satisfying the idempotence property of spec §8.
func (s *Sweeper) RunOnce() (int, error) {
	n := time.Now().UTC()
	var expired, live []string
	err := s.store.View(func(tx *store.Tx) error {
		return tx.AscendBuckets(func(b *store.Bucket) bool {
			if b.Expired(n) {
				expired = append(expired, b.ID)
			} else {
				live = append(live, b.ID)
			}
			return true
		})
	})
	if err != nil {
		return 0, err
	}

	for _, id := range expired {
		if err := s.reclaim(id); err != nil {
			xlog.Warningf("sweep: failed to reclaim bucket %s: %v", id, err)
			continue
		}
	}
	for _, id := range live {
		if removed, err := s.RepairOrphans(id); err != nil {
			xlog.Warningf("sweep: orphan repair failed for bucket %s: %v", id, err)
		} else if len(removed) > 0 {
			xlog.Infof("sweep: removed %d orphan blob(s) from bucket %s", len(removed), id)
		}
	}
	if s.tokens != nil {
		s.tokens.ResetInvalidFilter()
	}
	if len(expired) > 0 {
		s.cache.Invalidate(cache.StatsKey)
	}
	return len(expired), nil
}

func (s *Sweeper) reclaim(bucketID string) error {
	err := s.store.Update(func(tx *store.Tx) error {
		if _, err := tx.DeleteFilesByBucket(bucketID); err != nil {
			return err
		}
		if err := tx.DeleteShortUrlsByBucket(bucketID); err != nil {
			return err
		}
		if err := tx.DeleteUploadTokensByBucket(bucketID); err != nil {
			return err
		}
		return tx.DeleteBucket(bucketID)
	})
	if err != nil {
		return err
	}
	if err := s.blob.DeleteBucketTree(bucketID); err != nil {
		return err
	}
	s.cache.InvalidateBucket(bucketID)
	return nil
}

// RepairOrphans scans a live bucket's blob directory for files with no
// matching row — e.g. left behind by a crash between StoreAtomic and the
// metadata transaction it feeds (spec §7's compensation policy handles the
// ordinary error-return case; a process kill mid-transaction still can
// leave a blob behind) — and deletes them, run by the sweeper on every
// live bucket each pass.
func (s *Sweeper) RepairOrphans(bucketID string) ([]string, error) {
	known := map[string]bool{}
	err := s.store.View(func(tx *store.Tx) error {
		return tx.AscendFilesByBucket(bucketID, func(f *store.File) bool {
			known[f.Path] = true
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	orphans, err := s.blob.OrphanFiles(bucketID, known)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, path := range orphans {
		if err := s.blob.DeleteBlob(bucketID, path); err != nil {
			xlog.Warningf("sweep: failed to remove orphan blob %s/%s: %v", bucketID, path, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, nil
}
