// Package store is the metadata store (C2): a row-oriented, ACID
// (statement-level), WAL-enabled persistent store holding Bucket, File,
// ApiKey, ShortUrl and UploadToken rows. It is built directly on
// github.com/tidwall/buntdb, an embedded key/value store whose WAL +
// single-writer transaction model is exactly the contract spec §4.2 asks
// for; JSON rows are (de)serialized with json-iterator/go, the same
// encoding/json-compatible drop-in the teacher's cmn/config.go uses.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package store

import "time"

type Bucket struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Owner          string     `json:"owner"`
	OwnerKeyPrefix string     `json:"owner_key_prefix,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	FileCount      int64      `json:"file_count"`
	TotalSize      int64      `json:"total_size"`
	DownloadCount  int64      `json:"download_count"`
}

func (b *Bucket) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

type File struct {
	BucketID  string    `json:"bucket_id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	ShortCode string    `json:"short_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShortUrl struct {
	Code      string    `json:"code"`
	BucketID  string    `json:"bucket_id"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at"`
}

type ApiKey struct {
	Prefix       string     `json:"prefix"`
	HashedSecret string     `json:"hashed_secret"`
	Name         string     `json:"name"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

type UploadToken struct {
	Token       string    `json:"token"`
	BucketID    string    `json:"bucket_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	MaxUploads  *int64    `json:"max_uploads,omitempty"`
	UploadsUsed int64     `json:"uploads_used"`
}

func (t *UploadToken) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }

func (t *UploadToken) Exhausted() bool {
	return t.MaxUploads != nil && t.UploadsUsed >= *t.MaxUploads
}
