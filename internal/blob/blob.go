// Package blob is the blob store (C3): filesystem operations on
// {DataDir}/{bucketId}/{percentEncode(lowercase(path))}. Full-file writes
// are atomic via temp-then-rename, the same discipline the teacher's
// cmn/jsp.Save uses for its own metadata snapshots ("{final}.tmp.{tie}"
// then os.Rename); partial writes take an exclusive OS-level lock for the
// duration of the patch, per spec §4.3/§5.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package blob

import (
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/ids"
)

var (
	ErrNotFound       = errors.New("blob: not found")
	ErrUnsatisfiable  = errors.New("blob: unsatisfiable offset")
)

type Store struct {
	dataDir string
}

func New(dataDir string) *Store { return &Store{dataDir: dataDir} }

// encodedPath renders the on-disk leaf name for a logical path: lowercase,
// then percent-encoded so path separators can never escape the bucket
// directory (spec §4.3/§6 "no directories nested beyond the bucket level").
func encodedPath(path string) string {
	return url.QueryEscape(toLower(path))
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (s *Store) bucketDir(bucketID string) string {
	return filepath.Join(s.dataDir, bucketID)
}

func (s *Store) finalPath(bucketID, path string) string {
	return filepath.Join(s.bucketDir(bucketID), encodedPath(path))
}

// StoreAtomic writes stream to {final}.tmp.{random} under exclusive
// create, then renames over {final}. Any failure before the rename
// leaves no visible file; readers never observe a partial write.
func (s *Store) StoreAtomic(bucketID, path string, r io.Reader) (size int64, err error) {
	dir := s.bucketDir(bucketID)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	final := s.finalPath(bucketID, path)
	tmp := final + ".tmp." + ids.TempSuffix()

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	size, err = io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err = os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return size, nil
}

// OpenRead opens the blob read-only under a shared OS-level lock: readers
// share the file with each other, and wait while a PatchFile holds its
// exclusive lock. Closing the returned file releases the lock.
func (s *Store) OpenRead(bucketID, path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(s.finalPath(bucketID, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if err = syscall.Flock(int(f.Fd()), syscall.LOCK_SH); err != nil {
		f.Close()
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, fi, nil
}

// PatchFile opens the blob exclusively for the duration of the patch (no
// concurrent reader may observe a partial range mid-flight, spec §4.6.4),
// writes r at offset (or at EOF when appendMode), and returns the file's
// new length.
func (s *Store) PatchFile(bucketID, path string, r io.Reader, offset int64, appendMode bool) (newSize int64, err error) {
	final := s.finalPath(bucketID, path)
	fi, statErr := os.Stat(final)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, ErrNotFound
		}
		return 0, statErr
	}

	f, err := os.OpenFile(final, os.O_RDWR, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Exclusive OS-level lock for the patch's duration (spec §4.3's
	// FileShare.None discipline): no concurrent reader may observe a
	// partial range mid-flight.
	if err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return 0, err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	if appendMode {
		if _, err = f.Seek(0, io.SeekEnd); err != nil {
			return 0, err
		}
	} else {
		if offset < 0 || offset > fi.Size() {
			return 0, ErrUnsatisfiable
		}
		if _, err = f.Seek(offset, io.SeekStart); err != nil {
			return 0, err
		}
	}
	if _, err = io.Copy(f, r); err != nil {
		return 0, err
	}
	end, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	curSize, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if end > curSize {
		curSize = end
	}
	if err = f.Sync(); err != nil {
		return 0, err
	}
	return curSize, nil
}

// DeleteBlob best-effort removes the concrete blob; silent if already gone.
func (s *Store) DeleteBlob(bucketID, path string) error {
	err := os.Remove(s.finalPath(bucketID, path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteBucketTree recursively removes the bucket's directory; silent if
// absent.
func (s *Store) DeleteBucketTree(bucketID string) error {
	return os.RemoveAll(s.bucketDir(bucketID))
}

// LastModifiedTicks renders the given timestamp (the caller passes the file
// row's updatedAt in Unix seconds) as the ETag's integer tick component in
// `"{size}-{lastModifiedTicks}"`.
func LastModifiedTicks(modTime int64) string {
	return strconv.FormatInt(modTime, 10)
}
