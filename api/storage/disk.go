package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	ErrBlobTooLarge = errors.New("blob exceeds size limit")
	ErrBlobNotFound = errors.New("blob not found")
)

// BlobStore keeps uploaded media on disk. Writes go through a temp file so a
// size-limit violation never leaves a partial blob behind.
type BlobStore struct {
	dir      string
	maxBytes int64
}

func NewBlobStore(dir string, maxBytes int64) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &BlobStore{dir: dir, maxBytes: maxBytes}, nil
}

func (s *BlobStore) MaxBytes() int64 {
	return s.maxBytes
}

// Save streams r into the store under name. It counts bytes as they arrive
// and aborts with ErrBlobTooLarge once the ceiling is crossed, regardless of
// what the declared Content-Length claimed.
func (s *BlobStore) Save(name string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(tmpName)
		return 0, ErrBlobTooLarge
	}

	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("commit blob: %w", err)
	}

	return written, nil
}

// Open returns the blob and its size for range serving.
func (s *BlobStore) Open(name string) (*os.File, int64, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrBlobNotFound
		}
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	return f, info.Size(), nil
}

func (s *BlobStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}
