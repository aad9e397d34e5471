// Package storage defines the Backend interface for content storage.
// Backends move raw object bytes keyed by catalog path; the tree itself
// lives in the library.
package storage

import (
	"context"
	"io"
)

// Backend is the interface for content storage backends.
type Backend interface {
	// GetObject retrieves an object by key with optional range support.
	// With offset=0 and length=0 the entire object is returned.
	GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error)

	// PutObject uploads content to the given key.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// DeleteObject removes an object by key. Deleting a missing object is
	// not an error.
	DeleteObject(ctx context.Context, key string) error

	// CopyObject copies an object from srcKey to dstKey.
	CopyObject(ctx context.Context, srcKey, dstKey string) error

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier ("s3", "local", "smb").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// DiskReporter is implemented by backends that can report filesystem
// capacity, currently the local and smb ones.
type DiskReporter interface {
	DiskStats() (total, free uint64, err error)
}
