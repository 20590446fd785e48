// Package storage defines the interfaces for a blob storage provider.
// This abstraction keeps the error cache independent of a specific object store
// (an S3-compatible service, Google Cloud Storage, or process memory).
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore reads and writes whole objects in one bucket.
type BlobStore interface {
	// GetObject returns the object's content or ErrObjectNotFound.
	GetObject(ctx context.Context, key string) ([]byte, error)
	// PutObject uploads data under key and returns a URI for the stored object.
	PutObject(ctx context.Context, key string, contentType string, data io.Reader) (string, error)
}
