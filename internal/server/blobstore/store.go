// Package blobstore holds the physical bytes of content objects. Blobs are
// opaque: the store knows nothing about digests or reference counts.
package blobstore

import (
	"context"
	"io"
)

// Store is implemented by S3Store and LocalStore.
type Store interface {
	// Put writes exactly size bytes from r under key and returns the locator
	// to persist. A failed Put leaves nothing readable behind.
	Put(ctx context.Context, key string, r io.Reader, size int64) (string, error)
	// Get opens the blob; a missing blob yields common.ErrorNotFound.
	Get(ctx context.Context, locator string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, locator string) error
}
