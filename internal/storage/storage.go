// Package storage defines the blob backend interface used to externalize
// AASX package bytes and Blob/File submodel-element content, plus an
// aws-sdk-go-v2-backed S3 implementation. Concrete clients beyond this
// interface (GCS, local filesystem for development) are out of scope;
// callers needing one implement Backend directly.
package storage

import (
	"context"
	"io"
)

// ObjectInfo describes a stored object's metadata.
type ObjectInfo struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
}

// Backend is the externalized-bytes storage contract: AASX package
// archives and Blob/File element content are both addressed by an
// opaque key (typically `<entityType>/<identifierB64>/<idShortPath-or-
// packageId>`).
type Backend interface {
	// Put uploads size bytes read from r under key, returning the
	// backend's ETag for the stored object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (etag string, err error)
	// Get retrieves the object stored under key. The caller must close
	// the returned ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Stat returns metadata for key without retrieving its body.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes the object stored under key. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, key string) error
}
