// Package blob wraps opaque byte-stream storage, keyed by string, the
// way the teacher wraps job persistence behind repository.JobRepository:
// one narrow interface, one real (S3) implementation, one in-memory
// fake for tests.
package blob

import (
	"context"
	"io"
	"time"
)

// Store reads and writes opaque byte streams keyed by string.
type Store interface {
	// Get streams the blob's content. Callers are expected to copy it
	// to a local file without fully buffering (spec.md §4.2) — Get
	// itself does no buffering beyond what the underlying transport
	// does.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put uploads content under key with the given content type. It
	// may buffer in memory; only audio and subtitle artifacts (never
	// whole videos) are ever written through Put in this pipeline.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// PresignGet mints a short-lived, read-only URL for key.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)

	// PresignPut mints a short-lived, write-only upload URL for key,
	// used by the out-of-scope-but-contract-fixed upload-URL minting
	// collaborator (spec.md §1), realized minimally by internal/api.
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}
