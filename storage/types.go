// Package storage is the backend-neutral repository layer (C2): a set of
// narrowly-typed repositories exposing CRUD, batch insert and list
// operations with identical behaviour over two SQL backends — an
// embedded file database and a server database — selected at runtime by
// a factory from a single configuration object.
package storage

import (
	"context"
	"time"
)

// ListOptions bounds a list/find-by query.
type ListOptions struct {
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// BatchResult reports the outcome of a chunked batch insert. Because the
// underlying SQL uses ON CONFLICT (id) DO NOTHING, RowsAffected counts
// only newly inserted rows; it cannot distinguish "already existed" from
// "driver reported 0 for an unrelated reason" — callers needing that
// distinction should read back by id.
type BatchResult struct {
	RowsAffected int64
	Chunks       int
}

// RetryPolicy configures the transient-error retry applied to each batch
// chunk (and to individual repository operations where noted).
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy is 3 attempts with exponential backoff, matching
// §4.2's "default: 3 attempts, exponential backoff".
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}
}

// BatchChunkSize is the maximum rows per multi-row insert statement.
const BatchChunkSize = 1000

// Identifiable is satisfied by every row type the generic repository can
// persist: it must expose a stable primary key.
type Identifiable interface {
	GetID() string
}

// Repository is the uniform CRUD + batch + list contract every
// memory-type store and reference-data store implements, over either
// backend.
type Repository[T Identifiable] interface {
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, item T) (T, error)
	FindByID(ctx context.Context, id string) (T, error)
	List(ctx context.Context, opts ListOptions) ([]T, error)
	Delete(ctx context.Context, id string) error
	BatchCreate(ctx context.Context, items []T) (BatchResult, error)
}
