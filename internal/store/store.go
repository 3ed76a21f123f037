// Package store defines the typed facade over the coordination store
// (queues, hashes, sets, counters) that every other worker-side
// component is built on. Two implementations exist: Redis (production)
// and an in-memory fake (tests), mirroring the teacher's
// repository.JobRepository interface with its real SQLite and mock
// implementations.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNoJob is returned by BRPop when every candidate list is still
// empty once the timeout elapses. A timeout of 0 means "block
// forever" and BRPop never returns ErrNoJob in that mode.
var ErrNoJob = errors.New("store: no job available")

// Pipe accumulates operations to run atomically via MultiExec.
type Pipe interface {
	HSetFields(key string, fields map[string]string)
	SAdd(set, value string)
	SRem(set, value string)
	LPush(list, value string)
	RPush(list, value string)
	Del(key string)
	LLen(list string, dst *int64)
	SCard(set string, dst *int64)
}

// Store is the typed facade described in spec.md §4.1. All operations
// take a context so callers can bound retries at the call site, not
// inside the store.
type Store interface {
	// HSetFields atomically sets multiple fields of a hash.
	HSetFields(ctx context.Context, key string, fields map[string]string) error

	// HGetField reads one hash field. ok is false when the field or
	// the hash itself does not exist.
	HGetField(ctx context.Context, key, field string) (value string, ok bool, err error)

	// HGetAll reads every field of a hash.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HIncrBy atomically increments an integer hash field and returns
	// its new value.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// LPushValue pushes a value onto the left of a list.
	LPushValue(ctx context.Context, list, value string) error

	// RPushValue pushes a value onto the right of a list.
	RPushValue(ctx context.Context, list, value string) error

	// BRPop blocks popping from the right of the first non-empty list
	// among the given keys, tried in order. timeout == 0 blocks
	// indefinitely, matching the worker loop's and semaphore's
	// infinite-wait requirement (spec.md §4.1, §5).
	BRPop(ctx context.Context, timeout time.Duration, lists ...string) (list, value string, err error)

	// SAdd adds a value to a set.
	SAdd(ctx context.Context, set, value string) error

	// SRem removes a value from a set.
	SRem(ctx context.Context, set, value string) error

	// ListDelete removes a list entirely.
	ListDelete(ctx context.Context, list string) error

	// ListRange returns every value currently in list without removing
	// any of them, used by the submission API to list queued or
	// dead-lettered jobs without disturbing worker dispatch.
	ListRange(ctx context.Context, list string) ([]string, error)

	// MultiExec runs fn against a Pipe and executes everything it
	// accumulated as a single atomic unit.
	MultiExec(ctx context.Context, fn func(p Pipe) error) error

	// Snapshot returns the dashboard tuple of spec.md §6: queue
	// lengths for high/low/dlq and the size of jobs:processing, read
	// as one atomic multi-op.
	Snapshot(ctx context.Context) (highLen, lowLen, dlqLen, processing int64, err error)
}

// Key layout constants from spec.md §6.
const (
	QueueHigh      = "queue:high"
	QueueLow       = "queue:low"
	QueueDLQ       = "queue:dlq"
	SetProcessing  = "jobs:processing"
	SemaphoreGlobal = "semaphore:global"
	SemaphoreAI     = "semaphore:ai"
)

// JobKey returns the hash key for a job record.
func JobKey(id string) string {
	return "job:" + id
}
