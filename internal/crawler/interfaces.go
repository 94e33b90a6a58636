package crawler

import (
	"context"
	"time"
)

// ScoreFunc assigns a priority score to a URL discovered at the given depth.
// Implementations consume one value from a shared sequence counter per call,
// so a Frontier must invoke it only when an insertion will actually occur.
type ScoreFunc func(url string, depth int) float64

// Frontier is the persistent priority queue plus the completed/failed
// deduplication sets. All operations must be safe under arbitrary concurrent
// callers; EnqueueIfAbsent must be atomic with respect to the pending and
// completed membership checks.
type Frontier interface {
	// EnqueueIfAbsent inserts the URL at the given depth unless it is already
	// pending or already completed. Returns true if an insertion occurred.
	EnqueueIfAbsent(ctx context.Context, url string, depth int) (bool, error)

	// PopMin atomically removes and returns the lowest-score item. The second
	// return value is false when the frontier is empty.
	PopMin(ctx context.Context) (FrontierItem, bool, error)

	// MarkCompleted and MarkFailed are idempotent set insertions.
	MarkCompleted(ctx context.Context, url string) error
	MarkFailed(ctx context.Context, url string) error

	// IsCompleted reports whether the URL has already been processed.
	IsCompleted(ctx context.Context, url string) (bool, error)

	// Counts returns pending/completed/failed cardinalities.
	Counts(ctx context.Context) (Counts, error)

	// Reset clears all frontier state from a previous session.
	Reset(ctx context.Context) error
}

// RecordStore persists completed records so the sink can later enumerate
// each of them exactly once.
type RecordStore interface {
	Save(ctx context.Context, rec Record) error
	Each(ctx context.Context, fn func(Record) error) error
	Len(ctx context.Context) (int64, error)
}

// Fetcher retrieves one URL and returns its raw JSON body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
