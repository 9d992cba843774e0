// Package reaps is the durable queue of object-storage blobs waiting to be
// deleted. Entries are written when a file record disappears (consumed,
// destroyed, or after a partial failure) and drained by the sweeper once
// they are due.
package reaps

import (
	"context"
	"time"
)

// Repository stores pending blob deletions keyed by storage key.
type Repository interface {
	// Schedule queues storageKey for deletion at dueAt. Scheduling a key that
	// is already queued replaces its due time.
	Schedule(ctx context.Context, storageKey string, dueAt time.Time) error

	// TakeDue atomically removes and returns up to limit keys whose due time
	// is at or before now.
	TakeDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}
