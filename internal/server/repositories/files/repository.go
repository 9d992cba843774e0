// Package files stores FileRecords. Every state change that matters for the
// one-time guarantee is a single atomic conditional operation against the
// backing store, never a read followed by a write, so several service
// instances can share one store safely.
package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/server/models"
)

// Repository is the metadata store for FileRecords.
type Repository interface {
	// Create inserts a new record. An existing file_id yields
	// common.ErrAlreadyExists.
	Create(ctx context.Context, rec *models.FileRecord) error

	// GetByID returns the record or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)

	// MarkAvailable moves a pending_upload record to available and records
	// the confirmed size. It reports false when the record was not pending
	// (already confirmed by a concurrent caller, consumed, or absent).
	MarkAvailable(ctx context.Context, id string, size int64) (bool, error)

	// ReserveAttempt increments the passphrase attempt counter of an
	// available, unexpired record whose counter is below maxAttempts and
	// returns the new value. Anything else yields common.ErrorNotFound.
	ReserveAttempt(ctx context.Context, id string, maxAttempts int, now time.Time) (int, error)

	// Consume deletes the record iff it is available and unexpired at now,
	// queues its blob for deletion at reapAt, and returns the deleted record.
	// Exactly one of any number of concurrent callers succeeds; the rest get
	// common.ErrorNotFound.
	Consume(ctx context.Context, id string, now, reapAt time.Time) (*models.FileRecord, error)

	// Destroy deletes the record whatever its state and queues its blob for
	// deletion at reapAt. common.ErrorNotFound if absent.
	Destroy(ctx context.Context, id string, reapAt time.Time) error

	// Delete removes the record without touching the blob queue. Used to
	// roll back an upload request that never issued a descriptor.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes up to limit records with expires_at <= now, in
	// any state, and returns them.
	DeleteExpired(ctx context.Context, now time.Time, limit int) ([]*models.FileRecord, error)
}
