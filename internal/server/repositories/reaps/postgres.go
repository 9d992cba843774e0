package reaps

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/dbx"
)

// PostgresRepository implements the queue over the blob_reaps table.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Schedule(ctx context.Context, storageKey string, dueAt time.Time) error {
	query := `
		INSERT INTO blob_reaps (storage_key, due_at)
		VALUES ($1, $2)
		ON CONFLICT (storage_key)
		DO UPDATE SET due_at = EXCLUDED.due_at
	`
	if _, err := r.db.ExecContext(ctx, query, storageKey, dueAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// TakeDue claims due rows with SKIP LOCKED so that several sweepers can
// drain the queue concurrently without handing out the same key twice.
func (r *PostgresRepository) TakeDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		DELETE FROM blob_reaps
		WHERE storage_key IN (
			SELECT storage_key FROM blob_reaps
			WHERE due_at <= $1
			ORDER BY due_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING storage_key
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to take due reaps: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
