package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/common"
	"github.com/dmitrijs2005/gophdrop/internal/dbx"
	"github.com/dmitrijs2005/gophdrop/internal/server/models"
)

// PostgresRepository implements Repository over the files table. Blob reaps
// are written to blob_reaps in the same statement or transaction as the
// delete that makes them necessary.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository bound to db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `file_id, storage_key, filename, password_hash, size, attempts, status, created_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.FileRecord, error) {
	rec := &models.FileRecord{}
	var status string
	if err := row.Scan(&rec.FileID, &rec.StorageKey, &rec.Filename, &rec.PasswordHash,
		&rec.Size, &rec.Attempts, &status, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	rec.Status = models.Status(status)
	return rec, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.FileRecord) error {
	query := `
		INSERT INTO files (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (file_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.FileID, rec.StorageKey, rec.Filename, rec.PasswordHash,
		rec.Size, rec.Attempts, string(rec.Status), rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM files WHERE file_id=$1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) MarkAvailable(ctx context.Context, id string, size int64) (bool, error) {
	query := `update files set status='available', size=$2 where file_id=$1 and status='pending_upload'`
	res, err := r.db.ExecContext(ctx, query, id, size)
	if err != nil {
		return false, fmt.Errorf("failed to mark available: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) ReserveAttempt(ctx context.Context, id string, maxAttempts int, now time.Time) (int, error) {
	query := `
		UPDATE files SET attempts = attempts + 1
		WHERE file_id = $1 AND status = 'available' AND expires_at > $2 AND attempts < $3
		RETURNING attempts
	`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, id, now, maxAttempts).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.ErrorNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reserve attempt: %w", err)
	}
	return attempts, nil
}

// Consume is one statement: the DELETE's row lock serialises concurrent
// consumers and only the first sees the row.
func (r *PostgresRepository) Consume(ctx context.Context, id string, now, reapAt time.Time) (*models.FileRecord, error) {
	query := `
		WITH consumed AS (
			DELETE FROM files
			WHERE file_id = $1 AND status = 'available' AND expires_at > $2
			RETURNING ` + recordColumns + `
		), queued AS (
			INSERT INTO blob_reaps (storage_key, due_at)
			SELECT storage_key, $3 FROM consumed
			ON CONFLICT (storage_key) DO UPDATE SET due_at = EXCLUDED.due_at
		)
		SELECT ` + recordColumns + ` FROM consumed
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id, now, reapAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume file: %w", err)
	}
	rec.Status = models.StatusConsumed
	return rec, nil
}

func (r *PostgresRepository) Destroy(ctx context.Context, id string, reapAt time.Time) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var storageKey string
		err := tx.QueryRowContext(ctx, `DELETE FROM files WHERE file_id=$1 RETURNING storage_key`, id).Scan(&storageKey)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO blob_reaps (storage_key, due_at) VALUES ($1, $2)
			ON CONFLICT (storage_key) DO UPDATE SET due_at = EXCLUDED.due_at
		`, storageKey, reapAt)
		if err != nil {
			return fmt.Errorf("failed to queue blob: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `delete from files where file_id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) ([]*models.FileRecord, error) {
	query := `
		DELETE FROM files
		WHERE file_id IN (
			SELECT file_id FROM files
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + recordColumns

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		rec.Status = models.StatusExpired
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
