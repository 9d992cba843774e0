package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophdrop/internal/common"
	"github.com/dmitrijs2005/gophdrop/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"file_id", "storage_key", "filename", "password_hash", "size", "attempts", "status", "created_at", "expires_at"}

const (
	createQuery        = `(?s)INSERT\s+INTO\s+files\b.*ON\s+CONFLICT\s*\(file_id\)\s*DO\s+NOTHING`
	getQuery           = `(?s)SELECT\s+file_id,.*FROM\s+files\s+WHERE\s+file_id=\$1`
	markAvailableQuery = `(?s)update\s+files\s+set\s+status='available',\s*size=\$2\s+where\s+file_id=\$1\s+and\s+status='pending_upload'`
	reserveQuery       = `(?s)UPDATE\s+files\s+SET\s+attempts\s*=\s*attempts\s*\+\s*1.*status\s*=\s*'available'.*expires_at\s*>\s*\$2.*attempts\s*<\s*\$3.*RETURNING\s+attempts`
	consumeQuery       = `(?s)WITH\s+consumed\s+AS\s*\(\s*DELETE\s+FROM\s+files.*status\s*=\s*'available'\s+AND\s+expires_at\s*>\s*\$2.*INSERT\s+INTO\s+blob_reaps.*SELECT.*FROM\s+consumed`
	destroyDeleteQuery = `(?s)DELETE\s+FROM\s+files\s+WHERE\s+file_id=\$1\s+RETURNING\s+storage_key`
	destroyQueueQuery  = `(?s)INSERT\s+INTO\s+blob_reaps.*ON\s+CONFLICT`
	deleteQuery        = `delete\s+from\s+files\s+where\s+file_id=\$1`
	deleteExpiredQuery = `(?s)DELETE\s+FROM\s+files.*expires_at\s*<=\s*\$1.*LIMIT\s+\$2.*FOR\s+UPDATE\s+SKIP\s+LOCKED.*RETURNING`
)

func sampleRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows(cols).AddRow("f1", "uploads/k", "notes.txt", "", int64(10), 0, status, base, base.Add(time.Hour))
}

func TestPGCreate_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rec := sampleRecord("f1", models.StatusPendingUpload)
	mock.ExpectExec(createQuery).
		WithArgs("f1", rec.StorageKey, "notes.txt", "", int64(0), int64(0), "pending_upload", rec.CreatedAt, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGCreate_Conflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(createQuery).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), sampleRecord("f1", models.StatusPendingUpload))
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestPGCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(createQuery).WillReturnError(errors.New("boom"))

	err := repo.Create(context.Background(), sampleRecord("f1", models.StatusPendingUpload))
	if err == nil || !regexp.MustCompile(`db error: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPGGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(getQuery).WithArgs("f1").WillReturnRows(sampleRow("available"))

	rec, err := repo.GetByID(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != models.StatusAvailable || rec.Size != 10 || rec.StorageKey != "uploads/k" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	mock.ExpectQuery(getQuery).WithArgs("nope").WillReturnRows(sqlmock.NewRows(cols))
	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}

	mock.ExpectQuery(getQuery).WithArgs("f2").WillReturnError(errors.New("conn reset"))
	if _, err := repo.GetByID(context.Background(), "f2"); err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want db error, got %v", err)
	}
}

func TestPGMarkAvailable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(markAvailableQuery).WithArgs("f1", int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(markAvailableQuery).WithArgs("f1", int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkAvailable(context.Background(), "f1", 5)
	if err != nil || !ok {
		t.Fatalf("first mark: ok=%v err=%v", ok, err)
	}
	ok, err = repo.MarkAvailable(context.Background(), "f1", 5)
	if err != nil || ok {
		t.Fatalf("second mark: ok=%v err=%v", ok, err)
	}
}

func TestPGReserveAttempt(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(reserveQuery).WithArgs("f1", base, int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))
	mock.ExpectQuery(reserveQuery).WithArgs("f1", base, int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}))

	n, err := repo.ReserveAttempt(context.Background(), "f1", 5, base)
	if err != nil || n != 2 {
		t.Fatalf("got n=%d err=%v", n, err)
	}
	if _, err := repo.ReserveAttempt(context.Background(), "f1", 5, base); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestPGConsume(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	reapAt := base.Add(time.Minute)
	mock.ExpectQuery(consumeQuery).WithArgs("f1", base, reapAt).WillReturnRows(sampleRow("available"))
	mock.ExpectQuery(consumeQuery).WithArgs("f1", base, reapAt).WillReturnRows(sqlmock.NewRows(cols))

	rec, err := repo.Consume(context.Background(), "f1", base, reapAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != models.StatusConsumed || rec.Filename != "notes.txt" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := repo.Consume(context.Background(), "f1", base, reapAt); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDestroy_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(destroyDeleteQuery).WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("uploads/k"))
	mock.ExpectExec(destroyQueueQuery).WithArgs("uploads/k", base).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Destroy(context.Background(), "f1", base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDestroy_NotFoundRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(destroyDeleteQuery).WithArgs("f1").WillReturnRows(sqlmock.NewRows([]string{"storage_key"}))
	mock.ExpectRollback()

	if err := repo.Destroy(context.Background(), "f1", base); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDestroy_QueueErrorRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(destroyDeleteQuery).WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("uploads/k"))
	mock.ExpectExec(destroyQueueQuery).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.Destroy(context.Background(), "f1", base)
	if err == nil || !regexp.MustCompile(`failed to queue blob: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected queue error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteQuery).WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQuery).WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "f1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(context.Background(), "f1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestPGDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(cols).
		AddRow("f1", "uploads/a", "a.txt", "", int64(1), 0, "available", base, base).
		AddRow("f2", "uploads/b", "b.txt", "h", int64(0), 0, "pending_upload", base, base)
	mock.ExpectQuery(deleteExpiredQuery).WithArgs(base, int64(100)).WillReturnRows(rows)

	got, err := repo.DeleteExpired(context.Background(), base, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].StorageKey != "uploads/a" || got[1].Status != models.StatusExpired {
		t.Fatalf("unexpected result: %+v", got)
	}

	mock.ExpectQuery(deleteExpiredQuery).WillReturnError(errors.New("boom"))
	if _, err := repo.DeleteExpired(context.Background(), base, 100); err == nil {
		t.Fatal("expected error")
	}
}
