package reaps

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	scheduleQuery = `(?s)INSERT\s+INTO\s+blob_reaps\s*\(storage_key, due_at\).*ON\s+CONFLICT\s*\(storage_key\)\s*DO\s+UPDATE\s+SET\s+due_at\s*=\s*EXCLUDED\.due_at`
	takeDueQuery  = `(?s)DELETE\s+FROM\s+blob_reaps.*WHERE\s+due_at\s*<=\s*\$1.*LIMIT\s+\$2.*FOR\s+UPDATE\s+SKIP\s+LOCKED.*RETURNING\s+storage_key`
)

func TestSchedule_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	due := time.Unix(1000, 0)
	mock.ExpectExec(scheduleQuery).WithArgs("uploads/a", due).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Schedule(context.Background(), "uploads/a", due); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSchedule_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(scheduleQuery).WillReturnError(errors.New("db down"))

	err := repo.Schedule(context.Background(), "uploads/a", time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestTakeDue_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Unix(2000, 0)
	mock.ExpectQuery(takeDueQuery).
		WithArgs(now, int64(50)).
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("uploads/a").AddRow("uploads/b"))

	keys, err := repo.TakeDue(context.Background(), now, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "uploads/a" || keys[1] != "uploads/b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestTakeDue_QueryErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(takeDueQuery).WillReturnError(errors.New("db err"))

	_, err := repo.TakeDue(context.Background(), time.Now(), 1)
	if err == nil || !regexp.MustCompile(`failed to take due reaps: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestTakeDue_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"storage_key"}).
		AddRow("uploads/a").
		AddRow("uploads/b").
		RowError(1, errors.New("row-err"))
	mock.ExpectQuery(takeDueQuery).WillReturnRows(rows)

	_, err := repo.TakeDue(context.Background(), time.Now(), 5)
	if err == nil || err.Error() != "row-err" {
		t.Fatalf("expected rows.Err 'row-err', got %v", err)
	}
}
