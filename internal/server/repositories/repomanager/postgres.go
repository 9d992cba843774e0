package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophdrop/internal/server/migrations"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/reaps"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresManager vends PostgreSQL-backed repositories sharing one pool.
type PostgresManager struct {
	db    *sql.DB
	files *files.PostgresRepository
	reaps *reaps.PostgresRepository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// NewPostgresManager opens a pgx pool for dsn and verifies connectivity.
func NewPostgresManager(ctx context.Context, dsn string) (*PostgresManager, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return NewPostgresManagerFromDB(db), nil
}

// NewPostgresManagerFromDB wraps an already opened pool.
func NewPostgresManagerFromDB(db *sql.DB) *PostgresManager {
	return &PostgresManager{
		db:    db,
		files: files.NewPostgresRepository(db),
		reaps: reaps.NewPostgresRepository(db),
	}
}

func (m *PostgresManager) Files() files.Repository { return m.files }

func (m *PostgresManager) Reaps() reaps.Repository { return m.reaps }

// RunMigrations sets up goose with the embedded migrations and runs them.
func (m *PostgresManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresManager) Close() error {
	return m.db.Close()
}
