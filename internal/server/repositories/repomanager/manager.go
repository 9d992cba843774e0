// Package repomanager bundles the metadata store repositories behind one
// handle per backend and owns the backend's connection and schema.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/reaps"
)

// Manager is implemented by every metadata backend.
type Manager interface {
	Files() files.Repository
	Reaps() reaps.Repository
	// RunMigrations brings the backend schema up to date. No-op where the
	// backend has no schema.
	RunMigrations(ctx context.Context) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
