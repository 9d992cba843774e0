package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/reaps"
)

// InMemoryManager keeps everything in process memory. State is lost on exit
// and is not shared between instances.
type InMemoryManager struct {
	files *files.InMemoryRepository
	reaps *reaps.InMemoryRepository
}

// NewInMemoryManager pairs an in-memory files repository with its reap queue.
func NewInMemoryManager() *InMemoryManager {
	q := reaps.NewInMemoryRepository()
	return &InMemoryManager{files: files.NewInMemoryRepository(q), reaps: q}
}

func (m *InMemoryManager) Files() files.Repository { return m.files }

func (m *InMemoryManager) Reaps() reaps.Repository { return m.reaps }

func (m *InMemoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *InMemoryManager) Ping(ctx context.Context) error { return nil }

func (m *InMemoryManager) Close() error { return nil }
