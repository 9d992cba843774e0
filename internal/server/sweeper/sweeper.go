// Package sweeper removes expired file records and deletes blobs that are no
// longer referenced. The vault never relies on it for correctness: expiry is
// checked on every read, and the sweeper only reclaims space.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/logging"
	"github.com/dmitrijs2005/gophdrop/internal/server/config"
	"github.com/dmitrijs2005/gophdrop/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrop/internal/server/objectstore"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/reaps"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/repomanager"
)

// maxBatchesPerPass stops one pass from spinning forever behind a flood of
// new expirations; the next tick picks up the rest.
const maxBatchesPerPass = 100

// Result counts what one pass removed.
type Result struct {
	Records int
	Blobs   int
	Failed  int
}

// Sweeper reclaims expired records and queued blobs.
type Sweeper struct {
	files   files.Repository
	reaps   reaps.Repository
	store   objectstore.Store
	logger  logging.Logger
	metrics metrics.Metrics

	interval time.Duration
	timeout  time.Duration
	batch    int
	now      func() time.Time
}

// New builds a Sweeper over the manager's repositories using the sweep
// settings from cfg.
func New(m repomanager.Manager, store objectstore.Store, cfg *config.Config, logger logging.Logger, mx metrics.Metrics) *Sweeper {
	return &Sweeper{
		files:    m.Files(),
		reaps:    m.Reaps(),
		store:    store,
		logger:   logger.With("module", "sweeper"),
		metrics:  mx,
		interval: cfg.SweepInterval,
		timeout:  cfg.SweepTimeout,
		batch:    cfg.SweepBatchSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Error(ctx, "sweeper disabled: interval must be positive", "interval", s.interval)
		return
	}

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	res, err := s.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.metrics.IncSweepErrors()
		s.logger.Error(ctx, "sweep failed", "error", err)
		return
	}
	if res.Records > 0 || res.Blobs > 0 || res.Failed > 0 {
		s.logger.Info(ctx, "sweep finished", "records", res.Records, "blobs", res.Blobs, "failed", res.Failed)
	}
}

// RunOnce performs a single pass bounded by the sweep timeout: expired
// records first, then the blob queue.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	now := s.now()

	for i := 0; i < maxBatchesPerPass; i++ {
		recs, err := s.files.DeleteExpired(ctx, now, s.batch)
		if err != nil {
			return res, err
		}
		res.Records += len(recs)
		s.metrics.AddSwept(metrics.SweptRecords, len(recs))
		for _, rec := range recs {
			s.deleteBlob(ctx, rec.StorageKey, now, &res)
		}
		if len(recs) < s.batch {
			break
		}
	}

	for i := 0; i < maxBatchesPerPass; i++ {
		keys, err := s.reaps.TakeDue(ctx, now, s.batch)
		if err != nil {
			return res, err
		}
		for _, key := range keys {
			s.deleteBlob(ctx, key, now, &res)
		}
		if len(keys) < s.batch {
			break
		}
	}

	return res, nil
}

// deleteBlob removes one object. A failed delete goes back on the queue one
// interval later.
func (s *Sweeper) deleteBlob(ctx context.Context, key string, now time.Time, res *Result) {
	if err := s.store.Delete(ctx, key); err != nil {
		res.Failed++
		s.metrics.IncSweepErrors()
		s.logger.Warn(ctx, "blob delete failed, rescheduling", "storage_key", key, "error", err)
		if err := s.reaps.Schedule(ctx, key, now.Add(s.interval)); err != nil {
			s.logger.Error(ctx, "failed to reschedule blob delete", "storage_key", key, "error", err)
		}
		return
	}
	res.Blobs++
	s.metrics.AddSwept(metrics.SweptBlobs, 1)
}
