package aggregation

import (
	"context"
	"log/slog"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/coder/quartz"
)

const maxConsecutiveBatches = 100

// Scheduler runs the stale aggregation job on a periodic interval.
// It is stateless: each tick drains whatever the stale queue holds.
type Scheduler struct {
	interval time.Duration
	store    storage.Store
	opts     BatchJobParameter
	clock    quartz.Clock
}

// NewScheduler creates a scheduler. A nil clock uses the real clock.
func NewScheduler(interval time.Duration, store storage.Store, opts BatchJobParameter, clock quartz.Clock) *Scheduler {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Scheduler{
		interval: interval,
		store:    store,
		opts:     opts.normalized(),
		clock:    clock,
	}
}

// Start begins periodic stale processing.
// Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval, "aggregation", "scheduler")
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting stale aggregation scheduler",
		"interval", s.interval,
		"batch_size", s.opts.BatchSize,
		"workers", s.opts.WorkerCount,
	)

	s.drainBacklog(ctx)

	for {
		select {
		case <-ticker.C:
			s.drainBacklog(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

// drainBacklog runs batches until one comes back short, so a burst of
// ingestion does not leave buckets stale for many intervals.
func (s *Scheduler) drainBacklog(ctx context.Context) {
	batchCount := 0

	for batchCount < maxConsecutiveBatches {
		if ctx.Err() != nil {
			slog.Info("[Scheduler] Drain interrupted by context cancellation", "batches_processed", batchCount)
			return
		}

		processed, err := RunStaleAggregation(ctx, s.store, s.opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("[Scheduler] Stale aggregation failed",
				"error", err,
				"batch_number", batchCount+1,
			)
			return
		}

		batchCount++

		if processed < s.opts.BatchSize {
			if batchCount > 1 {
				slog.Info("[Scheduler] Backlog drained", "total_batches", batchCount)
			}
			return
		}

		slog.Info("[Scheduler] Backlog detected, continuing to drain", "batches_so_far", batchCount)
	}

	slog.Warn("[Scheduler] Max consecutive batches reached, pausing drain",
		"max_batches", maxConsecutiveBatches,
	)
}
