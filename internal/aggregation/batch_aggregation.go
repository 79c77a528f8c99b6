package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/partition"
	"github.com/aevon-lab/aevon-datum/internal/core/rollup"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/alitto/pond/v2"
)

const (
	defaultBatchSize   = 1000
	defaultWorkerCount = 10
)

// BatchJobParameter controls throughput of one stale aggregation run.
type BatchJobParameter struct {
	BatchSize   int
	WorkerCount int
}

// DefaultBatchJobOptions returns safe defaults for scheduled processing.
func DefaultBatchJobOptions() BatchJobParameter {
	return BatchJobParameter{
		BatchSize:   defaultBatchSize,
		WorkerCount: defaultWorkerCount,
	}
}

func (o BatchJobParameter) normalized() BatchJobParameter {
	n := o
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if n.WorkerCount <= 0 {
		n.WorkerCount = defaultWorkerCount
	}
	return n
}

// RunStaleAggregation claims up to BatchSize stale aggregate rows, oldest
// first, and recomputes each one. Rows are grouped by stream partition so a
// stream's buckets are handled by one worker, finest level first. It returns
// the number of rows processed.
//
// Each row is deleted before it is recomputed; a datum arriving meanwhile
// re-marks the bucket and the next run picks it up again.
func RunStaleAggregation(ctx context.Context, store storage.Store, opts BatchJobParameter) (int, error) {
	opts = opts.normalized()

	c := &criteria.DatumCriteria{}
	c.SetMax(opts.BatchSize)
	stale, err := store.FindStaleAggregateDatum(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("query stale aggregates: %w", err)
	}
	if len(stale.Results) == 0 {
		slog.Debug("[BatchJob] No stale aggregates to process")
		return 0, nil
	}

	groups := groupByPartition(stale.Results)

	pool := pond.NewPool(minInt(opts.WorkerCount, len(groups)))
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var processed atomic.Int64
	var firstErr error
	var errOnce sync.Once
	for _, rows := range groups {
		rows := rows
		group.Submit(func() {
			for _, st := range rows {
				if groupCtx.Err() != nil {
					return
				}
				if err := recompute(groupCtx, store, st); err != nil {
					errOnce.Do(func() { firstErr = fmt.Errorf("recompute %s: %w", st, err) })
					slog.Error("[BatchJob] Stale aggregate recompute failed", "stale", st.String(), "error", err)
					return
				}
				processed.Add(1)
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return int(processed.Load()), err
	}
	if firstErr != nil {
		return int(processed.Load()), firstErr
	}
	if err := ctx.Err(); err != nil {
		return int(processed.Load()), err
	}

	slog.Info("[BatchJob] Batch complete",
		"stale_claimed", len(stale.Results),
		"processed", processed.Load(),
		"partitions", len(groups),
	)
	return int(processed.Load()), nil
}

// groupByPartition splits rows by stream partition, ordering each group by
// level (finest first) and then bucket time.
func groupByPartition(rows []datum.StaleAggregateDatum) [][]datum.StaleAggregateDatum {
	byPartition := make(map[int][]datum.StaleAggregateDatum)
	var order []int
	for _, st := range rows {
		p := partition.For(st.StreamID)
		if _, ok := byPartition[p]; !ok {
			order = append(order, p)
		}
		byPartition[p] = append(byPartition[p], st)
	}

	out := make([][]datum.StaleAggregateDatum, 0, len(order))
	for _, p := range order {
		g := byPartition[p]
		sort.SliceStable(g, func(i, j int) bool {
			if c := g[i].Kind.Compare(g[j].Kind); c != 0 {
				return c < 0
			}
			return g[i].Timestamp.Before(g[j].Timestamp)
		})
		out = append(out, g)
	}
	return out
}

// recompute rebuilds one stale bucket, then marks the next coarser level and
// the audit day of the bucket stale.
func recompute(ctx context.Context, store storage.Store, st datum.StaleAggregateDatum) error {
	if _, err := store.DeleteStaleAggregateDatum(ctx, st); err != nil {
		return fmt.Errorf("delete stale marker: %w", err)
	}

	mc := &criteria.StreamMetadataCriteria{}
	mc.SetStreamID(st.StreamID)
	meta, err := store.FindStreamMetadata(ctx, mc)
	if err != nil {
		return fmt.Errorf("load stream metadata: %w", err)
	}
	loc := meta.Location()

	start := st.Timestamp
	end := st.Kind.Next(start, loc)
	if !end.After(start) {
		slog.Warn("[BatchJob] Skip stale row without periodic bucket", "stale", st.String())
		return nil
	}

	agg, err := rollup.Compute(ctx, store, st.StreamID, aggregation.SourceKind(st.Kind), st.Kind, start, start, end)
	if err != nil {
		return err
	}

	if agg == nil {
		if _, err := store.DeleteAggregate(ctx, st.StreamID, st.Kind, start); err != nil {
			return fmt.Errorf("delete aggregate: %w", err)
		}
	} else if err := store.StoreAggregate(ctx, agg); err != nil {
		return fmt.Errorf("store aggregate: %w", err)
	}

	if next, ok := aggregation.NextStaleKind(st.Kind); ok {
		if _, err := store.MarkAggregateStale(ctx, st.StreamID, next, next.Floor(start, loc)); err != nil {
			return fmt.Errorf("mark %s stale: %w", next, err)
		}
	}
	if _, err := store.MarkAuditStale(ctx, st.StreamID, aggregation.Day.Floor(start, loc), aggregation.Day); err != nil {
		return fmt.Errorf("mark audit stale: %w", err)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
