package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/coder/quartz"
	"github.com/google/uuid"
)

// Service records usage counters and rolls them up. Counters are stamped
// with the stream-local hour of the injected clock's current time.
type Service struct {
	store storage.Store
	clock quartz.Clock
}

// NewService creates a service. A nil clock uses the real clock.
func NewService(store storage.Store, clock quartz.Clock) *Service {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Service{store: store, clock: clock}
}

// record adds counts to the current hour of the stream and queues its day
// for rollup.
func (s *Service) record(ctx context.Context, meta *datum.ObjectDatumStreamMetadata, counts datum.AuditCounts) error {
	if meta == nil {
		return nil
	}
	loc := meta.Location()
	hour := aggregation.Hour.Floor(s.clock.Now(), loc)
	if err := s.store.AddAuditCounts(ctx, meta.StreamID, hour, counts); err != nil {
		return fmt.Errorf("failed to add audit counts: %w", err)
	}
	// The day holding the hour row must be the one recomputed.
	if _, err := s.store.MarkAuditStale(ctx, meta.StreamID, aggregation.Day.Floor(hour, loc), aggregation.Day); err != nil {
		return fmt.Errorf("failed to mark audit stale: %w", err)
	}
	return nil
}

// AddDatumIngest counts stored datum and the properties they carried.
func (s *Service) AddDatumIngest(ctx context.Context, meta *datum.ObjectDatumStreamMetadata, datumCount, propertyCount int64) error {
	return s.record(ctx, meta, datum.AuditCounts{
		DatumCount:         datum.Int64(datumCount),
		DatumPropertyCount: datum.Int64(propertyCount),
	})
}

// AddPropertyUpdates counts properties re-posted over existing datum.
func (s *Service) AddPropertyUpdates(ctx context.Context, meta *datum.ObjectDatumStreamMetadata, count int64) error {
	return s.record(ctx, meta, datum.AuditCounts{DatumPropertyUpdateCount: datum.Int64(count)})
}

// AddFluxDataIn counts bytes received for a stream from a flux feed.
func (s *Service) AddFluxDataIn(ctx context.Context, meta *datum.ObjectDatumStreamMetadata, bytes int64) error {
	return s.record(ctx, meta, datum.AuditCounts{FluxDataInCount: datum.Int64(bytes)})
}

// AddQueryCounts counts rows returned by a query, per stream. Streams
// without a count are skipped.
func (s *Service) AddQueryCounts(ctx context.Context, metas []*datum.ObjectDatumStreamMetadata, counts map[uuid.UUID]int64) error {
	for _, m := range metas {
		if m == nil || counts[m.StreamID] <= 0 {
			continue
		}
		if err := s.record(ctx, m, datum.AuditCounts{DatumQueryCount: datum.Int64(counts[m.StreamID])}); err != nil {
			return err
		}
	}
	return nil
}

// RollupStale recomputes up to max stale audit rows, oldest first, and
// returns how many were processed. A day is the sum of its hours plus the
// aggregate rows it holds; a month the sum of its days; a running total the
// sum of every month.
func (s *Service) RollupStale(ctx context.Context, max int) (int, error) {
	rows, err := s.store.FindStaleAuditDatum(ctx, "", max)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale audit datum: %w", err)
	}

	processed := 0
	for _, st := range rows {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := s.rollup(ctx, st); err != nil {
			return processed, fmt.Errorf("audit rollup %s %s %s: %w", st.StreamID, st.Kind, st.Timestamp.Format(time.RFC3339), err)
		}
		processed++
	}
	if processed > 0 {
		slog.Info("[Audit] Rolled up stale audit datum", "processed", processed)
	}
	return processed, nil
}

func (s *Service) rollup(ctx context.Context, st datum.StaleAuditDatum) error {
	if _, err := s.store.DeleteStaleAuditDatum(ctx, st); err != nil {
		return fmt.Errorf("delete stale marker: %w", err)
	}

	mc := &criteria.StreamMetadataCriteria{}
	mc.SetStreamID(st.StreamID)
	meta, err := s.store.FindStreamMetadata(ctx, mc)
	if err != nil {
		return fmt.Errorf("load stream metadata: %w", err)
	}
	loc := meta.Location()

	var row datum.AuditDatum
	var next aggregation.Kind
	var nextTS time.Time
	switch st.Kind {
	case aggregation.Day:
		start, end := st.Timestamp, aggregation.Day.Next(st.Timestamp, loc)
		hours, err := s.auditRows(ctx, st.StreamID, aggregation.Hour, start, end)
		if err != nil {
			return err
		}
		row = SumAuditDatum(st.StreamID, aggregation.Day, start, hours)
		counts, err := s.countAggregates(ctx, st.StreamID, start, end)
		if err != nil {
			return err
		}
		row.DatumHourlyCount = datum.Int64(counts.DatumHourlyCount)
		row.DatumDailyCount = datum.Int64(counts.DatumDailyCount)
		next, nextTS = aggregation.Month, aggregation.Month.Floor(start, loc)

	case aggregation.Month:
		start, end := st.Timestamp, aggregation.Month.Next(st.Timestamp, loc)
		days, err := s.auditRows(ctx, st.StreamID, aggregation.Day, start, end)
		if err != nil {
			return err
		}
		row = SumAuditDatum(st.StreamID, aggregation.Month, start, days)
		counts, err := s.countAggregates(ctx, st.StreamID, start, end)
		if err != nil {
			return err
		}
		row.DatumMonthlyCount = datum.Int64(counts.DatumMonthlyCount)
		next, nextTS = aggregation.RunningTotal, aggregation.Day.Floor(s.clock.Now(), loc)

	case aggregation.RunningTotal:
		months, err := s.auditRows(ctx, st.StreamID, aggregation.Month, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		row = SumAuditDatum(st.StreamID, aggregation.RunningTotal, st.Timestamp, months)

	default:
		slog.Warn("[Audit] Skip stale audit row of unsupported kind", "kind", st.Kind, "stream_id", st.StreamID)
		return nil
	}

	if err := s.store.StoreAuditDatum(ctx, &row); err != nil {
		return fmt.Errorf("store %s audit datum: %w", st.Kind, err)
	}
	if next.IsSet() {
		if _, err := s.store.MarkAuditStale(ctx, st.StreamID, nextTS, next); err != nil {
			return fmt.Errorf("mark %s audit stale: %w", next, err)
		}
	}
	return nil
}

// auditRows returns every kind row of a stream within [start, end). Zero
// bounds are open.
func (s *Service) auditRows(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, start, end time.Time) ([]datum.AuditDatum, error) {
	c := &criteria.AuditCriteria{}
	c.SetStreamID(streamID)
	c.SetAggregation(kind)
	c.SetStartDate(start)
	c.SetEndDate(end)
	res, err := s.store.FindAuditDatumFiltered(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("find %s audit datum: %w", kind, err)
	}
	return res.Results, nil
}

func (s *Service) countAggregates(ctx context.Context, streamID uuid.UUID, start, end time.Time) (*datum.DatumRecordCounts, error) {
	c := &criteria.DatumCriteria{}
	c.SetStreamID(streamID)
	c.SetStartDate(start)
	c.SetEndDate(end)
	counts, err := s.store.CountDatumRecords(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("count aggregates: %w", err)
	}
	return counts, nil
}

// FindAuditDatum returns audit rows of c's aggregation, Hour by default.
func (s *Service) FindAuditDatum(ctx context.Context, c *criteria.AuditCriteria) (*storage.FilterResults[datum.AuditDatum], error) {
	return s.store.FindAuditDatumFiltered(ctx, c)
}

// FindAccumulative returns running total rows; with most-recent set, only
// the latest per stream.
func (s *Service) FindAccumulative(ctx context.Context, c *criteria.AuditCriteria) (*storage.FilterResults[datum.AuditDatum], error) {
	return s.store.FindAccumulativeAuditDatumFiltered(ctx, c)
}

// FindRollups returns audit rows keyed by object and source instead of
// stream ID. Rows of streams without metadata are dropped.
func (s *Service) FindRollups(ctx context.Context, c *criteria.AuditCriteria) ([]datum.AuditDatumRollup, error) {
	if c == nil {
		c = &criteria.AuditCriteria{}
	}
	var res *storage.FilterResults[datum.AuditDatum]
	var err error
	if c.Aggregation() == aggregation.RunningTotal {
		res, err = s.store.FindAccumulativeAuditDatumFiltered(ctx, c)
	} else {
		res, err = s.store.FindAuditDatumFiltered(ctx, c)
	}
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return []datum.AuditDatumRollup{}, nil
	}

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, r := range res.Results {
		if !seen[r.StreamID] {
			seen[r.StreamID] = true
			ids = append(ids, r.StreamID)
		}
	}
	mc := &criteria.StreamMetadataCriteria{}
	mc.SetStreamIDs(ids)
	metas, err := s.store.FindDatumStreamMetadata(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("find stream metadata: %w", err)
	}
	byStream := make(map[uuid.UUID]*datum.ObjectDatumStreamMetadata, len(metas))
	for _, m := range metas {
		byStream[m.StreamID] = m
	}

	out := make([]datum.AuditDatumRollup, 0, len(res.Results))
	for _, r := range res.Results {
		m := byStream[r.StreamID]
		if m == nil {
			continue
		}
		out = append(out, datum.AuditDatumRollup{
			Kind:        m.Kind.OrDefault(),
			ObjectID:    m.ObjectID,
			SourceID:    m.SourceID,
			Timestamp:   r.Timestamp,
			Aggregation: r.Aggregation,
			AuditCounts: r.AuditCounts,
		})
	}
	return out, nil
}
