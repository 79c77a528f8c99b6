package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
)

func addCount(dst **int64, v *int64) {
	if v == nil {
		return
	}
	if *dst == nil {
		*dst = datum.Int64(*v)
		return
	}
	**dst += *v
}

func (s *Store) AddAuditCounts(ctx context.Context, streamID uuid.UUID, hour time.Time, counts datum.AuditCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour = hour.UTC()
	key := kindKey{streamID, aggregation.Hour, nanos(hour)}
	row, exists := s.audit[key]
	if !exists {
		row = &datum.AuditDatum{StreamID: streamID, Timestamp: hour, Aggregation: aggregation.Hour}
		s.audit[key] = row
	}
	addCount(&row.DatumCount, counts.DatumCount)
	addCount(&row.DatumHourlyCount, counts.DatumHourlyCount)
	addCount(&row.DatumDailyCount, counts.DatumDailyCount)
	addCount(&row.DatumMonthlyCount, counts.DatumMonthlyCount)
	addCount(&row.DatumPropertyCount, counts.DatumPropertyCount)
	addCount(&row.DatumPropertyUpdateCount, counts.DatumPropertyUpdateCount)
	addCount(&row.DatumQueryCount, counts.DatumQueryCount)
	addCount(&row.FluxDataInCount, counts.FluxDataInCount)
	return nil
}

func (s *Store) StoreAuditDatum(ctx context.Context, a *datum.AuditDatum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *a
	c.AuditCounts = cloneCounts(a.AuditCounts)
	s.audit[kindKey{a.StreamID, a.Aggregation, nanos(a.Timestamp)}] = &c
	return nil
}

func (s *Store) findAudit(c *criteria.AuditCriteria, kind aggregation.Kind) *storage.FilterResults[datum.AuditDatum] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []datum.AuditDatum
	for k, a := range s.audit {
		if k.kind != kind {
			continue
		}
		if !s.selectStream(c, a.StreamID, false) || !s.inRange(c, a.StreamID, a.Timestamp) {
			continue
		}
		r := *a
		r.AuditCounts = cloneCounts(a.AuditCounts)
		rows = append(rows, r)
	}
	s.sortRows(c.Sorts(), len(rows), func(i int) sortRow {
		return sortRow{rows[i].StreamID, rows[i].Timestamp}
	}, func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	if c.MostRecent() {
		rows = latestPerStream(rows, func(a datum.AuditDatum) sortRow { return sortRow{a.StreamID, a.Timestamp} })
	}
	return page(rows, c)
}

func (s *Store) FindAuditDatumFiltered(ctx context.Context, c *criteria.AuditCriteria) (*storage.FilterResults[datum.AuditDatum], error) {
	if c == nil {
		c = &criteria.AuditCriteria{}
	}
	kind := c.Aggregation()
	if !kind.IsSet() {
		kind = aggregation.Hour
	}
	return s.findAudit(c, kind), nil
}

func (s *Store) FindAccumulativeAuditDatumFiltered(ctx context.Context, c *criteria.AuditCriteria) (*storage.FilterResults[datum.AuditDatum], error) {
	if c == nil {
		c = &criteria.AuditCriteria{}
	}
	return s.findAudit(c, aggregation.RunningTotal), nil
}

func (s *Store) MarkAuditStale(ctx context.Context, streamID uuid.UUID, ts time.Time, kind aggregation.Kind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := kindKey{streamID, kind, nanos(ts)}
	if _, exists := s.staleAudit[key]; exists {
		return false, nil
	}
	s.staleAudit[key] = datum.StaleAuditDatum{StreamID: streamID, Timestamp: ts, Kind: kind, Created: s.clock.Now()}
	return true, nil
}

func (s *Store) FindStaleAuditDatum(ctx context.Context, kind aggregation.Kind, max int) ([]datum.StaleAuditDatum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := []datum.StaleAuditDatum{}
	for _, st := range s.staleAudit {
		if kind.IsSet() && st.Kind != kind {
			continue
		}
		rows = append(rows, st)
	}
	slices.SortFunc(rows, func(a, b datum.StaleAuditDatum) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		if c := cmp.Compare(a.StreamID.String(), b.StreamID.String()); c != 0 {
			return c
		}
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return a.Kind.Compare(b.Kind)
	})
	if max > 0 && len(rows) > max {
		rows = rows[:max]
	}
	return rows, nil
}

func (s *Store) DeleteStaleAuditDatum(ctx context.Context, st datum.StaleAuditDatum) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := kindKey{st.StreamID, st.Kind, nanos(st.Timestamp)}
	if _, exists := s.staleAudit[key]; !exists {
		return false, nil
	}
	delete(s.staleAudit, key)
	return true, nil
}
