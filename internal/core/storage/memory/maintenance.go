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

func (s *Store) MarkDatumAggregatesStale(ctx context.Context, c *criteria.DatumCriteria) (int, error) {
	if err := storage.RequireDateRange(c); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := storage.StaleKindsFor(c.Aggregation())
	now := s.clock.Now()
	var n int
	for _, d := range s.datums {
		if !s.selectStream(c, d.StreamID, false) || !s.inRange(c, d.StreamID, d.Timestamp) {
			continue
		}
		loc := s.metas[d.StreamID].Location()
		for _, k := range kinds {
			bucket := k.Floor(d.Timestamp, loc)
			key := kindKey{d.StreamID, k, nanos(bucket)}
			if _, exists := s.stale[key]; exists {
				continue
			}
			s.stale[key] = datum.StaleAggregateDatum{StreamID: d.StreamID, Timestamp: bucket, Kind: k, Created: now}
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkAggregateStale(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, ts time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := kindKey{streamID, kind, nanos(ts)}
	if _, exists := s.stale[key]; exists {
		return false, nil
	}
	s.stale[key] = datum.StaleAggregateDatum{StreamID: streamID, Timestamp: ts, Kind: kind, Created: s.clock.Now()}
	return true, nil
}

func compareStale(a, b datum.StaleAggregateDatum) int {
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
}

func (s *Store) FindStaleAggregateDatum(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.StaleAggregateDatum], error) {
	if c == nil {
		c = &criteria.DatumCriteria{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []datum.StaleAggregateDatum
	for _, st := range s.stale {
		if c.Aggregation().IsSet() && st.Kind != c.Aggregation() {
			continue
		}
		if !s.selectStream(c, st.StreamID, false) || !s.inRange(c, st.StreamID, st.Timestamp) {
			continue
		}
		rows = append(rows, st)
	}
	slices.SortFunc(rows, compareStale)
	return page(rows, c), nil
}

func (s *Store) DeleteStaleAggregateDatum(ctx context.Context, st datum.StaleAggregateDatum) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := kindKey{st.StreamID, st.Kind, nanos(st.Timestamp)}
	if _, exists := s.stale[key]; !exists {
		return false, nil
	}
	delete(s.stale, key)
	return true, nil
}

func (s *Store) CountDatumRecords(ctx context.Context, c *criteria.DatumCriteria) (*datum.DatumRecordCounts, error) {
	if err := storage.RequireDateRange(c); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &datum.DatumRecordCounts{}
	for _, d := range s.datums {
		if s.selectStream(c, d.StreamID, false) && s.inRange(c, d.StreamID, d.Timestamp) {
			counts.DatumCount++
		}
	}
	for k, a := range s.aggregates {
		if !s.selectStream(c, a.StreamID, false) || !s.inRange(c, a.StreamID, a.Timestamp) {
			continue
		}
		switch k.kind {
		case aggregation.Hour:
			counts.DatumHourlyCount++
		case aggregation.Day:
			counts.DatumDailyCount++
		case aggregation.Month:
			counts.DatumMonthlyCount++
		}
	}
	return counts, nil
}

func (s *Store) DeleteFiltered(ctx context.Context, c *criteria.DatumCriteria) (int64, error) {
	if err := storage.RequireDateRange(c); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, d := range s.datums {
		if s.selectStream(c, d.StreamID, false) && s.inRange(c, d.StreamID, d.Timestamp) {
			delete(s.datums, k)
			n++
		}
	}
	for k, a := range s.aggregates {
		if s.selectStream(c, a.StreamID, false) && s.inRange(c, a.StreamID, a.Timestamp) {
			delete(s.aggregates, k)
		}
	}
	for k, st := range s.stale {
		if s.selectStream(c, st.StreamID, false) && s.inRange(c, st.StreamID, st.Timestamp) {
			delete(s.stale, k)
		}
	}
	return n, nil
}

func (s *Store) DeleteForIDs(ctx context.Context, userID int64, ids []datum.ObjectDatumID) ([]datum.ObjectDatumID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []datum.ObjectDatumID
	for _, id := range ids {
		if !id.IsFullySpecified() {
			continue
		}
		meta := s.metas[id.StreamID]
		if meta == nil || meta.UserID != userID {
			continue
		}
		if id.Aggregation == aggregation.None {
			key := tsKey{id.StreamID, nanos(id.Timestamp)}
			if _, exists := s.datums[key]; !exists {
				continue
			}
			delete(s.datums, key)
			bucket := aggregation.Hour.Floor(id.Timestamp, meta.Location())
			sk := kindKey{id.StreamID, aggregation.Hour, nanos(bucket)}
			if _, exists := s.stale[sk]; !exists {
				s.stale[sk] = datum.StaleAggregateDatum{StreamID: id.StreamID, Timestamp: bucket, Kind: aggregation.Hour, Created: s.clock.Now()}
			}
		} else {
			key := kindKey{id.StreamID, id.Aggregation, nanos(id.Timestamp)}
			if _, exists := s.aggregates[key]; !exists {
				continue
			}
			delete(s.aggregates, key)
		}
		objectID := meta.ObjectID
		id.Kind = meta.Kind.OrDefault()
		id.ObjectID = &objectID
		id.SourceID = meta.SourceID
		deleted = append(deleted, id)
	}
	return deleted, nil
}
