package memory

import (
	"context"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	coreerrors "github.com/aevon-lab/aevon-datum/internal/core/errors"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
)

func (s *Store) Store(ctx context.Context, d *datum.Datum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tsKey{d.StreamID, nanos(d.Timestamp)}
	if _, exists := s.datums[key]; exists {
		return storage.ErrDuplicate
	}
	s.datums[key] = cloneDatum(d)
	return nil
}

func (s *Store) Delete(ctx context.Context, pk datum.DatumPK) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tsKey{pk.StreamID, nanos(pk.Timestamp)}
	if _, exists := s.datums[key]; !exists {
		return false, nil
	}
	delete(s.datums, key)
	return true, nil
}

func (s *Store) FindFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.Datum], error) {
	if c == nil {
		c = &criteria.DatumCriteria{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []datum.Datum
	for _, d := range s.datums {
		if !s.selectStream(c, d.StreamID, false) || !s.inRange(c, d.StreamID, d.Timestamp) {
			continue
		}
		rows = append(rows, *cloneDatum(d))
	}
	s.sortRows(c.Sorts(), len(rows), func(i int) sortRow {
		return sortRow{rows[i].StreamID, rows[i].Timestamp}
	}, func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	if c.MostRecent() {
		rows = latestPerStream(rows, func(d datum.Datum) sortRow { return sortRow{d.StreamID, d.Timestamp} })
	}
	return page(rows, c), nil
}

func (s *Store) FindFilteredStream(ctx context.Context, c *criteria.DatumCriteria, p storage.StreamProcessor[datum.Datum]) error {
	res, err := s.FindFiltered(ctx, c)
	if err != nil {
		return err
	}
	if err := p.Start(res.TotalResults); err != nil {
		return err
	}
	for _, d := range res.Results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Handle(d); err != nil {
			return err
		}
	}
	return p.Finish()
}

func (s *Store) FindAggregateFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.AggregateDatum], error) {
	if c == nil || !c.Aggregation().IsSet() {
		return nil, coreerrors.InvalidArgumentf("aggregation required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []datum.AggregateDatum
	for k, a := range s.aggregates {
		if k.kind != c.Aggregation() {
			continue
		}
		if !s.selectStream(c, a.StreamID, false) || !s.inRange(c, a.StreamID, a.Timestamp) {
			continue
		}
		rows = append(rows, *cloneAggregate(a))
	}
	s.sortRows(c.Sorts(), len(rows), func(i int) sortRow {
		return sortRow{rows[i].StreamID, rows[i].Timestamp}
	}, func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	if c.MostRecent() {
		rows = latestPerStream(rows, func(a datum.AggregateDatum) sortRow { return sortRow{a.StreamID, a.Timestamp} })
	}
	return page(rows, c), nil
}

func (s *Store) StoreAggregate(ctx context.Context, a *datum.AggregateDatum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aggregates[kindKey{a.StreamID, a.Aggregation, nanos(a.Timestamp)}] = cloneAggregate(a)
	return nil
}

func (s *Store) DeleteAggregate(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, ts time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := kindKey{streamID, kind, nanos(ts)}
	if _, exists := s.aggregates[key]; !exists {
		return false, nil
	}
	delete(s.aggregates, key)
	return true, nil
}
