package rollup

import (
	"context"
	"fmt"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
)

// Source is the read access needed to load calculation input.
type Source interface {
	FindFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.Datum], error)
	FindAggregateFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.AggregateDatum], error)
	FindAuxiliaryFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.DatumAuxiliary], error)
}

func timeRange(streamID uuid.UUID, start, end time.Time) *criteria.DatumCriteria {
	c := &criteria.DatumCriteria{}
	c.SetStreamID(streamID)
	c.SetStartDate(start)
	c.SetEndDate(end)
	c.SetSorts([]criteria.SortDescriptor{{Key: criteria.SortTime}})
	return c
}

// LoadSequence returns the raw datum and resets of a stream within
// [start, end) followed by the first raw datum at or after end. It returns
// nil when no raw datum falls inside the range.
func LoadSequence(ctx context.Context, src Source, streamID uuid.UUID, start, end time.Time) ([]datum.TypedDatum, error) {
	raw, err := src.FindFiltered(ctx, timeRange(streamID, start, end))
	if err != nil {
		return nil, fmt.Errorf("query datum: %w", err)
	}
	if len(raw.Results) == 0 {
		return nil, nil
	}

	nc := timeRange(streamID, end, time.Time{})
	nc.SetMax(1)
	next, err := src.FindFiltered(ctx, nc)
	if err != nil {
		return nil, fmt.Errorf("query following datum: %w", err)
	}

	aux, err := resets(ctx, src, streamID, start, end)
	if err != nil {
		return nil, err
	}
	return MergeTyped(append(raw.Results, next.Results...), aux), nil
}

// LoadReadingSequence returns what a reading over [start, end] may use: the
// raw datum from the latest one at or before start through the earliest one
// at or after end, plus the resets among them.
func LoadReadingSequence(ctx context.Context, src Source, streamID uuid.UUID, start, end time.Time) ([]datum.TypedDatum, error) {
	lower := start
	pc := timeRange(streamID, time.Time{}, start.Add(time.Nanosecond))
	pc.SetSorts([]criteria.SortDescriptor{{Key: criteria.SortTime, Descending: true}})
	pc.SetMax(1)
	prev, err := src.FindFiltered(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("query preceding datum: %w", err)
	}
	if len(prev.Results) > 0 {
		lower = prev.Results[0].Timestamp
	}

	upper := end.Add(time.Nanosecond)
	nc := timeRange(streamID, end, time.Time{})
	nc.SetMax(1)
	next, err := src.FindFiltered(ctx, nc)
	if err != nil {
		return nil, fmt.Errorf("query following datum: %w", err)
	}
	if len(next.Results) > 0 {
		upper = next.Results[0].Timestamp.Add(time.Nanosecond)
	}

	raw, err := src.FindFiltered(ctx, timeRange(streamID, lower, upper))
	if err != nil {
		return nil, fmt.Errorf("query datum: %w", err)
	}
	aux, err := resets(ctx, src, streamID, lower, upper)
	if err != nil {
		return nil, err
	}
	return MergeTyped(raw.Results, aux), nil
}

func resets(ctx context.Context, src Source, streamID uuid.UUID, start, end time.Time) ([]datum.DatumAuxiliary, error) {
	c := timeRange(streamID, start, end)
	c.SetAuxiliaryKind(datum.Reset)
	aux, err := src.FindAuxiliaryFiltered(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("query auxiliary: %w", err)
	}
	return aux.Results, nil
}

// Compute builds the kind aggregate of a stream for [start, end) labelled
// ts. Input comes from raw datum when from is None, otherwise from the stored
// from-level aggregates inside the range. Returns nil when there is no input.
func Compute(ctx context.Context, src Source, streamID uuid.UUID, from, kind aggregation.Kind, ts, start, end time.Time) (*datum.AggregateDatum, error) {
	if from == aggregation.None || !from.IsSet() {
		seq, err := LoadSequence(ctx, src, streamID, start, end)
		if err != nil || seq == nil {
			return nil, err
		}
		agg := ComputeAggregate(streamID, kind, start, end, seq)
		if agg != nil {
			agg.Timestamp = ts
		}
		return agg, nil
	}

	c := timeRange(streamID, start, end)
	c.SetAggregation(from)
	parts, err := src.FindAggregateFiltered(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("query %s aggregates: %w", from, err)
	}
	return RollupAggregates(streamID, kind, ts, parts.Results), nil
}
