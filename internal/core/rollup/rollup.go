package rollup

import (
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComputeAggregate aggregates the raw datum of the bucket [start, end).
//
// seq must be time ordered (see MergeTyped). Elements before start are
// ignored. The first element at or after end closes the accumulating spans
// when it is a raw reading, so consecutive buckets add up to the total
// difference; it contributes nothing else. Returns nil when no raw datum falls inside the
// bucket.
func ComputeAggregate(streamID uuid.UUID, kind aggregation.Kind, start, end time.Time, seq []datum.TypedDatum) *datum.AggregateDatum {
	var f folder
	for _, td := range seq {
		if td.Timestamp.Before(start) {
			continue
		}
		if !td.Timestamp.Before(end) {
			if td.Type == datum.RecordRaw && f.raw > 0 {
				f.addReading(td)
			}
			break
		}
		if td.Type == datum.RecordRaw {
			f.addSample(td.Properties)
		}
		f.addReading(td)
	}
	if f.raw == 0 {
		return nil
	}
	f.finish()

	props, stats := f.result()
	return &datum.AggregateDatum{
		DatumPK:     datum.DatumPK{StreamID: streamID, Timestamp: start},
		Aggregation: kind,
		Properties:  props,
		Statistics:  stats,
	}
}

// RollupAggregates combines finer aggregates of one stream into a single kind
// row starting at ts. Instantaneous values are count weighted; accumulating
// differences are summed with the first start and last end kept. parts must
// be time ordered. Returns nil when parts is empty.
func RollupAggregates(streamID uuid.UUID, kind aggregation.Kind, ts time.Time, parts []datum.AggregateDatum) *datum.AggregateDatum {
	if len(parts) == 0 {
		return nil
	}
	var inst []aggregation.InstantaneousAccumulator
	var acc []aggregation.AccumulatingAccumulator
	var f folder
	for _, p := range parts {
		if p.Properties.Instantaneous != nil {
			f.hasInst = true
			inst = grow(inst, len(p.Properties.Instantaneous))
			for i, v := range p.Properties.Instantaneous {
				count, lo, hi := int64(1), v, v
				if i < len(p.Statistics.Instantaneous) && p.Statistics.Instantaneous[i] != nil {
					st := p.Statistics.Instantaneous[i]
					count, lo, hi = st.Count, st.Min, st.Max
				}
				inst[i].AddWeighted(v, count, lo, hi)
			}
		}
		if p.Properties.Accumulating != nil {
			f.hasAcc = true
			acc = grow(acc, len(p.Properties.Accumulating))
			for i, v := range p.Properties.Accumulating {
				start, end := decimal.Zero, decimal.Zero
				if i < len(p.Statistics.Accumulating) && p.Statistics.Accumulating[i] != nil {
					st := p.Statistics.Accumulating[i]
					start, end = st.Start, st.End
				}
				acc[i].AddSpan(v, start, end)
			}
		}
		if p.Properties.Status != nil {
			f.hasStatus = true
			f.status = grow(f.status, len(p.Properties.Status))
			for i, v := range p.Properties.Status {
				if v != "" {
					f.status[i] = v
				}
			}
		}
		f.addTags(p.Properties.Tags)
	}
	f.inst, f.acc = inst, acc

	props, stats := f.result()
	return &datum.AggregateDatum{
		DatumPK:     datum.DatumPK{StreamID: streamID, Timestamp: ts},
		Aggregation: kind,
		Properties:  props,
		Statistics:  stats,
	}
}
