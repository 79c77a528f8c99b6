package rollup

import (
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
)

// ComputeReading computes the difference between two readings of one stream
// chosen according to rt:
//
//   - Difference: the latest readings at or before start and at or before end.
//   - DifferenceWithin: the earliest and latest readings within [start, end].
//   - NearestDifference: the readings closest to start and to end.
//
// A non-zero tolerance bounds how far from its boundary a chosen reading may
// be. Resets between the two readings are honoured. Returns nil when two
// distinct readings cannot be found.
func ComputeReading(streamID uuid.UUID, rt criteria.ReadingType, start, end time.Time, tolerance time.Duration, seq []datum.TypedDatum) *datum.ReadingDatum {
	si, ei := -1, -1
	switch rt {
	case criteria.ReadingDifferenceWithin:
		si = firstRaw(seq, func(t time.Time) bool { return !t.Before(start) && !t.After(end) })
		ei = lastRaw(seq, func(t time.Time) bool { return !t.Before(start) && !t.After(end) })
	case criteria.ReadingNearestDifference:
		si = nearestRaw(seq, start, tolerance)
		ei = nearestRaw(seq, end, tolerance)
	default:
		si = lastRaw(seq, func(t time.Time) bool { return !t.After(start) && within(t, start, tolerance) })
		ei = lastRaw(seq, func(t time.Time) bool { return !t.After(end) && within(t, end, tolerance) })
	}
	if si < 0 || ei < 0 || si >= ei {
		return nil
	}

	var f folder
	for _, td := range seq[si : ei+1] {
		if td.Type == datum.RecordRaw {
			f.addSample(td.Properties)
		}
		f.addReading(td)
	}
	f.finish()

	props, stats := f.result()
	return &datum.ReadingDatum{
		AggregateDatum: datum.AggregateDatum{
			DatumPK:     datum.DatumPK{StreamID: streamID, Timestamp: seq[si].Timestamp},
			Aggregation: aggregation.None,
			Properties:  props,
			Statistics:  stats,
		},
		EndTimestamp: seq[ei].Timestamp,
	}
}

func within(t, boundary time.Time, tolerance time.Duration) bool {
	if tolerance <= 0 {
		return true
	}
	d := t.Sub(boundary)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

func firstRaw(seq []datum.TypedDatum, match func(time.Time) bool) int {
	for i, td := range seq {
		if td.Type == datum.RecordRaw && match(td.Timestamp) {
			return i
		}
	}
	return -1
}

func lastRaw(seq []datum.TypedDatum, match func(time.Time) bool) int {
	for i := len(seq) - 1; i >= 0; i-- {
		if seq[i].Type == datum.RecordRaw && match(seq[i].Timestamp) {
			return i
		}
	}
	return -1
}

// nearestRaw picks the raw reading closest to boundary, preferring the
// earlier one on a tie.
func nearestRaw(seq []datum.TypedDatum, boundary time.Time, tolerance time.Duration) int {
	best := -1
	var bestDist time.Duration
	for i, td := range seq {
		if td.Type != datum.RecordRaw || !within(td.Timestamp, boundary, tolerance) {
			continue
		}
		d := td.Timestamp.Sub(boundary)
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
