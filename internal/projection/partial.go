package projection

import (
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
)

// TimeRange is one output row's coverage. Kind is the level the row is
// built at: the requested level for whole buckets, the partial level for
// the unaligned pieces at either end of a query.
type TimeRange struct {
	Kind  aggregation.Kind
	Start time.Time
	End   time.Time
}

// PartialRanges splits [start, end) into kind buckets in loc. When start or
// end is not aligned to kind, the leading and trailing pieces are returned
// at the partial level and cover only the requested part of their bucket.
//
// Example: Month with Day partials over [Jan 15, Mar 15) yields
// [Jan 15, Feb 1) Day, [Feb 1, Mar 1) Month, [Mar 1, Mar 15) Day.
func PartialRanges(kind, partial aggregation.Kind, start, end time.Time, loc *time.Location) []TimeRange {
	if !end.After(start) || kind.Next(start, loc).Equal(start) {
		return nil
	}

	var out []TimeRange
	cur := start
	if first := kind.Floor(start, loc); first.Before(start) {
		next := kind.Next(first, loc)
		if next.After(end) {
			next = end
		}
		out = append(out, TimeRange{Kind: partial, Start: start, End: next})
		cur = next
	}
	for cur.Before(end) {
		next := kind.Next(cur, loc)
		if next.After(end) {
			out = append(out, TimeRange{Kind: partial, Start: cur, End: end})
			break
		}
		out = append(out, TimeRange{Kind: kind, Start: cur, End: next})
		cur = next
	}
	return out
}

// bucketRanges returns every kind bucket overlapping [start, end).
func bucketRanges(kind aggregation.Kind, start, end time.Time, loc *time.Location) []TimeRange {
	buckets := kind.Buckets(start, end, loc)
	out := make([]TimeRange, 0, len(buckets))
	for _, ts := range buckets {
		out = append(out, TimeRange{Kind: kind, Start: ts, End: kind.Next(ts, loc)})
	}
	return out
}
