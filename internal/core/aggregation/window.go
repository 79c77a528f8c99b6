package aggregation

import (
	"time"
)

// Duration returns the fixed length of sub-day levels, or 0 for calendar
// levels whose length depends on the bucket.
func (k Kind) Duration() time.Duration {
	switch k {
	case FiveMinute:
		return 5 * time.Minute
	case TenMinute:
		return 10 * time.Minute
	case FifteenMinute:
		return 15 * time.Minute
	case ThirtyMinute:
		return 30 * time.Minute
	case Hour:
		return time.Hour
	}
	return 0
}

// Floor truncates t to the start of its k bucket in loc.
// Example: Month.Floor(2021-03-17T14:22Z, UTC) → 2021-03-01T00:00Z.
// None, RunningTotal and the unset Kind return t unchanged.
func (k Kind) Floor(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if dur := k.Duration(); dur > 0 {
		// Truncate on the instant shifted by its own offset, so a repeated
		// wall-clock hour after a fall-back transition stays its own bucket.
		_, sec := local.Zone()
		offset := time.Duration(sec) * time.Second
		return local.Add(offset).Truncate(dur).Add(-offset)
	}
	y, m, d := local.Date()
	switch k {
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case Week:
		// ISO weeks start on Monday.
		offset := (int(local.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	}
	return t
}

// Next returns the start of the bucket following the one starting at
// bucketStart. None, RunningTotal and the unset Kind return bucketStart.
func (k Kind) Next(bucketStart time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := bucketStart.In(loc)
	if dur := k.Duration(); dur > 0 {
		return local.Add(dur)
	}
	y, m, d := local.Date()
	switch k {
	case Day:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	case Week:
		return time.Date(y, m, d+7, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc)
	}
	return bucketStart
}

// Aligned reports whether t falls exactly on a k bucket boundary in loc.
func (k Kind) Aligned(t time.Time, loc *time.Location) bool {
	return k.Floor(t, loc).Equal(t)
}

// Buckets returns the start of every k bucket overlapping [start, end).
// The first element is the floor of start. Levels without a periodic bucket
// yield nil.
func (k Kind) Buckets(start, end time.Time, loc *time.Location) []time.Time {
	if k.Duration() == 0 && k != Day && k != Week && k != Month && k != Year {
		return nil
	}
	var out []time.Time
	for ts := k.Floor(start, loc); ts.Before(end); ts = k.Next(ts, loc) {
		out = append(out, ts)
	}
	// A zero-width range still touches the bucket containing start.
	if len(out) == 0 && !end.Before(start) {
		out = append(out, k.Floor(start, loc))
	}
	return out
}
