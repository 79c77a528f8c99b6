package aggregation

import (
	"fmt"
	"strings"
)

// Kind is an aggregation level. Levels are totally ordered by coarseness;
// the empty Kind means "unset" and places no constraint on a query.
type Kind string

const (
	None          Kind = "None"
	FiveMinute    Kind = "FiveMinute"
	TenMinute     Kind = "TenMinute"
	FifteenMinute Kind = "FifteenMinute"
	ThirtyMinute  Kind = "ThirtyMinute"
	Hour          Kind = "Hour"
	Day           Kind = "Day"
	Week          Kind = "Week"
	Month         Kind = "Month"
	Year          Kind = "Year"
	RunningTotal  Kind = "RunningTotal"
)

// ordered lists every level from finest to coarsest.
var ordered = []Kind{
	None, FiveMinute, TenMinute, FifteenMinute, ThirtyMinute,
	Hour, Day, Week, Month, Year, RunningTotal,
}

var rank = func() map[Kind]int {
	m := make(map[Kind]int, len(ordered))
	for i, k := range ordered {
		m[k] = i
	}
	return m
}()

// short keys accepted by ParseKind, matching the compact column values some
// callers still send.
var shortKeys = map[string]Kind{
	"0":   None,
	"5m":  FiveMinute,
	"10m": TenMinute,
	"15m": FifteenMinute,
	"30m": ThirtyMinute,
	"h":   Hour,
	"d":   Day,
	"w":   Week,
	"M":   Month,
	"Y":   Year,
	"RT":  RunningTotal,
}

// ParseKind parses a level name (case-insensitive) or short key.
func ParseKind(s string) (Kind, error) {
	if k, ok := shortKeys[s]; ok {
		return k, nil
	}
	for _, k := range ordered {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unsupported aggregation %q", s)
}

// Valid reports whether k is a known level. The unset Kind is not valid.
func (k Kind) Valid() bool {
	_, ok := rank[k]
	return ok
}

// IsSet reports whether k carries a value.
func (k Kind) IsSet() bool {
	return k != ""
}

// Compare returns -1, 0 or 1 when k is finer than, equal to, or coarser than o.
func (k Kind) Compare(o Kind) int {
	a, b := rank[k], rank[o]
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Finer reports whether k is strictly finer than o.
func (k Kind) Finer(o Kind) bool {
	return k.Compare(o) < 0
}

// StaleKinds are the levels tracked by the stale aggregate queue, finest first.
func StaleKinds() []Kind {
	return []Kind{Hour, Day, Month}
}

// NextStaleKind returns the stale-tracked level that is recomputed from k,
// or false when k is the coarsest tracked level.
func NextStaleKind(k Kind) (Kind, bool) {
	switch k {
	case Hour:
		return Day, true
	case Day:
		return Month, true
	}
	return "", false
}

// SourceKind returns the level a k aggregate is computed from. Hour and finer
// levels are computed from raw datum (None).
func SourceKind(k Kind) Kind {
	switch k {
	case Day:
		return Hour
	case Week, Month:
		return Day
	case Year:
		return Month
	case RunningTotal:
		return Month
	}
	return None
}
