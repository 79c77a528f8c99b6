// Package memory is an in-memory implementation of storage.Store. It keeps
// the same semantics as the PostgreSQL adapters and backs service tests and
// development runs.
package memory

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/coder/quartz"
	"github.com/google/uuid"
)

var _ storage.Store = (*Store)(nil)

type tsKey struct {
	stream uuid.UUID
	ts     int64
}

type kindKey struct {
	stream uuid.UUID
	kind   aggregation.Kind
	ts     int64
}

type auxKey struct {
	stream uuid.UUID
	kind   datum.AuxiliaryKind
	ts     int64
}

// Store holds every table in maps guarded by one lock.
type Store struct {
	mu    sync.RWMutex
	clock quartz.Clock

	metas      map[uuid.UUID]*datum.ObjectDatumStreamMetadata
	datums     map[tsKey]*datum.Datum
	aggregates map[kindKey]*datum.AggregateDatum
	stale      map[kindKey]datum.StaleAggregateDatum
	aux        map[auxKey]*datum.DatumAuxiliary
	audit      map[kindKey]*datum.AuditDatum
	staleAudit map[kindKey]datum.StaleAuditDatum
}

// New creates an empty store. A nil clock uses the real clock.
func New(clock quartz.Clock) *Store {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Store{
		clock:      clock,
		metas:      make(map[uuid.UUID]*datum.ObjectDatumStreamMetadata),
		datums:     make(map[tsKey]*datum.Datum),
		aggregates: make(map[kindKey]*datum.AggregateDatum),
		stale:      make(map[kindKey]datum.StaleAggregateDatum),
		aux:        make(map[auxKey]*datum.DatumAuxiliary),
		audit:      make(map[kindKey]*datum.AuditDatum),
		staleAudit: make(map[kindKey]datum.StaleAuditDatum),
	}
}

func nanos(t time.Time) int64 { return t.UnixNano() }

// selectStream applies the stream, object, source and user capabilities of
// c to one stream. defaultNode applies the Node kind when c sets none.
// Streams without metadata only match selectors that need none.
func (s *Store) selectStream(c any, id uuid.UUID, defaultNode bool) bool {
	if sc, ok := c.(criteria.StreamCriteria); ok && len(sc.StreamIDs()) > 0 {
		if !slices.Contains(sc.StreamIDs(), id) {
			return false
		}
		// A stream ID names its kind.
		defaultNode = false
	}
	meta := s.metas[id]
	if oc, ok := c.(criteria.ObjectCriteria); ok && !matchObject(oc, meta, defaultNode) {
		return false
	}
	if sc, ok := c.(criteria.SourceCriteria); ok && len(sc.SourceIDs()) > 0 {
		if meta == nil || !slices.Contains(sc.SourceIDs(), meta.SourceID) {
			return false
		}
	}
	if uc, ok := c.(criteria.UserCriteria); ok && len(uc.UserIDs()) > 0 {
		if meta == nil || !slices.Contains(uc.UserIDs(), meta.UserID) {
			return false
		}
	}
	return true
}

func matchObject(oc criteria.ObjectCriteria, meta *datum.ObjectDatumStreamMetadata, defaultNode bool) bool {
	kind := oc.ObjectKind()
	ids := oc.NodeIDs()
	if kind == datum.Location {
		ids = oc.LocationIDs()
	}
	if kind == "" && (defaultNode || len(ids) > 0) {
		kind = datum.Node
	}
	if kind == "" {
		return true
	}
	if meta == nil || meta.Kind.OrDefault() != kind {
		return false
	}
	return len(ids) == 0 || slices.Contains(ids, meta.ObjectID)
}

// inRange applies the date range capabilities. Local dates are resolved in
// the stream's time zone.
func (s *Store) inRange(c any, id uuid.UUID, ts time.Time) bool {
	if lc, ok := c.(criteria.LocalDateRangeCriteria); ok {
		if !lc.LocalStartDate().IsZero() || !lc.LocalEndDate().IsZero() {
			loc := s.metas[id].Location()
			var r criteria.LocalDateRange
			r.SetLocalStartDate(lc.LocalStartDate())
			r.SetLocalEndDate(lc.LocalEndDate())
			start, end := r.In(loc)
			return within(ts, start, end)
		}
	}
	if dc, ok := c.(criteria.DateRangeCriteria); ok {
		return within(ts, dc.StartDate(), dc.EndDate())
	}
	return true
}

func within(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && !ts.Before(end) {
		return false
	}
	return true
}

type sortRow struct {
	stream uuid.UUID
	ts     time.Time
}

// sortRows orders rows by the criteria's sort descriptors, falling back to
// stream then time.
func (s *Store) sortRows(sorts []criteria.SortDescriptor, n int, row func(i int) sortRow, swap func(i, j int)) {
	if len(sorts) == 0 {
		sorts = []criteria.SortDescriptor{{Key: criteria.SortStream}, {Key: criteria.SortTime}}
	}
	less := func(i, j int) bool {
		a, b := row(i), row(j)
		for _, sd := range sorts {
			c := s.compare(sd.Key, a, b)
			if c == 0 {
				continue
			}
			if sd.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	}
	sort.Stable(sorter{n: n, less: less, swap: swap})
}

func (s *Store) compare(key string, a, b sortRow) int {
	switch key {
	case criteria.SortTime:
		return a.ts.Compare(b.ts)
	case criteria.SortNode:
		ma, mb := s.metas[a.stream], s.metas[b.stream]
		var oa, ob int64
		if ma != nil {
			oa = ma.ObjectID
		}
		if mb != nil {
			ob = mb.ObjectID
		}
		return cmpInt(oa, ob)
	case criteria.SortSource:
		var sa, sb string
		if m := s.metas[a.stream]; m != nil {
			sa = m.SourceID
		}
		if m := s.metas[b.stream]; m != nil {
			sb = m.SourceID
		}
		return cmpString(sa, sb)
	default:
		return cmpString(a.stream.String(), b.stream.String())
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type sorter struct {
	n    int
	less func(i, j int) bool
	swap func(i, j int)
}

func (s sorter) Len() int           { return s.n }
func (s sorter) Less(i, j int) bool { return s.less(i, j) }
func (s sorter) Swap(i, j int)      { s.swap(i, j) }

// page applies offset, max and the optional total count.
func page[T any](rows []T, c criteria.PaginationCriteria) *storage.FilterResults[T] {
	var total *int64
	var offset int64
	if c != nil {
		if !c.WithoutTotalResultsCount() {
			n := int64(len(rows))
			total = &n
		}
		offset = c.Offset()
		if offset > int64(len(rows)) {
			offset = int64(len(rows))
		}
		rows = rows[offset:]
		if c.Max() > 0 && len(rows) > c.Max() {
			rows = rows[:c.Max()]
		}
	}
	if rows == nil {
		rows = []T{}
	}
	return storage.NewFilterResults(rows, total, offset)
}

// latestPerStream keeps only the row with the greatest timestamp per stream.
func latestPerStream[T any](rows []T, key func(T) sortRow) []T {
	latest := make(map[uuid.UUID]int)
	for i, r := range rows {
		k := key(r)
		if j, ok := latest[k.stream]; !ok || key(rows[j]).ts.Before(k.ts) {
			latest[k.stream] = i
		}
	}
	out := make([]T, 0, len(latest))
	for i, r := range rows {
		if latest[key(r).stream] == i {
			out = append(out, r)
		}
	}
	return out
}

func cloneDatum(d *datum.Datum) *datum.Datum {
	c := *d
	c.Properties = *d.Properties.Clone()
	return &c
}

func cloneAggregate(a *datum.AggregateDatum) *datum.AggregateDatum {
	c := *a
	c.Properties = *a.Properties.Clone()
	c.Statistics = *a.Statistics.Clone()
	return &c
}

func cloneAux(a *datum.DatumAuxiliary) *datum.DatumAuxiliary {
	c := *a
	c.SamplesFinal = a.SamplesFinal.Clone()
	c.SamplesStart = a.SamplesStart.Clone()
	c.Metadata = slices.Clone(a.Metadata)
	return &c
}

func cloneCount(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneCounts(c datum.AuditCounts) datum.AuditCounts {
	return datum.AuditCounts{
		DatumCount:               cloneCount(c.DatumCount),
		DatumHourlyCount:         cloneCount(c.DatumHourlyCount),
		DatumDailyCount:          cloneCount(c.DatumDailyCount),
		DatumMonthlyCount:        cloneCount(c.DatumMonthlyCount),
		DatumPropertyCount:       cloneCount(c.DatumPropertyCount),
		DatumPropertyUpdateCount: cloneCount(c.DatumPropertyUpdateCount),
		DatumQueryCount:          cloneCount(c.DatumQueryCount),
		FluxDataInCount:          cloneCount(c.FluxDataInCount),
	}
}
