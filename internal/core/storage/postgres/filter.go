package postgres

import (
	"slices"
	"strconv"
	"strings"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/lib/pq"
)

const (
	localTimestampLayout = "2006-01-02 15:04:05.999999999"
	streamZone           = "COALESCE(NULLIF(m.time_zone, ''), 'UTC')"
)

// filter renders criteria into SQL. The selected rows of one table are
// exposed as a CTE named "s" carrying the table's columns plus obj_id,
// src_id and tz from the stream metadata, so callers sort and page on s
// without repeating the joins.
type filter struct {
	table     string
	streamCol string
	clauses   []string
	args      []interface{}
}

func newFilter(table string) *filter {
	if table == "stream_meta" {
		return &filter{table: table, streamCol: "m.stream_id"}
	}
	return &filter{table: table, streamCol: "t.stream_id"}
}

func (f *filter) arg(v interface{}) string {
	f.args = append(f.args, v)
	return "$" + strconv.Itoa(len(f.args))
}

func (f *filter) where(clause string) {
	f.clauses = append(f.clauses, clause)
}

// streams applies the stream, object, source and user capabilities of c.
// defaultNode applies the Node kind when c sets neither a kind nor stream IDs.
func (f *filter) streams(c interface{}, defaultNode bool) *filter {
	if sc, ok := c.(criteria.StreamCriteria); ok && len(sc.StreamIDs()) > 0 {
		f.where(f.streamCol + " = ANY(" + f.arg(uuidArray(sc.StreamIDs())) + "::uuid[])")
		defaultNode = false
	}
	if oc, ok := c.(criteria.ObjectCriteria); ok {
		kind := oc.ObjectKind()
		ids := oc.NodeIDs()
		if kind == datum.Location {
			ids = oc.LocationIDs()
		}
		if kind == "" && (defaultNode || len(ids) > 0) {
			kind = datum.Node
		}
		if kind != "" {
			f.where("m.kind = " + f.arg(string(kind)))
			if len(ids) > 0 {
				f.where("m.object_id = ANY(" + f.arg(pq.Array(ids)) + ")")
			}
		}
	}
	if sc, ok := c.(criteria.SourceCriteria); ok && len(sc.SourceIDs()) > 0 {
		f.where("m.source_id = ANY(" + f.arg(pq.StringArray(sc.SourceIDs())) + ")")
	}
	if uc, ok := c.(criteria.UserCriteria); ok && len(uc.UserIDs()) > 0 {
		f.where("m.user_id = ANY(" + f.arg(pq.Array(uc.UserIDs())) + ")")
	}
	return f
}

// dates applies the date range capabilities of c to the ts column. Local
// dates are resolved in each stream's own time zone.
func (f *filter) dates(c interface{}) *filter {
	if lc, ok := c.(criteria.LocalDateRangeCriteria); ok {
		start, end := lc.LocalStartDate(), lc.LocalEndDate()
		if !start.IsZero() || !end.IsZero() {
			if !start.IsZero() {
				f.where("t.ts >= (" + f.arg(start.Format(localTimestampLayout)) + "::timestamp AT TIME ZONE " + streamZone + ")")
			}
			if !end.IsZero() {
				f.where("t.ts < (" + f.arg(end.Format(localTimestampLayout)) + "::timestamp AT TIME ZONE " + streamZone + ")")
			}
			return f
		}
	}
	if dc, ok := c.(criteria.DateRangeCriteria); ok {
		if !dc.StartDate().IsZero() {
			f.where("t.ts >= " + f.arg(dc.StartDate()))
		}
		if !dc.EndDate().IsZero() {
			f.where("t.ts < " + f.arg(dc.EndDate()))
		}
	}
	return f
}

// cte renders the WITH clause. Only the metadata table is read without the
// metadata join.
func (f *filter) cte() string {
	var b strings.Builder
	if f.table == "stream_meta" {
		b.WriteString("WITH s AS (SELECT m.* FROM stream_meta m")
	} else {
		b.WriteString("WITH s AS (SELECT t.*, m.object_id AS obj_id, m.source_id AS src_id, ")
		b.WriteString(streamZone)
		b.WriteString(" AS tz FROM ")
		b.WriteString(f.table)
		b.WriteString(" t LEFT JOIN stream_meta m ON m.stream_id = t.stream_id")
	}
	if len(f.clauses) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(f.clauses, " AND "))
	}
	b.WriteString(")")
	return b.String()
}

const latestOnly = " WHERE (s.stream_id, s.ts) IN (SELECT stream_id, MAX(ts) FROM s GROUP BY stream_id)"

// list renders a paged select of cols ordered by order. The filter's own
// args are not modified.
func (f *filter) list(cols, order string, p criteria.PaginationCriteria, mostRecent bool) (string, []interface{}) {
	args := slices.Clone(f.args)
	q := f.cte() + " SELECT " + cols + " FROM s"
	if mostRecent {
		q += latestOnly
	}
	q += " ORDER BY " + order
	if p != nil && p.Max() > 0 {
		args = append(args, p.Max())
		q += " LIMIT $" + strconv.Itoa(len(args))
	}
	if p != nil && p.Offset() > 0 {
		args = append(args, p.Offset())
		q += " OFFSET $" + strconv.Itoa(len(args))
	}
	return q, args
}

func (f *filter) count(mostRecent bool) (string, []interface{}) {
	q := f.cte() + " SELECT COUNT(*) FROM s"
	if mostRecent {
		q += latestOnly
	}
	return q, f.args
}

var sortColumns = map[string]string{
	criteria.SortTime:   "s.ts",
	criteria.SortNode:   "s.obj_id",
	criteria.SortSource: "s.src_id",
	criteria.SortStream: "s.stream_id",
}

// orderBy renders sort descriptors, defaulting to stream then time. Unknown
// keys are ignored.
func orderBy(sorts []criteria.SortDescriptor) string {
	var parts []string
	for _, sd := range sorts {
		col, ok := sortColumns[sd.Key]
		if !ok {
			continue
		}
		if sd.Descending {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return "s.stream_id, s.ts"
	}
	return strings.Join(parts, ", ")
}
