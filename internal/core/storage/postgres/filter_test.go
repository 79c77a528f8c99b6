package postgres

import (
	"testing"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/stretchr/testify/require"
)

func TestFilter_Streams(t *testing.T) {
	tests := []struct {
		name        string
		table       string
		criteria    func() interface{}
		defaultNode bool
		wantCTE     string
		wantArgs    int
	}{
		{
			name:     "no capabilities set",
			table:    "datum",
			criteria: func() interface{} { return &criteria.DatumCriteria{} },
			wantCTE: "WITH s AS (SELECT t.*, m.object_id AS obj_id, m.source_id AS src_id, " + streamZone +
				" AS tz FROM datum t LEFT JOIN stream_meta m ON m.stream_id = t.stream_id)",
		},
		{
			name:  "node ids imply node kind",
			table: "datum",
			criteria: func() interface{} {
				c := &criteria.DatumCriteria{}
				c.SetNodeIDs([]int64{1, 2})
				return c
			},
			wantCTE: "WITH s AS (SELECT t.*, m.object_id AS obj_id, m.source_id AS src_id, " + streamZone +
				" AS tz FROM datum t LEFT JOIN stream_meta m ON m.stream_id = t.stream_id" +
				" WHERE m.kind = $1 AND m.object_id = ANY($2))",
			wantArgs: 2,
		},
		{
			name:  "location kind reads location ids",
			table: "stream_meta",
			criteria: func() interface{} {
				c := &criteria.StreamMetadataCriteria{}
				c.SetObjectKind(datum.Location)
				c.SetLocationID(7)
				c.SetUserID(10)
				return c
			},
			defaultNode: true,
			wantCTE:     "WITH s AS (SELECT m.* FROM stream_meta m WHERE m.kind = $1 AND m.object_id = ANY($2) AND m.user_id = ANY($3))",
			wantArgs:    3,
		},
		{
			name:  "stream ids suppress the node default",
			table: "stream_meta",
			criteria: func() interface{} {
				c := &criteria.StreamMetadataCriteria{}
				c.SetStreamID(testStream)
				return c
			},
			defaultNode: true,
			wantCTE:     "WITH s AS (SELECT m.* FROM stream_meta m WHERE m.stream_id = ANY($1::uuid[]))",
			wantArgs:    1,
		},
		{
			name:        "metadata defaults to node",
			table:       "stream_meta",
			criteria:    func() interface{} { return &criteria.StreamMetadataCriteria{} },
			defaultNode: true,
			wantCTE:     "WITH s AS (SELECT m.* FROM stream_meta m WHERE m.kind = $1)",
			wantArgs:    1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFilter(tc.table).streams(tc.criteria(), tc.defaultNode)
			require.Equal(t, tc.wantCTE, f.cte())
			require.Len(t, f.args, tc.wantArgs)
		})
	}
}

func TestFilter_LocalDatesUseStreamZone(t *testing.T) {
	c := &criteria.DatumCriteria{}
	c.SetLocalStartDate(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c.SetLocalEndDate(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	c.SetStartDate(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	f := newFilter("datum").dates(c)
	require.Equal(t, []string{
		"t.ts >= ($1::timestamp AT TIME ZONE " + streamZone + ")",
		"t.ts < ($2::timestamp AT TIME ZONE " + streamZone + ")",
	}, f.clauses)
	require.Equal(t, []interface{}{"2026-01-01 00:00:00", "2026-01-02 00:00:00"}, f.args)
}

func TestFilter_ListPagesWithoutTouchingCountArgs(t *testing.T) {
	c := &criteria.DatumCriteria{}
	c.SetSourceID("meter/1")
	c.SetMax(10)
	c.SetOffset(20)
	c.SetSorts([]criteria.SortDescriptor{{Key: criteria.SortTime, Descending: true}, {Key: "bogus"}})

	f := datumFilter(c)
	q, args := f.list(datumColumns, orderBy(c.Sorts()), c, true)
	require.Contains(t, q, latestOnly+" ORDER BY s.ts DESC LIMIT $2 OFFSET $3")
	require.Len(t, args, 3)
	require.Equal(t, 10, args[1])
	require.Equal(t, int64(20), args[2])

	_, countArgs := f.count(true)
	require.Len(t, countArgs, 1)
}

func TestOrderBy_Default(t *testing.T) {
	require.Equal(t, "s.stream_id, s.ts", orderBy(nil))
	require.Equal(t, "s.obj_id, s.src_id DESC", orderBy([]criteria.SortDescriptor{
		{Key: criteria.SortNode},
		{Key: criteria.SortSource, Descending: true},
	}))
}
