package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	coreerrors "github.com/aevon-lab/aevon-datum/internal/core/errors"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testStream = uuid.MustParse("3f0c8a52-6e1d-4b7a-9c2e-5d8f1a0b7c11")
	testNow    = time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
)

func TestAdapter_Store(t *testing.T) {
	d := &datum.Datum{
		DatumPK:  datum.DatumPK{StreamID: testStream, Timestamp: testNow},
		Received: testNow.Add(time.Second),
		Properties: datum.Properties{
			Instantaneous: []decimal.Decimal{decimal.RequireFromString("1.5")},
			Tags:          []string{},
		},
	}

	tests := []struct {
		name       string
		mockResult func(mock sqlmock.Sqlmock)
		assertions func(t *testing.T, err error)
	}{
		{
			name: "inserted",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryStoreDatum)).
					WithArgs(testStream, testNow, testNow.Add(time.Second), `{"1.5"}`, nil, nil, "{}").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			assertions: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "duplicate maps to ErrDuplicate",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryStoreDatum)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			assertions: func(t *testing.T, err error) {
				require.ErrorIs(t, err, storage.ErrDuplicate)
			},
		},
		{
			name: "driver error is wrapped",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryStoreDatum)).
					WillReturnError(errors.New("connection reset"))
			},
			assertions: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "failed to store datum")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			tc.mockResult(mock)
			tc.assertions(t, adapter.Store(context.Background(), d))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_FindFilteredKeepsAbsentAndEmpty(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	c := &criteria.DatumCriteria{}
	c.SetStreamID(testStream)
	c.SetStartDate(testNow)
	c.SetEndDate(testNow.Add(time.Hour))
	c.SetWithoutTotalResultsCount(false)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM s")).
		WithArgs(`{"`+testStream.String()+`"}`, testNow, testNow.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+datumColumns+" FROM s ORDER BY s.stream_id, s.ts")).
		WithArgs(`{"`+testStream.String()+`"}`, testNow, testNow.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"stream_id", "ts", "received", "data_i", "data_a", "data_s", "data_t"}).
			AddRow(testStream.String(), testNow, testNow, "{1.5,2}", nil, "{}", "{a,b}")).
		RowsWillBeClosed()

	res, err := adapter.FindFiltered(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, int64(1), *res.TotalResults)
	require.Len(t, res.Results, 1)

	p := res.Results[0].Properties
	require.Len(t, p.Instantaneous, 2)
	require.True(t, p.Instantaneous[1].Equal(decimal.NewFromInt(2)))
	require.Nil(t, p.Accumulating)
	require.NotNil(t, p.Status)
	require.Empty(t, p.Status)
	require.Equal(t, []string{"a", "b"}, p.Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FindAggregateFilteredRequiresAggregation(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	_, err := adapter.FindAggregateFiltered(context.Background(), &criteria.DatumCriteria{})
	require.True(t, coreerrors.IsInvalidArgument(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_StoreAggregateWritesStatistics(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	agg := &datum.AggregateDatum{
		DatumPK:     datum.DatumPK{StreamID: testStream, Timestamp: testNow},
		Aggregation: aggregation.Hour,
		Properties:  datum.Properties{Instantaneous: []decimal.Decimal{decimal.NewFromInt(20)}},
		Statistics: datum.Statistics{Instantaneous: []*datum.InstantaneousStatistic{
			{Count: 2, Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(30)},
		}},
	}

	mock.ExpectExec(regexp.QuoteMeta(queryUpsertAggregate)).
		WithArgs(testStream, testNow, "Hour", `{"20"}`, nil, nil, nil, []byte(`{"i":[["2","10","30"]]}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.StoreAggregate(context.Background(), agg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_MarkDatumAggregatesStale(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	c := &criteria.DatumCriteria{}
	c.SetStartDate(testNow)
	c.SetEndDate(testNow.Add(24 * time.Hour))
	c.SetAggregation(aggregation.Month)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stale_agg_datum (stream_id, ts, agg, created)")).
		WithArgs(testNow, testNow.Add(24*time.Hour), testNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := adapter.MarkDatumAggregatesStale(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = adapter.MarkDatumAggregatesStale(context.Background(), &criteria.DatumCriteria{})
	require.True(t, coreerrors.IsInvalidArgument(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_DeleteForIDs(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	other := uuid.MustParse("9b7e2d41-3c5a-4f8e-a1d6-0e2c4b6a8d22")
	ts := testNow.Add(5 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(queryStreamOwner)).
		WithArgs(testStream, int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "object_id", "source_id", "time_zone"}).
			AddRow("n", int64(1), "meter/1", "UTC"))
	mock.ExpectExec(regexp.QuoteMeta(queryDeleteDatum)).
		WithArgs(testStream, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryMarkStale)).
		WithArgs(testStream, testNow, "Hour", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(queryStreamOwner)).
		WithArgs(other, int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "object_id", "source_id", "time_zone"}))
	mock.ExpectCommit()

	deleted, err := adapter.DeleteForIDs(context.Background(), 10, []datum.ObjectDatumID{
		{StreamID: testStream, Timestamp: ts, Aggregation: aggregation.None},
		{StreamID: testStream, Timestamp: ts},
		{StreamID: other, Timestamp: ts, Aggregation: aggregation.None},
	})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, int64(1), *deleted[0].ObjectID)
	require.Equal(t, "meter/1", deleted[0].SourceID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_MoveAuxiliaryMissingSource(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	from := datum.DatumAuxiliaryPK{StreamID: testStream, Timestamp: testNow, Kind: datum.Reset}
	to := datum.DatumAuxiliaryPK{StreamID: testStream, Timestamp: testNow.Add(time.Hour), Kind: datum.Reset}

	mock.ExpectExec(regexp.QuoteMeta(queryMoveAuxiliary)).
		WithArgs(testStream, testNow, "Reset", testStream, testNow.Add(time.Hour), "Reset", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := adapter.MoveAuxiliary(context.Background(), from, to)
	require.NoError(t, err)
	require.False(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_GetAuxiliary(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	pk := datum.DatumAuxiliaryPK{StreamID: testStream, Timestamp: testNow, Kind: datum.Reset}
	cols := []string{"stream_id", "ts", "atype", "updated", "notes", "jdata_final", "jdata_start", "jmeta"}

	mock.ExpectQuery(regexp.QuoteMeta(queryGetAuxiliary)).
		WithArgs(testStream, testNow, "Reset").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(testStream.String(), testNow, "Reset", testNow, "swap", []byte(`{"i":null,"a":["100"],"s":null,"t":null}`), nil, []byte(`{"by":"ops"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(queryGetAuxiliary)).
		WillReturnRows(sqlmock.NewRows(cols))

	aux, err := adapter.GetAuxiliary(context.Background(), pk)
	require.NoError(t, err)
	require.NotNil(t, aux)
	require.Equal(t, "swap", aux.Notes)
	require.True(t, aux.SamplesFinal.Accumulating[0].Equal(decimal.NewFromInt(100)))
	require.Nil(t, aux.SamplesStart)
	require.JSONEq(t, `{"by":"ops"}`, string(aux.Metadata))

	aux, err = adapter.GetAuxiliary(context.Background(), pk)
	require.NoError(t, err)
	require.Nil(t, aux)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_AddAuditCountsKeepsLocalHour(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	// A +05:30 hour starts on the half hour in UTC.
	hour := testNow.Add(30 * time.Minute)
	mock.ExpectExec(regexp.QuoteMeta(queryAddAuditCounts)).
		WithArgs(testStream, hour, int64(3), nil, nil, nil, int64(6), nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.AddAuditCounts(context.Background(), testStream, hour, datum.AuditCounts{
		DatumCount:         datum.Int64(3),
		DatumPropertyCount: datum.Int64(6),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FindStaleAuditDatum(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryFindStaleAudit)).
		WithArgs("Day", 5).
		WillReturnRows(sqlmock.NewRows([]string{"stream_id", "ts", "agg", "created"}).
			AddRow(testStream.String(), testNow, "Day", testNow))

	rows, err := adapter.FindStaleAuditDatum(context.Background(), aggregation.Day, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, aggregation.Day, rows[0].Kind)
	require.Equal(t, testStream, rows[0].StreamID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CreateStreamMetadataDuplicate(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryCreateStreamMetadata)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "stream_meta_kind_object_id_source_id_key"})

	err := adapter.CreateStreamMetadata(context.Background(), &datum.ObjectDatumStreamMetadata{
		StreamID: testStream, ObjectID: 1, SourceID: "meter/1",
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FindStreamMetadataDefaultsToNode(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	c := &criteria.StreamMetadataCriteria{}
	c.SetSourceID("meter/1")

	mock.ExpectQuery(regexp.QuoteMeta("WITH s AS (SELECT m.* FROM stream_meta m WHERE m.kind = $1 AND m.source_id = ANY($2))")).
		WithArgs("n", `{"meter/1"}`).
		WillReturnRows(sqlmock.NewRows([]string{"stream_id", "kind", "object_id", "source_id", "user_id", "time_zone", "names_i", "names_a", "names_s", "jdata"}).
			AddRow(testStream.String(), "n", int64(1), "meter/1", int64(10), "Pacific/Auckland", "{watts}", "{wattHours}", nil, nil))

	m, err := adapter.FindStreamMetadata(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, datum.Node, m.Kind)
	require.Equal(t, []string{"watts"}, m.InstantaneousNames)
	require.Nil(t, m.StatusNames)
	require.Nil(t, m.JSONMeta)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpdateIDAttributes(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	source := "meter/2"
	mock.ExpectExec(regexp.QuoteMeta(queryUpdateIDAttributes)).
		WithArgs(testStream, "n", nil, source).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := adapter.UpdateIDAttributes(context.Background(), "", testStream, nil, &source)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CloseReturnsDBCloseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbCloseErr := errors.New("db close failed")

	for _, q := range preparedQueries() {
		mock.ExpectPrepare(regexp.QuoteMeta(q)).WillBeClosed()
	}
	mock.ExpectClose().WillReturnError(dbCloseErr)

	adapter, err := newAdapter(db, quartz.NewMock(t))
	require.NoError(t, err)

	err = adapter.Close()
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to close database")
	require.ErrorIs(t, err, dbCloseErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	for _, q := range preparedQueries() {
		mock.ExpectPrepare(regexp.QuoteMeta(q))
	}
	clock := quartz.NewMock(t)
	clock.Set(testNow)
	adapter, err := newAdapter(db, clock)
	require.NoError(t, err)

	return adapter, mock, db
}

func preparedQueries() []string {
	return []string{queryStoreDatum, queryUpsertAggregate, queryMarkStale, queryAddAuditCounts}
}
