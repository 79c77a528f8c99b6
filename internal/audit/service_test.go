package audit

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage/memory"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	auditNow = time.Date(2021, 3, 17, 14, 25, 0, 0, time.UTC)
	auditDay = time.Date(2021, 3, 17, 0, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, *memory.Store, *datum.ObjectDatumStreamMetadata) {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(auditNow)
	store := memory.New(clock)
	meta := &datum.ObjectDatumStreamMetadata{
		StreamID: uuid.New(),
		Kind:     datum.Node,
		ObjectID: 1,
		SourceID: "meter/1",
	}
	require.NoError(t, store.CreateStreamMetadata(context.Background(), meta))
	return NewService(store, clock), store, meta
}

func auditOf(t *testing.T, s *Service, kind aggregation.Kind) []datum.AuditDatum {
	t.Helper()
	c := &criteria.AuditCriteria{}
	c.SetAggregation(kind)
	res, err := s.FindAuditDatum(context.Background(), c)
	require.NoError(t, err)
	return res.Results
}

func TestService_RecordsIntoCurrentHour(t *testing.T) {
	s, store, meta := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.AddDatumIngest(ctx, meta, 2, 6))
	require.NoError(t, s.AddDatumIngest(ctx, meta, 1, 3))
	require.NoError(t, s.AddQueryCounts(ctx, []*datum.ObjectDatumStreamMetadata{meta, nil}, map[uuid.UUID]int64{meta.StreamID: 4}))
	require.NoError(t, s.AddPropertyUpdates(ctx, meta, 1))
	require.NoError(t, s.AddFluxDataIn(ctx, meta, 512))
	require.NoError(t, s.AddDatumIngest(ctx, nil, 1, 1))

	hours := auditOf(t, s, aggregation.Hour)
	require.Len(t, hours, 1)
	h := hours[0]
	require.True(t, h.Timestamp.Equal(auditNow.Truncate(time.Hour)))
	require.Equal(t, int64(3), *h.DatumCount)
	require.Equal(t, int64(9), *h.DatumPropertyCount)
	require.Equal(t, int64(4), *h.DatumQueryCount)
	require.Equal(t, int64(1), *h.DatumPropertyUpdateCount)
	require.Equal(t, int64(512), *h.FluxDataInCount)
	require.Nil(t, h.DatumHourlyCount)

	stale, err := store.FindStaleAuditDatum(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, aggregation.Day, stale[0].Kind)
	require.True(t, stale[0].Timestamp.Equal(auditDay))
}

func TestService_RollupStaleCascades(t *testing.T) {
	s, store, meta := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.AddDatumIngest(ctx, meta, 3, 9))
	require.NoError(t, s.AddQueryCounts(ctx, []*datum.ObjectDatumStreamMetadata{meta}, map[uuid.UUID]int64{meta.StreamID: 4}))
	for _, a := range []datum.AggregateDatum{
		{DatumPK: datum.DatumPK{StreamID: meta.StreamID, Timestamp: auditNow.Truncate(time.Hour)}, Aggregation: aggregation.Hour},
		{DatumPK: datum.DatumPK{StreamID: meta.StreamID, Timestamp: auditDay}, Aggregation: aggregation.Day},
	} {
		a := a
		require.NoError(t, store.StoreAggregate(ctx, &a))
	}

	n, err := s.RollupStale(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	days := auditOf(t, s, aggregation.Day)
	require.Len(t, days, 1)
	day := days[0]
	require.True(t, day.Timestamp.Equal(auditDay))
	require.Equal(t, int64(3), *day.DatumCount)
	require.Equal(t, int64(1), *day.DatumHourlyCount)
	require.Equal(t, int64(1), *day.DatumDailyCount)
	require.Equal(t, int64(4), *day.DatumQueryCount)
	require.Nil(t, day.DatumMonthlyCount)

	var hourSum int64
	for _, h := range auditOf(t, s, aggregation.Hour) {
		hourSum += datum.Value(h.DatumCount)
	}
	require.Equal(t, hourSum, *day.DatumCount)

	n, err = s.RollupStale(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	months := auditOf(t, s, aggregation.Month)
	require.Len(t, months, 1)
	require.True(t, months[0].Timestamp.Equal(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, int64(3), *months[0].DatumCount)
	require.Equal(t, int64(1), *months[0].DatumDailyCount)
	require.Equal(t, int64(0), *months[0].DatumMonthlyCount)

	n, err = s.RollupStale(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	acc, err := s.FindAccumulative(ctx, &criteria.AuditCriteria{})
	require.NoError(t, err)
	require.Len(t, acc.Results, 1)
	require.Equal(t, int64(3), *acc.Results[0].DatumCount)
	require.Nil(t, acc.Results[0].DatumQueryCount)

	n, err = s.RollupStale(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestService_DayRollupMatchesHoursInHalfHourZone(t *testing.T) {
	clock := quartz.NewMock(t)
	// 00:10 on 2021-03-17 in Kolkata, still the 16th in UTC.
	clock.Set(time.Date(2021, 3, 16, 18, 40, 0, 0, time.UTC))
	store := memory.New(clock)
	meta := &datum.ObjectDatumStreamMetadata{
		StreamID:   uuid.New(),
		Kind:       datum.Node,
		ObjectID:   1,
		SourceID:   "meter/1",
		TimeZoneID: "Asia/Kolkata",
	}
	ctx := context.Background()
	require.NoError(t, store.CreateStreamMetadata(ctx, meta))
	s := NewService(store, clock)

	require.NoError(t, s.AddDatumIngest(ctx, meta, 5, 5))

	hours := auditOf(t, s, aggregation.Hour)
	require.Len(t, hours, 1)
	require.True(t, hours[0].Timestamp.Equal(time.Date(2021, 3, 16, 18, 30, 0, 0, time.UTC)), "got %s", hours[0].Timestamp)

	for i := 0; i < 5; i++ {
		_, err := s.RollupStale(ctx, 10)
		require.NoError(t, err)
	}

	days := auditOf(t, s, aggregation.Day)
	var daySum int64
	for _, d := range days {
		daySum += datum.Value(d.DatumCount)
	}
	require.Equal(t, int64(5), daySum)
	require.Len(t, days, 1)
	require.True(t, days[0].Timestamp.Equal(time.Date(2021, 3, 16, 18, 30, 0, 0, time.UTC)), "got %s", days[0].Timestamp)
}

func TestService_FindRollups(t *testing.T) {
	s, _, meta := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.AddDatumIngest(ctx, meta, 2, 4))

	rollups, err := s.FindRollups(ctx, &criteria.AuditCriteria{})
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	require.Equal(t, datum.Node, rollups[0].Kind)
	require.Equal(t, int64(1), rollups[0].ObjectID)
	require.Equal(t, "meter/1", rollups[0].SourceID)
	require.Equal(t, aggregation.Hour, rollups[0].Aggregation)
	require.Equal(t, int64(2), *rollups[0].DatumCount)

	c := &criteria.AuditCriteria{}
	c.SetAggregation(aggregation.Month)
	rollups, err = s.FindRollups(ctx, c)
	require.NoError(t, err)
	require.Empty(t, rollups)
}
