package audit

import (
	"testing"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testTS = time.Date(2021, 3, 17, 14, 0, 0, 0, time.UTC)

func TestIOAuditDatum(t *testing.T) {
	streamID := uuid.New()
	d := IOAuditDatum(streamID, testTS, 10, 50, 3, 0)

	require.Equal(t, streamID, d.StreamID)
	require.Equal(t, aggregation.Hour, d.Aggregation)
	require.Equal(t, int64(10), *d.DatumCount)
	require.Equal(t, int64(50), *d.DatumPropertyCount)
	require.Equal(t, int64(3), *d.DatumQueryCount)
	require.Equal(t, int64(0), *d.DatumPropertyUpdateCount)
	require.Nil(t, d.DatumHourlyCount)
	require.Nil(t, d.DatumDailyCount)
	require.Nil(t, d.DatumMonthlyCount)
	require.NotNil(t, d.FluxDataInCount)
	require.Equal(t, int64(0), *d.FluxDataInCount)
}

func TestConstructionHelpers_NullPattern(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name        string
		d           datum.AuditDatum
		kind        aggregation.Kind
		hourly      bool
		daily       bool
		monthly     bool
		usageCounts bool
	}{
		{name: "daily", d: DailyAuditDatum(id, testTS, 1, 2, 3, 4, 5, 6), kind: aggregation.Day, hourly: true, daily: true, usageCounts: true},
		{name: "monthly", d: MonthlyAuditDatum(id, testTS, 1, 2, 3, 4, 5, 6, 7), kind: aggregation.Month, hourly: true, daily: true, monthly: true, usageCounts: true},
		{name: "accumulative", d: AccumulativeAuditDatum(id, testTS, 1, 2, 3, 4), kind: aggregation.RunningTotal, hourly: true, daily: true, monthly: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.kind, tc.d.Aggregation)
			require.NotNil(t, tc.d.DatumCount)
			require.Equal(t, tc.hourly, tc.d.DatumHourlyCount != nil)
			require.Equal(t, tc.daily, tc.d.DatumDailyCount != nil)
			require.Equal(t, tc.monthly, tc.d.DatumMonthlyCount != nil)
			require.Equal(t, tc.usageCounts, tc.d.DatumPropertyCount != nil)
			require.Equal(t, tc.usageCounts, tc.d.DatumPropertyUpdateCount != nil)
			require.Equal(t, tc.usageCounts, tc.d.DatumQueryCount != nil)
			require.Equal(t, tc.usageCounts, tc.d.FluxDataInCount != nil)
		})
	}
}

func TestMonthlyAuditDatum_Values(t *testing.T) {
	d := MonthlyAuditDatum(uuid.New(), testTS, 100, 24, 1, 1, 500, 7, 2)
	require.Equal(t, int64(100), *d.DatumCount)
	require.Equal(t, int64(24), *d.DatumHourlyCount)
	require.Equal(t, int64(1), *d.DatumDailyCount)
	require.Equal(t, int64(1), *d.DatumMonthlyCount)
	require.Equal(t, int64(500), *d.DatumPropertyCount)
	require.Equal(t, int64(7), *d.DatumQueryCount)
	require.Equal(t, int64(2), *d.DatumPropertyUpdateCount)
	require.Equal(t, int64(0), *d.FluxDataInCount)
}

func TestSumAuditDatum_IsMonotonic(t *testing.T) {
	id := uuid.New()
	hours := []datum.AuditDatum{
		IOAuditDatum(id, testTS, 10, 50, 3, 0),
		IOAuditDatum(id, testTS.Add(time.Hour), 5, 20, 0, 2),
		{StreamID: id, Timestamp: testTS.Add(2 * time.Hour), Aggregation: aggregation.Hour,
			AuditCounts: datum.AuditCounts{FluxDataInCount: datum.Int64(1024)}},
	}

	day := SumAuditDatum(id, aggregation.Day, testTS.Truncate(24*time.Hour), hours)

	require.Equal(t, aggregation.Day, day.Aggregation)
	require.Equal(t, int64(15), *day.DatumCount)
	require.Equal(t, int64(70), *day.DatumPropertyCount)
	require.Equal(t, int64(3), *day.DatumQueryCount)
	require.Equal(t, int64(2), *day.DatumPropertyUpdateCount)
	require.Equal(t, int64(1024), *day.FluxDataInCount)
	require.Equal(t, int64(0), *day.DatumHourlyCount)
	require.Nil(t, day.DatumMonthlyCount)

	for _, h := range hours {
		require.GreaterOrEqual(t, *day.DatumCount, datum.Value(h.DatumCount))
	}
}

func TestSumAuditDatum_Empty(t *testing.T) {
	rt := SumAuditDatum(uuid.New(), aggregation.RunningTotal, testTS, nil)
	require.Equal(t, int64(0), *rt.DatumCount)
	require.Equal(t, int64(0), *rt.DatumMonthlyCount)
	require.Nil(t, rt.DatumQueryCount)
	require.Nil(t, rt.FluxDataInCount)
}
