// Package audit accumulates usage counters per stream and rolls them up from
// hours to days, months and running totals.
package audit

import (
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
)

// IOAuditDatum builds an hourly row. Aggregate counters do not apply to hours
// and stay nil.
func IOAuditDatum(streamID uuid.UUID, ts time.Time, datumCount, propertyCount, queryCount, propertyUpdateCount int64) datum.AuditDatum {
	return datum.AuditDatum{
		StreamID:    streamID,
		Timestamp:   ts,
		Aggregation: aggregation.Hour,
		AuditCounts: Shape(aggregation.Hour, datum.AuditCounts{
			DatumCount:               datum.Int64(datumCount),
			DatumPropertyCount:       datum.Int64(propertyCount),
			DatumQueryCount:          datum.Int64(queryCount),
			DatumPropertyUpdateCount: datum.Int64(propertyUpdateCount),
		}),
	}
}

// DailyAuditDatum builds a daily row; the monthly counter stays nil.
func DailyAuditDatum(streamID uuid.UUID, ts time.Time, datumCount, hourlyCount, dailyCount, propertyCount, queryCount, propertyUpdateCount int64) datum.AuditDatum {
	return datum.AuditDatum{
		StreamID:    streamID,
		Timestamp:   ts,
		Aggregation: aggregation.Day,
		AuditCounts: Shape(aggregation.Day, datum.AuditCounts{
			DatumCount:               datum.Int64(datumCount),
			DatumHourlyCount:         datum.Int64(hourlyCount),
			DatumDailyCount:          datum.Int64(dailyCount),
			DatumPropertyCount:       datum.Int64(propertyCount),
			DatumQueryCount:          datum.Int64(queryCount),
			DatumPropertyUpdateCount: datum.Int64(propertyUpdateCount),
		}),
	}
}

// MonthlyAuditDatum builds a monthly row with every counter present.
func MonthlyAuditDatum(streamID uuid.UUID, ts time.Time, datumCount, hourlyCount, dailyCount, monthlyCount, propertyCount, queryCount, propertyUpdateCount int64) datum.AuditDatum {
	return datum.AuditDatum{
		StreamID:    streamID,
		Timestamp:   ts,
		Aggregation: aggregation.Month,
		AuditCounts: Shape(aggregation.Month, datum.AuditCounts{
			DatumCount:               datum.Int64(datumCount),
			DatumHourlyCount:         datum.Int64(hourlyCount),
			DatumDailyCount:          datum.Int64(dailyCount),
			DatumMonthlyCount:        datum.Int64(monthlyCount),
			DatumPropertyCount:       datum.Int64(propertyCount),
			DatumQueryCount:          datum.Int64(queryCount),
			DatumPropertyUpdateCount: datum.Int64(propertyUpdateCount),
		}),
	}
}

// AccumulativeAuditDatum builds a running total row. Only the count
// hierarchy is tracked.
func AccumulativeAuditDatum(streamID uuid.UUID, ts time.Time, datumCount, hourlyCount, dailyCount, monthlyCount int64) datum.AuditDatum {
	return datum.AuditDatum{
		StreamID:    streamID,
		Timestamp:   ts,
		Aggregation: aggregation.RunningTotal,
		AuditCounts: Shape(aggregation.RunningTotal, datum.AuditCounts{
			DatumCount:        datum.Int64(datumCount),
			DatumHourlyCount:  datum.Int64(hourlyCount),
			DatumDailyCount:   datum.Int64(dailyCount),
			DatumMonthlyCount: datum.Int64(monthlyCount),
		}),
	}
}

// Shape applies the counter pattern of kind: counters that apply are
// present (nil becomes zero), the rest are nil.
//
//	Hour:         datum, property, property update, query, flux
//	Day:          Hour + hourly, daily
//	Month:        Day + monthly
//	RunningTotal: datum, hourly, daily, monthly
func Shape(kind aggregation.Kind, c datum.AuditCounts) datum.AuditCounts {
	present := func(v *int64) *int64 { return datum.Int64(datum.Value(v)) }
	out := datum.AuditCounts{DatumCount: present(c.DatumCount)}

	if kind != aggregation.RunningTotal {
		out.DatumPropertyCount = present(c.DatumPropertyCount)
		out.DatumPropertyUpdateCount = present(c.DatumPropertyUpdateCount)
		out.DatumQueryCount = present(c.DatumQueryCount)
		out.FluxDataInCount = present(c.FluxDataInCount)
	}
	switch kind {
	case aggregation.Day:
		out.DatumHourlyCount = present(c.DatumHourlyCount)
		out.DatumDailyCount = present(c.DatumDailyCount)
	case aggregation.Month, aggregation.RunningTotal:
		out.DatumHourlyCount = present(c.DatumHourlyCount)
		out.DatumDailyCount = present(c.DatumDailyCount)
		out.DatumMonthlyCount = present(c.DatumMonthlyCount)
	}
	return out
}

// SumAuditDatum adds up finer rows of one stream into a kind row at ts. Every
// counter of the result is at least the sum of the same counter in rows.
func SumAuditDatum(streamID uuid.UUID, kind aggregation.Kind, ts time.Time, rows []datum.AuditDatum) datum.AuditDatum {
	var sum datum.AuditCounts
	add := func(dst **int64, v *int64) {
		if v == nil {
			return
		}
		*dst = datum.Int64(datum.Value(*dst) + *v)
	}
	for _, r := range rows {
		add(&sum.DatumCount, r.DatumCount)
		add(&sum.DatumHourlyCount, r.DatumHourlyCount)
		add(&sum.DatumDailyCount, r.DatumDailyCount)
		add(&sum.DatumMonthlyCount, r.DatumMonthlyCount)
		add(&sum.DatumPropertyCount, r.DatumPropertyCount)
		add(&sum.DatumPropertyUpdateCount, r.DatumPropertyUpdateCount)
		add(&sum.DatumQueryCount, r.DatumQueryCount)
		add(&sum.FluxDataInCount, r.FluxDataInCount)
	}
	return datum.AuditDatum{
		StreamID:    streamID,
		Timestamp:   ts,
		Aggregation: kind,
		AuditCounts: Shape(kind, sum),
	}
}
