package aggregation

import (
	"github.com/shopspring/decimal"
)

// averagePrecision is the number of decimal places kept when dividing.
const averagePrecision = 12

// InstantaneousAccumulator folds sampled values into count/min/max/average.
// The zero value is ready to use.
type InstantaneousAccumulator struct {
	count int64
	sum   decimal.Decimal
	min   decimal.Decimal
	max   decimal.Decimal
}

// Add folds one sample.
func (a *InstantaneousAccumulator) Add(v decimal.Decimal) {
	a.AddWeighted(v, 1, v, v)
}

// AddWeighted folds an already-aggregated value that represents count samples
// with the given bounds. Used when rolling finer aggregates into coarser ones.
func (a *InstantaneousAccumulator) AddWeighted(avg decimal.Decimal, count int64, lo, hi decimal.Decimal) {
	if count <= 0 {
		return
	}
	if a.count == 0 {
		a.min, a.max = lo, hi
	} else {
		if lo.LessThan(a.min) {
			a.min = lo
		}
		if hi.GreaterThan(a.max) {
			a.max = hi
		}
	}
	a.sum = a.sum.Add(avg.Mul(decimal.NewFromInt(count)))
	a.count += count
}

func (a *InstantaneousAccumulator) Count() int64         { return a.count }
func (a *InstantaneousAccumulator) Min() decimal.Decimal { return a.min }
func (a *InstantaneousAccumulator) Max() decimal.Decimal { return a.max }

// Average returns the mean of all folded samples, or zero when empty.
func (a *InstantaneousAccumulator) Average() decimal.Decimal {
	if a.count == 0 {
		return decimal.Zero
	}
	return a.sum.DivRound(decimal.NewFromInt(a.count), averagePrecision)
}

// AccumulatingAccumulator tracks a monotonic counter across a bucket. Resets
// close the current segment so the difference never goes negative across a
// meter replacement.
type AccumulatingAccumulator struct {
	started    bool
	start      decimal.Decimal
	end        decimal.Decimal
	difference decimal.Decimal
}

// Add folds the next reading in time order.
func (a *AccumulatingAccumulator) Add(v decimal.Decimal) {
	if !a.started {
		a.started = true
		a.start, a.end = v, v
		return
	}
	a.difference = a.difference.Add(v.Sub(a.end))
	a.end = v
}

// Reset records an out-of-band reset: the counter read final just before the
// reset and start just after it. Only the pre-reset delta is counted.
func (a *AccumulatingAccumulator) Reset(final, start decimal.Decimal) {
	if !a.started {
		a.started = true
		a.start = start
		a.end = start
		return
	}
	a.difference = a.difference.Add(final.Sub(a.end))
	a.end = start
}

// AddSpan folds a finer aggregate's (difference, start, end) triple.
func (a *AccumulatingAccumulator) AddSpan(diff, start, end decimal.Decimal) {
	if !a.started {
		a.started = true
		a.start = start
	}
	a.difference = a.difference.Add(diff)
	a.end = end
}

func (a *AccumulatingAccumulator) Started() bool               { return a.started }
func (a *AccumulatingAccumulator) Start() decimal.Decimal      { return a.start }
func (a *AccumulatingAccumulator) End() decimal.Decimal        { return a.end }
func (a *AccumulatingAccumulator) Difference() decimal.Decimal { return a.difference }
