package rollup

import (
	"slices"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/shopspring/decimal"
)

// folder accumulates positional properties across a sequence.
type folder struct {
	inst         []aggregation.InstantaneousAccumulator
	acc          []aggregation.AccumulatingAccumulator
	pendingFinal map[int]decimal.Decimal
	status       []string
	tags         []string
	hasInst      bool
	hasAcc       bool
	hasStatus    bool
	hasTags      bool
	raw          int
}

func grow[T any](s []T, n int) []T {
	if len(s) >= n {
		return s
	}
	return append(s, make([]T, n-len(s))...)
}

// addSample folds the non-accumulating parts of a raw datum.
func (f *folder) addSample(p datum.Properties) {
	f.raw++
	if p.Instantaneous != nil {
		f.hasInst = true
		f.inst = grow(f.inst, len(p.Instantaneous))
		for i, v := range p.Instantaneous {
			f.inst[i].Add(v)
		}
	}
	if p.Status != nil {
		f.hasStatus = true
		f.status = grow(f.status, len(p.Status))
		for i, v := range p.Status {
			if v != "" {
				f.status[i] = v
			}
		}
	}
	f.addTags(p.Tags)
}

func (f *folder) addTags(tags []string) {
	if tags == nil {
		return
	}
	f.hasTags = true
	for _, t := range tags {
		if !slices.Contains(f.tags, t) {
			f.tags = append(f.tags, t)
		}
	}
}

// addReading folds the accumulating values of one sequence element.
func (f *folder) addReading(td datum.TypedDatum) {
	values := td.Properties.Accumulating
	if values == nil {
		return
	}
	f.hasAcc = true
	f.acc = grow(f.acc, len(values))
	switch td.Type {
	case datum.RecordResetFinal:
		if f.pendingFinal == nil {
			f.pendingFinal = make(map[int]decimal.Decimal)
		}
		for i, v := range values {
			f.pendingFinal[i] = v
		}
	case datum.RecordResetStart:
		for i, v := range values {
			final, ok := f.pendingFinal[i]
			if !ok {
				final = f.acc[i].End()
			}
			f.acc[i].Reset(final, v)
			delete(f.pendingFinal, i)
		}
	default:
		for i, v := range values {
			f.acc[i].Add(v)
		}
	}
}

// finish closes any reset whose start half never arrived.
func (f *folder) finish() {
	for i, v := range f.pendingFinal {
		f.acc[i].Add(v)
	}
	f.pendingFinal = nil
}

// result builds the aggregated properties and statistics.
func (f *folder) result() (datum.Properties, datum.Statistics) {
	var props datum.Properties
	var stats datum.Statistics
	if f.hasInst {
		props.Instantaneous = make([]decimal.Decimal, len(f.inst))
		stats.Instantaneous = make([]*datum.InstantaneousStatistic, len(f.inst))
		for i := range f.inst {
			a := &f.inst[i]
			props.Instantaneous[i] = a.Average()
			if a.Count() > 0 {
				stats.Instantaneous[i] = &datum.InstantaneousStatistic{Count: a.Count(), Min: a.Min(), Max: a.Max()}
			}
		}
	}
	if f.hasAcc {
		props.Accumulating = make([]decimal.Decimal, len(f.acc))
		stats.Accumulating = make([]*datum.AccumulatingStatistic, len(f.acc))
		for i := range f.acc {
			a := &f.acc[i]
			props.Accumulating[i] = a.Difference()
			if a.Started() {
				stats.Accumulating[i] = &datum.AccumulatingStatistic{Difference: a.Difference(), Start: a.Start(), End: a.End()}
			}
		}
	}
	if f.hasStatus {
		props.Status = slices.Clone(f.status)
	}
	if f.hasTags {
		props.Tags = slices.Clone(f.tags)
		if props.Tags == nil {
			props.Tags = []string{}
		}
	}
	return props, stats
}
