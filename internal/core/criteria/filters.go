package criteria

import (
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
)

// The singular accessors below are views over the plural slices: the getter
// returns the first element (or the zero value) and the setter replaces the
// whole slice with one element, or clears it for the zero value.

func first[T any](s []T) T {
	var zero T
	if len(s) == 0 {
		return zero
	}
	return s[0]
}

func only[T comparable](v T) []T {
	var zero T
	if v == zero {
		return nil
	}
	return []T{v}
}

type StreamFilter struct {
	streamIDs []uuid.UUID
}

func (f *StreamFilter) StreamIDs() []uuid.UUID     { return f.streamIDs }
func (f *StreamFilter) SetStreamIDs(v []uuid.UUID) { f.streamIDs = v }
func (f *StreamFilter) StreamID() uuid.UUID        { return first(f.streamIDs) }
func (f *StreamFilter) SetStreamID(v uuid.UUID)    { f.streamIDs = only(v) }

type ObjectFilter struct {
	kind        datum.ObjectKind
	nodeIDs     []int64
	locationIDs []int64
}

func (f *ObjectFilter) ObjectKind() datum.ObjectKind     { return f.kind }
func (f *ObjectFilter) SetObjectKind(k datum.ObjectKind) { f.kind = k }
func (f *ObjectFilter) NodeIDs() []int64                 { return f.nodeIDs }
func (f *ObjectFilter) SetNodeIDs(v []int64)             { f.nodeIDs = v }
func (f *ObjectFilter) NodeID() int64                    { return first(f.nodeIDs) }
func (f *ObjectFilter) SetNodeID(v int64)                { f.nodeIDs = only(v) }
func (f *ObjectFilter) LocationIDs() []int64             { return f.locationIDs }
func (f *ObjectFilter) SetLocationIDs(v []int64)         { f.locationIDs = v }
func (f *ObjectFilter) LocationID() int64                { return first(f.locationIDs) }
func (f *ObjectFilter) SetLocationID(v int64)            { f.locationIDs = only(v) }

// ObjectIDs returns the node or location IDs according to the object kind,
// defaulting to nodes.
func (f *ObjectFilter) ObjectIDs() []int64 {
	if f.kind == datum.Location {
		return f.locationIDs
	}
	return f.nodeIDs
}

type SourceFilter struct {
	sourceIDs []string
}

func (f *SourceFilter) SourceIDs() []string     { return f.sourceIDs }
func (f *SourceFilter) SetSourceIDs(v []string) { f.sourceIDs = v }
func (f *SourceFilter) SourceID() string        { return first(f.sourceIDs) }
func (f *SourceFilter) SetSourceID(v string)    { f.sourceIDs = only(v) }

type UserFilter struct {
	userIDs []int64
}

func (f *UserFilter) UserIDs() []int64     { return f.userIDs }
func (f *UserFilter) SetUserIDs(v []int64) { f.userIDs = v }
func (f *UserFilter) UserID() int64        { return first(f.userIDs) }
func (f *UserFilter) SetUserID(v int64)    { f.userIDs = only(v) }

type DateRange struct {
	start time.Time
	end   time.Time
}

func (f *DateRange) StartDate() time.Time     { return f.start }
func (f *DateRange) SetStartDate(t time.Time) { f.start = t }
func (f *DateRange) EndDate() time.Time       { return f.end }
func (f *DateRange) SetEndDate(t time.Time)   { f.end = t }

// Contains reports whether t lies within [start, end), treating zero bounds
// as open.
func (f *DateRange) Contains(t time.Time) bool {
	if !f.start.IsZero() && t.Before(f.start) {
		return false
	}
	if !f.end.IsZero() && !t.Before(f.end) {
		return false
	}
	return true
}

type LocalDateRange struct {
	start time.Time
	end   time.Time
}

func (f *LocalDateRange) LocalStartDate() time.Time     { return f.start }
func (f *LocalDateRange) SetLocalStartDate(t time.Time) { f.start = t }
func (f *LocalDateRange) LocalEndDate() time.Time       { return f.end }
func (f *LocalDateRange) SetLocalEndDate(t time.Time)   { f.end = t }

// In resolves the wall-clock bounds to instants in loc.
func (f *LocalDateRange) In(loc *time.Location) (start, end time.Time) {
	conv := func(t time.Time) time.Time {
		if t.IsZero() {
			return t
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	}
	return conv(f.start), conv(f.end)
}

// HasLocalDates reports whether either local bound is set.
func (f *LocalDateRange) HasLocalDates() bool {
	return !f.start.IsZero() || !f.end.IsZero()
}

type AggregationFilter struct {
	aggregation aggregation.Kind
	partial     aggregation.Kind
}

func (f *AggregationFilter) Aggregation() aggregation.Kind            { return f.aggregation }
func (f *AggregationFilter) SetAggregation(k aggregation.Kind)        { f.aggregation = k }
func (f *AggregationFilter) PartialAggregation() aggregation.Kind     { return f.partial }
func (f *AggregationFilter) SetPartialAggregation(k aggregation.Kind) { f.partial = k }

type RollupFilter struct {
	rollupTypes []RollupType
}

func (f *RollupFilter) RollupTypes() []RollupType     { return f.rollupTypes }
func (f *RollupFilter) SetRollupTypes(v []RollupType) { f.rollupTypes = v }
func (f *RollupFilter) RollupType() RollupType        { return first(f.rollupTypes) }
func (f *RollupFilter) SetRollupType(v RollupType)    { f.rollupTypes = only(v) }

type ReadingFilter struct {
	readingType ReadingType
	tolerance   time.Duration
}

func (f *ReadingFilter) ReadingType() ReadingType         { return f.readingType }
func (f *ReadingFilter) SetReadingType(t ReadingType)     { f.readingType = t }
func (f *ReadingFilter) TimeTolerance() time.Duration     { return f.tolerance }
func (f *ReadingFilter) SetTimeTolerance(d time.Duration) { f.tolerance = d }

type AuxiliaryFilter struct {
	kind datum.AuxiliaryKind
}

func (f *AuxiliaryFilter) AuxiliaryKind() datum.AuxiliaryKind     { return f.kind }
func (f *AuxiliaryFilter) SetAuxiliaryKind(k datum.AuxiliaryKind) { f.kind = k }

type CombiningFilter struct {
	combiningType  CombiningType
	objectMappings Mappings[int64]
	sourceMappings Mappings[string]
}

func (f *CombiningFilter) CombiningType() CombiningType           { return f.combiningType }
func (f *CombiningFilter) SetCombiningType(t CombiningType)       { f.combiningType = t }
func (f *CombiningFilter) ObjectIDMappings() Mappings[int64]      { return f.objectMappings }
func (f *CombiningFilter) SetObjectIDMappings(m Mappings[int64])  { f.objectMappings = m }
func (f *CombiningFilter) SourceIDMappings() Mappings[string]     { return f.sourceMappings }
func (f *CombiningFilter) SetSourceIDMappings(m Mappings[string]) { f.sourceMappings = m }

type PropertyNameFilter struct {
	names              []string
	instantaneousNames []string
	accumulatingNames  []string
	statusNames        []string
}

func (f *PropertyNameFilter) PropertyNames() []string                  { return f.names }
func (f *PropertyNameFilter) SetPropertyNames(v []string)              { f.names = v }
func (f *PropertyNameFilter) PropertyName() string                     { return first(f.names) }
func (f *PropertyNameFilter) SetPropertyName(v string)                 { f.names = only(v) }
func (f *PropertyNameFilter) InstantaneousPropertyNames() []string     { return f.instantaneousNames }
func (f *PropertyNameFilter) SetInstantaneousPropertyNames(v []string) { f.instantaneousNames = v }
func (f *PropertyNameFilter) InstantaneousPropertyName() string        { return first(f.instantaneousNames) }
func (f *PropertyNameFilter) SetInstantaneousPropertyName(v string)    { f.instantaneousNames = only(v) }
func (f *PropertyNameFilter) AccumulatingPropertyNames() []string      { return f.accumulatingNames }
func (f *PropertyNameFilter) SetAccumulatingPropertyNames(v []string)  { f.accumulatingNames = v }
func (f *PropertyNameFilter) AccumulatingPropertyName() string         { return first(f.accumulatingNames) }
func (f *PropertyNameFilter) SetAccumulatingPropertyName(v string)     { f.accumulatingNames = only(v) }
func (f *PropertyNameFilter) StatusPropertyNames() []string            { return f.statusNames }
func (f *PropertyNameFilter) SetStatusPropertyNames(v []string)        { f.statusNames = v }
func (f *PropertyNameFilter) StatusPropertyName() string               { return first(f.statusNames) }
func (f *PropertyNameFilter) SetStatusPropertyName(v string)           { f.statusNames = only(v) }

// HasPropertyNames reports whether any property-name filter is set.
func (f *PropertyNameFilter) HasPropertyNames() bool {
	return len(f.names) > 0 || len(f.instantaneousNames) > 0 ||
		len(f.accumulatingNames) > 0 || len(f.statusNames) > 0
}

type Pagination struct {
	offset    int64
	max       int
	sorts     []SortDescriptor
	withTotal bool
}

func (p *Pagination) Offset() int64                      { return p.offset }
func (p *Pagination) SetOffset(v int64)                  { p.offset = v }
func (p *Pagination) Max() int                           { return p.max }
func (p *Pagination) SetMax(v int)                       { p.max = v }
func (p *Pagination) Sorts() []SortDescriptor            { return p.sorts }
func (p *Pagination) SetSorts(v []SortDescriptor)        { p.sorts = v }
func (p *Pagination) WithoutTotalResultsCount() bool     { return !p.withTotal }
func (p *Pagination) SetWithoutTotalResultsCount(v bool) { p.withTotal = !v }

type MostRecentFilter struct {
	mostRecent bool
}

func (f *MostRecentFilter) MostRecent() bool     { return f.mostRecent }
func (f *MostRecentFilter) SetMostRecent(v bool) { f.mostRecent = v }
