// Package criteria defines composable query filters. Each filter dimension is
// an optional capability interface; a criteria value implements any subset of
// them, and an unimplemented or unset capability places no constraint on a
// query.
package criteria

import (
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
)

type StreamCriteria interface {
	StreamIDs() []uuid.UUID
	SetStreamIDs([]uuid.UUID)
}

type ObjectCriteria interface {
	ObjectKind() datum.ObjectKind
	SetObjectKind(datum.ObjectKind)
	NodeIDs() []int64
	SetNodeIDs([]int64)
	LocationIDs() []int64
	SetLocationIDs([]int64)
}

type SourceCriteria interface {
	SourceIDs() []string
	SetSourceIDs([]string)
}

type UserCriteria interface {
	UserIDs() []int64
	SetUserIDs([]int64)
}

// DateRangeCriteria is a half-open [start, end) range of instants. A zero
// bound is unbounded.
type DateRangeCriteria interface {
	StartDate() time.Time
	SetStartDate(time.Time)
	EndDate() time.Time
	SetEndDate(time.Time)
}

// LocalDateRangeCriteria is a half-open range of wall-clock dates,
// interpreted in each stream's own time zone. Only the date and clock fields
// of the bounds are used.
type LocalDateRangeCriteria interface {
	LocalStartDate() time.Time
	SetLocalStartDate(time.Time)
	LocalEndDate() time.Time
	SetLocalEndDate(time.Time)
}

type AggregationCriteria interface {
	Aggregation() aggregation.Kind
	SetAggregation(aggregation.Kind)
	PartialAggregation() aggregation.Kind
	SetPartialAggregation(aggregation.Kind)
}

type RollupCriteria interface {
	RollupTypes() []RollupType
	SetRollupTypes([]RollupType)
}

type ReadingTypeCriteria interface {
	ReadingType() ReadingType
	SetReadingType(ReadingType)
	TimeTolerance() time.Duration
	SetTimeTolerance(time.Duration)
}

type AuxiliaryCriteria interface {
	AuxiliaryKind() datum.AuxiliaryKind
	SetAuxiliaryKind(datum.AuxiliaryKind)
}

type CombiningCriteria interface {
	CombiningType() CombiningType
	SetCombiningType(CombiningType)
	ObjectIDMappings() Mappings[int64]
	SetObjectIDMappings(Mappings[int64])
	SourceIDMappings() Mappings[string]
	SetSourceIDMappings(Mappings[string])
}

type PropertyNameCriteria interface {
	PropertyNames() []string
	SetPropertyNames([]string)
	InstantaneousPropertyNames() []string
	SetInstantaneousPropertyNames([]string)
	AccumulatingPropertyNames() []string
	SetAccumulatingPropertyNames([]string)
	StatusPropertyNames() []string
	SetStatusPropertyNames([]string)
}

type PaginationCriteria interface {
	Offset() int64
	SetOffset(int64)
	Max() int
	SetMax(int)
	Sorts() []SortDescriptor
	SetSorts([]SortDescriptor)
	// WithoutTotalResultsCount is true unless a total count was requested.
	WithoutTotalResultsCount() bool
	SetWithoutTotalResultsCount(bool)
}

type MostRecentCriteria interface {
	MostRecent() bool
	SetMostRecent(bool)
}
