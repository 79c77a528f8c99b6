package criteria

import (
	"slices"
	"strings"
)

// DatumCriteria implements every capability and is the filter used by datum,
// aggregate, reading, maintenance and auxiliary operations.
type DatumCriteria struct {
	StreamFilter
	ObjectFilter
	SourceFilter
	UserFilter
	DateRange
	LocalDateRange
	AggregationFilter
	RollupFilter
	ReadingFilter
	AuxiliaryFilter
	CombiningFilter
	PropertyNameFilter
	Pagination
	MostRecentFilter
}

// CopyFrom copies every capability src shares with c.
func (c *DatumCriteria) CopyFrom(src any) { copyCapabilities(c, src) }

// Clone returns an independent copy.
func (c *DatumCriteria) Clone() *DatumCriteria {
	out := &DatumCriteria{}
	out.CopyFrom(c)
	return out
}

// StreamMetadataCriteria selects stream metadata records.
type StreamMetadataCriteria struct {
	StreamFilter
	ObjectFilter
	SourceFilter
	UserFilter
}

func (c *StreamMetadataCriteria) CopyFrom(src any) { copyCapabilities(c, src) }

// AuditCriteria selects audit rows.
type AuditCriteria struct {
	StreamFilter
	ObjectFilter
	SourceFilter
	DateRange
	AggregationFilter
	Pagination
	MostRecentFilter
}

func (c *AuditCriteria) CopyFrom(src any) { copyCapabilities(c, src) }

// copyCapabilities probes dst and src for each capability and copies the
// ones both implement. Slices are cloned so the copies do not alias.
func copyCapabilities(dst, src any) {
	if dst == nil || src == nil {
		return
	}
	if d, ok := dst.(StreamCriteria); ok {
		if s, ok := src.(StreamCriteria); ok {
			d.SetStreamIDs(slices.Clone(s.StreamIDs()))
		}
	}
	if d, ok := dst.(ObjectCriteria); ok {
		if s, ok := src.(ObjectCriteria); ok {
			d.SetObjectKind(s.ObjectKind())
			d.SetNodeIDs(slices.Clone(s.NodeIDs()))
			d.SetLocationIDs(slices.Clone(s.LocationIDs()))
		}
	}
	if d, ok := dst.(SourceCriteria); ok {
		if s, ok := src.(SourceCriteria); ok {
			d.SetSourceIDs(slices.Clone(s.SourceIDs()))
		}
	}
	if d, ok := dst.(UserCriteria); ok {
		if s, ok := src.(UserCriteria); ok {
			d.SetUserIDs(slices.Clone(s.UserIDs()))
		}
	}
	if d, ok := dst.(DateRangeCriteria); ok {
		if s, ok := src.(DateRangeCriteria); ok {
			d.SetStartDate(s.StartDate())
			d.SetEndDate(s.EndDate())
		}
	}
	if d, ok := dst.(LocalDateRangeCriteria); ok {
		if s, ok := src.(LocalDateRangeCriteria); ok {
			d.SetLocalStartDate(s.LocalStartDate())
			d.SetLocalEndDate(s.LocalEndDate())
		}
	}
	if d, ok := dst.(AggregationCriteria); ok {
		if s, ok := src.(AggregationCriteria); ok {
			d.SetAggregation(s.Aggregation())
			d.SetPartialAggregation(s.PartialAggregation())
		}
	}
	if d, ok := dst.(RollupCriteria); ok {
		if s, ok := src.(RollupCriteria); ok {
			d.SetRollupTypes(slices.Clone(s.RollupTypes()))
		}
	}
	if d, ok := dst.(ReadingTypeCriteria); ok {
		if s, ok := src.(ReadingTypeCriteria); ok {
			d.SetReadingType(s.ReadingType())
			d.SetTimeTolerance(s.TimeTolerance())
		}
	}
	if d, ok := dst.(AuxiliaryCriteria); ok {
		if s, ok := src.(AuxiliaryCriteria); ok {
			d.SetAuxiliaryKind(s.AuxiliaryKind())
		}
	}
	if d, ok := dst.(CombiningCriteria); ok {
		if s, ok := src.(CombiningCriteria); ok {
			d.SetCombiningType(s.CombiningType())
			d.SetObjectIDMappings(s.ObjectIDMappings().Clone())
			d.SetSourceIDMappings(s.SourceIDMappings().Clone())
		}
	}
	if d, ok := dst.(PropertyNameCriteria); ok {
		if s, ok := src.(PropertyNameCriteria); ok {
			d.SetPropertyNames(slices.Clone(s.PropertyNames()))
			d.SetInstantaneousPropertyNames(slices.Clone(s.InstantaneousPropertyNames()))
			d.SetAccumulatingPropertyNames(slices.Clone(s.AccumulatingPropertyNames()))
			d.SetStatusPropertyNames(slices.Clone(s.StatusPropertyNames()))
		}
	}
	if d, ok := dst.(PaginationCriteria); ok {
		if s, ok := src.(PaginationCriteria); ok {
			d.SetOffset(s.Offset())
			d.SetMax(s.Max())
			d.SetSorts(slices.Clone(s.Sorts()))
			d.SetWithoutTotalResultsCount(s.WithoutTotalResultsCount())
		}
	}
	if d, ok := dst.(MostRecentCriteria); ok {
		if s, ok := src.(MostRecentCriteria); ok {
			d.SetMostRecent(s.MostRecent())
		}
	}
}

// PropertyNameFilters is the decoded form of a property-name filter list.
type PropertyNameFilters struct {
	Names              []string
	InstantaneousNames []string
	AccumulatingNames  []string
	StatusNames        []string
}

// PropertyNameFiltersFrom decodes "i:name", "a:name", "s:name" and bare
// "name" tokens. Tokens with an unknown prefix or an empty name are skipped.
func PropertyNameFiltersFrom(tokens []string) PropertyNameFilters {
	var out PropertyNameFilters
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		prefix, name, found := strings.Cut(token, ":")
		if !found {
			if token != "" {
				out.Names = append(out.Names, token)
			}
			continue
		}
		if name == "" {
			continue
		}
		switch prefix {
		case "i":
			out.InstantaneousNames = append(out.InstantaneousNames, name)
		case "a":
			out.AccumulatingNames = append(out.AccumulatingNames, name)
		case "s":
			out.StatusNames = append(out.StatusNames, name)
		}
	}
	return out
}

// Apply sets the decoded names on c.
func (f PropertyNameFilters) Apply(c PropertyNameCriteria) {
	c.SetPropertyNames(f.Names)
	c.SetInstantaneousPropertyNames(f.InstantaneousNames)
	c.SetAccumulatingPropertyNames(f.AccumulatingNames)
	c.SetStatusPropertyNames(f.StatusNames)
}
