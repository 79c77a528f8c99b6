package combining

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// virtualNamespace seeds the name-based UUIDs given to virtual streams.
var virtualNamespace = uuid.MustParse("6f1b4f6e-2f0c-4d0b-9a57-3c1f0e5b8d21")

const averagePrecision = 12

// VirtualStreamID returns the deterministic stream ID of a virtual stream.
func VirtualStreamID(kind datum.ObjectKind, objectID int64, sourceID string) uuid.UUID {
	return uuid.NewSHA1(virtualNamespace, []byte(fmt.Sprintf("%s:%d:%s", kind.OrDefault(), objectID, sourceID)))
}

// MetadataLookup resolves a real stream's metadata. It returns nil for
// unknown streams.
type MetadataLookup func(streamID uuid.UUID) *datum.ObjectDatumStreamMetadata

type virtualKey struct {
	objectID int64
	sourceID string
}

type contribution struct {
	meta    *datum.ObjectDatumStreamMetadata
	row     datum.AggregateDatum
	objRank int
	srcRank int
}

type group struct {
	key       virtualKey
	timestamp time.Time
	parts     []contribution
}

// Combine merges rows of real streams into rows of virtual streams. Rows are
// grouped by virtual object, virtual source and timestamp; properties are
// aligned by name through each real stream's metadata and combined with the
// configured type. Rows whose stream metadata is unknown are dropped.
//
// The result is ordered by virtual object, source and timestamp, and the
// returned metadata describes each virtual stream.
func Combine(cfg *Config, rows []datum.AggregateDatum, lookup MetadataLookup) ([]datum.AggregateDatum, []*datum.ObjectDatumStreamMetadata) {
	if cfg == nil || len(rows) == 0 {
		return rows, nil
	}

	metas := make(map[virtualKey]*datum.ObjectDatumStreamMetadata)
	var metaOrder []virtualKey
	groups := make(map[virtualKey]map[time.Time]*group)
	var all []*group

	for _, row := range rows {
		meta := lookup(row.StreamID)
		if meta == nil {
			continue
		}
		vObj, _ := cfg.VirtualObjectID(meta.ObjectID)
		vSrc, _ := cfg.VirtualSourceID(meta.SourceID)
		key := virtualKey{objectID: vObj, sourceID: vSrc}

		vm, ok := metas[key]
		if !ok {
			vm = &datum.ObjectDatumStreamMetadata{
				StreamID:   VirtualStreamID(meta.Kind, vObj, vSrc),
				Kind:       meta.Kind,
				ObjectID:   vObj,
				SourceID:   vSrc,
				TimeZoneID: meta.TimeZoneID,
			}
			metas[key] = vm
			metaOrder = append(metaOrder, key)
		}
		vm.MergeNames(meta.InstantaneousNames, meta.AccumulatingNames, meta.StatusNames)

		byTime := groups[key]
		if byTime == nil {
			byTime = make(map[time.Time]*group)
			groups[key] = byTime
		}
		ts := row.Timestamp.UTC()
		g := byTime[ts]
		if g == nil {
			g = &group{key: key, timestamp: ts}
			byTime[ts] = g
			all = append(all, g)
		}
		g.parts = append(g.parts, contribution{
			meta:    meta,
			row:     row,
			objRank: rank(cfg.ObjectMappings, meta.ObjectID),
			srcRank: rank(cfg.SourceMappings, meta.SourceID),
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.key.objectID != b.key.objectID {
			return a.key.objectID < b.key.objectID
		}
		if a.key.sourceID != b.key.sourceID {
			return a.key.sourceID < b.key.sourceID
		}
		return a.timestamp.Before(b.timestamp)
	})

	out := make([]datum.AggregateDatum, 0, len(all))
	for _, g := range all {
		sort.SliceStable(g.parts, func(i, j int) bool {
			if g.parts[i].objRank != g.parts[j].objRank {
				return g.parts[i].objRank < g.parts[j].objRank
			}
			return g.parts[i].srcRank < g.parts[j].srcRank
		})
		out = append(out, combineGroup(cfg.Type, metas[g.key], g))
	}

	outMetas := make([]*datum.ObjectDatumStreamMetadata, 0, len(metaOrder))
	for _, k := range metaOrder {
		outMetas = append(outMetas, metas[k])
	}
	return out, outMetas
}

func combineGroup(t criteria.CombiningType, vm *datum.ObjectDatumStreamMetadata, g *group) datum.AggregateDatum {
	first := g.parts[0].row
	result := datum.AggregateDatum{
		DatumPK:     datum.DatumPK{StreamID: vm.StreamID, Timestamp: first.Timestamp},
		Aggregation: first.Aggregation,
	}

	if len(vm.InstantaneousNames) > 0 {
		result.Properties.Instantaneous = make([]decimal.Decimal, len(vm.InstantaneousNames))
		var stats []*datum.InstantaneousStatistic
		for i, name := range vm.InstantaneousNames {
			var values, mins, maxs []decimal.Decimal
			var count int64
			for _, p := range g.parts {
				idx := p.meta.PropertyIndex(datum.Instantaneous, name)
				v, ok := p.row.Properties.Decimal(datum.Instantaneous, idx)
				if !ok {
					continue
				}
				values = append(values, v)
				if idx < len(p.row.Statistics.Instantaneous) {
					if st := p.row.Statistics.Instantaneous[idx]; st != nil {
						count += st.Count
						mins = append(mins, st.Min)
						maxs = append(maxs, st.Max)
					}
				}
			}
			result.Properties.Instantaneous[i] = apply(t, values)
			if len(mins) > 0 {
				if stats == nil {
					stats = make([]*datum.InstantaneousStatistic, len(vm.InstantaneousNames))
				}
				stats[i] = &datum.InstantaneousStatistic{Count: count, Min: apply(t, mins), Max: apply(t, maxs)}
			}
		}
		result.Statistics.Instantaneous = stats
	}

	if len(vm.AccumulatingNames) > 0 {
		result.Properties.Accumulating = make([]decimal.Decimal, len(vm.AccumulatingNames))
		var stats []*datum.AccumulatingStatistic
		for i, name := range vm.AccumulatingNames {
			var values, diffs, starts, ends []decimal.Decimal
			for _, p := range g.parts {
				idx := p.meta.PropertyIndex(datum.Accumulating, name)
				v, ok := p.row.Properties.Decimal(datum.Accumulating, idx)
				if !ok {
					continue
				}
				values = append(values, v)
				if idx < len(p.row.Statistics.Accumulating) {
					if st := p.row.Statistics.Accumulating[idx]; st != nil {
						diffs = append(diffs, st.Difference)
						starts = append(starts, st.Start)
						ends = append(ends, st.End)
					}
				}
			}
			result.Properties.Accumulating[i] = apply(t, values)
			if len(diffs) > 0 {
				if stats == nil {
					stats = make([]*datum.AccumulatingStatistic, len(vm.AccumulatingNames))
				}
				stats[i] = &datum.AccumulatingStatistic{Difference: apply(t, diffs), Start: apply(t, starts), End: apply(t, ends)}
			}
		}
		result.Statistics.Accumulating = stats
	}

	if len(vm.StatusNames) > 0 {
		result.Properties.Status = make([]string, len(vm.StatusNames))
		for i, name := range vm.StatusNames {
			for _, p := range g.parts {
				idx := p.meta.PropertyIndex(datum.Status, name)
				if idx >= 0 && idx < len(p.row.Properties.Status) && p.row.Properties.Status[idx] != "" {
					result.Properties.Status[i] = p.row.Properties.Status[idx]
					break
				}
			}
		}
	}

	for _, p := range g.parts {
		for _, tag := range p.row.Properties.Tags {
			if !slices.Contains(result.Properties.Tags, tag) {
				result.Properties.Tags = append(result.Properties.Tags, tag)
			}
		}
	}
	return result
}

// apply reduces values with t. Difference subtracts every later value from
// the first.
func apply(t criteria.CombiningType, values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	switch t {
	case criteria.CombineAverage:
		return decimal.Sum(values[0], values[1:]...).DivRound(decimal.NewFromInt(int64(len(values))), averagePrecision)
	case criteria.CombineDifference:
		out := values[0]
		for _, v := range values[1:] {
			out = out.Sub(v)
		}
		return out
	default:
		return decimal.Sum(values[0], values[1:]...)
	}
}
