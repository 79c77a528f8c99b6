package combining

import (
	"testing"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFromCriteria(t *testing.T) {
	c := &criteria.DatumCriteria{}
	require.Nil(t, FromCriteria(c))

	c.SetCombiningType(criteria.CombineSum)
	require.Nil(t, FromCriteria(c), "no mappings means no combining")

	c.SetObjectIDMappings(criteria.ObjectMappingsFrom([]string{"100:1,2"}))
	cfg := FromCriteria(c)
	require.NotNil(t, cfg)
	require.True(t, cfg.IsWithObjectIDs())
	require.False(t, cfg.IsWithSourceIDs())
	require.Equal(t, []int64{1, 2}, cfg.RealObjectIDs())
	require.Nil(t, cfg.RealSourceIDs())
}

func TestVirtualIDs_LastMappingWins(t *testing.T) {
	cfg := &Config{
		Type:           criteria.CombineSum,
		ObjectMappings: criteria.Mappings[int64]{{Virtual: 100, Reals: []int64{1, 2}}, {Virtual: 200, Reals: []int64{2, 3}}},
	}

	v, ok := cfg.VirtualObjectID(2)
	require.True(t, ok)
	require.Equal(t, int64(200), v)

	v, ok = cfg.VirtualObjectID(1)
	require.True(t, ok)
	require.Equal(t, int64(100), v)

	v, ok = cfg.VirtualObjectID(9)
	require.False(t, ok)
	require.Equal(t, int64(9), v)

	s, ok := cfg.VirtualSourceID("a")
	require.False(t, ok, "sources are not combined")
	require.Equal(t, "a", s)
}

func TestCombine(t *testing.T) {
	ts := time.Date(2021, 3, 17, 14, 0, 0, 0, time.UTC)
	s1, s2 := uuid.New(), uuid.New()
	metas := map[uuid.UUID]*datum.ObjectDatumStreamMetadata{
		s1: {StreamID: s1, Kind: datum.Node, ObjectID: 1, SourceID: "A", InstantaneousNames: []string{"watts"}, AccumulatingNames: []string{"wattHours"}},
		// Same names in a different order: values must align by name.
		s2: {StreamID: s2, Kind: datum.Node, ObjectID: 2, SourceID: "A", InstantaneousNames: []string{"voltage", "watts"}, AccumulatingNames: []string{"wattHours"}},
	}
	rows := []datum.AggregateDatum{
		{
			DatumPK:     datum.DatumPK{StreamID: s2, Timestamp: ts},
			Aggregation: aggregation.Hour,
			Properties: datum.Properties{
				Instantaneous: []decimal.Decimal{dec("240"), dec("30")},
				Accumulating:  []decimal.Decimal{dec("4")},
				Tags:          []string{"b"},
			},
		},
		{
			DatumPK:     datum.DatumPK{StreamID: s1, Timestamp: ts},
			Aggregation: aggregation.Hour,
			Properties: datum.Properties{
				Instantaneous: []decimal.Decimal{dec("10")},
				Accumulating:  []decimal.Decimal{dec("10")},
				Tags:          []string{"a"},
			},
			Statistics: datum.Statistics{
				Accumulating: []*datum.AccumulatingStatistic{{Difference: dec("10"), Start: dec("100"), End: dec("110")}},
			},
		},
		{
			DatumPK:     datum.DatumPK{StreamID: uuid.New(), Timestamp: ts},
			Aggregation: aggregation.Hour,
		},
	}
	lookup := func(id uuid.UUID) *datum.ObjectDatumStreamMetadata { return metas[id] }

	tests := []struct {
		name        string
		combining   criteria.CombiningType
		wantWatts   string
		wantEnergy  string
		wantVoltage string
	}{
		{name: "sum", combining: criteria.CombineSum, wantWatts: "40", wantEnergy: "14", wantVoltage: "240"},
		{name: "average", combining: criteria.CombineAverage, wantWatts: "20", wantEnergy: "7", wantVoltage: "240"},
		// Difference follows mapping order: node 1 minus node 2.
		{name: "difference", combining: criteria.CombineDifference, wantWatts: "-20", wantEnergy: "6", wantVoltage: "240"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Type:           tc.combining,
				ObjectMappings: criteria.ObjectMappingsFrom([]string{"100:1,2"}),
			}
			out, vmetas := Combine(cfg, rows, lookup)
			require.Len(t, out, 1)
			require.Len(t, vmetas, 1)

			vm := vmetas[0]
			require.Equal(t, int64(100), vm.ObjectID)
			require.Equal(t, "A", vm.SourceID)
			require.Equal(t, VirtualStreamID(datum.Node, 100, "A"), vm.StreamID)
			require.Equal(t, []string{"voltage", "watts"}, vm.InstantaneousNames)

			row := out[0]
			require.Equal(t, vm.StreamID, row.StreamID)
			require.True(t, row.Timestamp.Equal(ts))
			require.Equal(t, aggregation.Hour, row.Aggregation)

			watts, ok := row.Properties.Decimal(datum.Instantaneous, vm.PropertyIndex(datum.Instantaneous, "watts"))
			require.True(t, ok)
			require.True(t, watts.Equal(dec(tc.wantWatts)), "watts %s", watts)

			voltage, _ := row.Properties.Decimal(datum.Instantaneous, vm.PropertyIndex(datum.Instantaneous, "voltage"))
			require.True(t, voltage.Equal(dec(tc.wantVoltage)), "voltage %s", voltage)

			energy, _ := row.Properties.Decimal(datum.Accumulating, 0)
			require.True(t, energy.Equal(dec(tc.wantEnergy)), "energy %s", energy)

			require.ElementsMatch(t, []string{"a", "b"}, row.Properties.Tags)
			require.NotNil(t, row.Statistics.Accumulating[0])
		})
	}
}

func TestCombine_NilConfigPassesThrough(t *testing.T) {
	rows := []datum.AggregateDatum{{DatumPK: datum.DatumPK{StreamID: uuid.New()}}}
	out, metas := Combine(nil, rows, nil)
	require.Equal(t, rows, out)
	require.Nil(t, metas)
}

func TestVirtualStreamID_Deterministic(t *testing.T) {
	require.Equal(t, VirtualStreamID(datum.Node, 1, "A"), VirtualStreamID("", 1, "A"))
	require.NotEqual(t, VirtualStreamID(datum.Node, 1, "A"), VirtualStreamID(datum.Location, 1, "A"))
}
