package criteria

import (
	"testing"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestObjectMappingsFrom(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   Mappings[int64]
	}{
		{
			name:   "single mapping",
			tokens: []string{"1:2,3"},
			want:   Mappings[int64]{{Virtual: 1, Reals: []int64{2, 3}}},
		},
		{
			// Binders split "1:2,3,4" on commas; the trailing bare token joins
			// the only mapping decoded so far.
			name:   "bare token appended to single mapping",
			tokens: []string{"1:2,3", "4"},
			want:   Mappings[int64]{{Virtual: 1, Reals: []int64{2, 3, 4}}},
		},
		{
			name:   "bare token ignored with two mappings",
			tokens: []string{"1:2", "5:6", "7"},
			want:   Mappings[int64]{{Virtual: 1, Reals: []int64{2}}, {Virtual: 5, Reals: []int64{6}}},
		},
		{
			name:   "bare token ignored with no mapping",
			tokens: []string{"4", "1:2"},
			want:   Mappings[int64]{{Virtual: 1, Reals: []int64{2}}},
		},
		{
			name:   "malformed virtual id only",
			tokens: []string{"notanumber:1,2"},
			want:   nil,
		},
		{
			name:   "malformed tokens skipped",
			tokens: []string{":1", "2:", "3:x,4", "5:6"},
			want:   Mappings[int64]{{Virtual: 5, Reals: []int64{6}}},
		},
		{
			name:   "repeated virtual id merged",
			tokens: []string{"1:2", "1:3,2"},
			want:   Mappings[int64]{{Virtual: 1, Reals: []int64{2, 3}}},
		},
		{
			name:   "empty",
			tokens: nil,
			want:   nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ObjectMappingsFrom(tc.tokens))
		})
	}
}

func TestSourceMappingsFrom(t *testing.T) {
	got := SourceMappingsFrom([]string{"V1:S1,S2", "S3"})
	require.Equal(t, Mappings[string]{{Virtual: "V1", Reals: []string{"S1", "S2", "S3"}}}, got)
	require.Equal(t, []string{"V1"}, got.Virtuals())
	require.Equal(t, []string{"S1", "S2", "S3"}, got.Reals("V1"))
	require.Nil(t, got.Reals("V2"))

	require.Nil(t, SourceMappingsFrom([]string{"V1:", "nocolon"}))
}

func TestMappings_AllReals(t *testing.T) {
	m := Mappings[int64]{{Virtual: 1, Reals: []int64{2, 3}}, {Virtual: 4, Reals: []int64{3, 5}}}
	require.Equal(t, []int64{2, 3, 5}, m.AllReals())
}

func TestFirstOfArrayAccessors(t *testing.T) {
	c := &DatumCriteria{}
	require.Equal(t, uuid.Nil, c.StreamID())

	a, b := uuid.New(), uuid.New()
	c.SetStreamIDs([]uuid.UUID{a, b})
	require.Equal(t, a, c.StreamID())

	c.SetStreamID(b)
	require.Equal(t, []uuid.UUID{b}, c.StreamIDs())

	c.SetStreamID(uuid.Nil)
	require.Nil(t, c.StreamIDs())

	c.SetNodeIDs([]int64{7, 8})
	require.Equal(t, int64(7), c.NodeID())
	c.SetLocationID(9)
	require.Equal(t, []int64{9}, c.LocationIDs())

	c.SetRollupTypes([]RollupType{RollupSum, RollupAll})
	require.Equal(t, RollupSum, c.RollupType())
	c.SetRollupType(RollupMax)
	require.Equal(t, []RollupType{RollupMax}, c.RollupTypes())

	c.SetAccumulatingPropertyNames([]string{"wattHours", "vah"})
	require.Equal(t, "wattHours", c.AccumulatingPropertyName())
	c.SetPropertyName("watts")
	require.Equal(t, []string{"watts"}, c.PropertyNames())
	c.SetStatusPropertyName("")
	require.Empty(t, c.StatusPropertyNames())
}

func TestWithoutTotalResultsCountDefaultsTrue(t *testing.T) {
	c := &DatumCriteria{}
	require.True(t, c.WithoutTotalResultsCount())

	c.SetWithoutTotalResultsCount(false)
	require.False(t, c.WithoutTotalResultsCount())
}

func TestCopyFrom_ProbesCapabilities(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &DatumCriteria{}
	src.SetStreamID(uuid.New())
	src.SetObjectKind(datum.Location)
	src.SetLocationID(3)
	src.SetSourceIDs([]string{"a", "b"})
	src.SetStartDate(start)
	src.SetAggregation(aggregation.Month)
	src.SetCombiningType(CombineSum)
	src.SetMax(10)
	src.SetMostRecent(true)

	audit := &AuditCriteria{}
	audit.CopyFrom(src)
	require.Equal(t, src.StreamIDs(), audit.StreamIDs())
	require.Equal(t, datum.Location, audit.ObjectKind())
	require.Equal(t, []int64{3}, audit.LocationIDs())
	require.Equal(t, start, audit.StartDate())
	require.Equal(t, aggregation.Month, audit.Aggregation())
	require.Equal(t, 10, audit.Max())
	require.True(t, audit.MostRecent())

	// Only shared capabilities survive a round trip through the narrower type.
	meta := &StreamMetadataCriteria{}
	meta.CopyFrom(src)
	back := &DatumCriteria{}
	back.CopyFrom(meta)
	require.Equal(t, []string{"a", "b"}, back.SourceIDs())
	require.True(t, back.StartDate().IsZero())
	require.Empty(t, back.CombiningType())
	require.False(t, back.MostRecent())
}

func TestClone_DoesNotAlias(t *testing.T) {
	src := &DatumCriteria{}
	src.SetSourceIDs([]string{"a"})
	src.SetObjectIDMappings(Mappings[int64]{{Virtual: 1, Reals: []int64{2}}})

	c := src.Clone()
	c.SourceIDs()[0] = "changed"
	c.ObjectIDMappings()[0].Reals[0] = 99

	require.Equal(t, "a", src.SourceID())
	require.Equal(t, []int64{2}, src.ObjectIDMappings().Reals(1))
}

func TestCopyFrom_NilSource(t *testing.T) {
	c := &DatumCriteria{}
	c.SetNodeID(1)
	c.CopyFrom(nil)
	require.Equal(t, int64(1), c.NodeID())
}

func TestPropertyNameFiltersFrom(t *testing.T) {
	f := PropertyNameFiltersFrom([]string{"i:watts", "a:wattHours", "s:mode", "voltage", "x:bad", "i:", " "})
	require.Equal(t, []string{"voltage"}, f.Names)
	require.Equal(t, []string{"watts"}, f.InstantaneousNames)
	require.Equal(t, []string{"wattHours"}, f.AccumulatingNames)
	require.Equal(t, []string{"mode"}, f.StatusNames)

	c := &DatumCriteria{}
	f.Apply(c)
	require.Equal(t, "watts", c.InstantaneousPropertyName())
	require.True(t, c.HasPropertyNames())
}

func TestLocalDateRange_In(t *testing.T) {
	loc := time.FixedZone("NZST", 12*3600)
	c := &DatumCriteria{}
	c.SetLocalStartDate(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC))

	start, end := c.In(loc)
	require.True(t, end.IsZero())
	require.Equal(t, time.Date(2021, 2, 28, 12, 0, 0, 0, time.UTC), start.UTC())
}

func TestParseEnums(t *testing.T) {
	rt, err := ParseReadingType("nearestdifference")
	require.NoError(t, err)
	require.Equal(t, ReadingNearestDifference, rt)

	ct, err := ParseCombiningType("AVERAGE")
	require.NoError(t, err)
	require.Equal(t, CombineAverage, ct)

	_, err = ParseRollupType("median")
	require.Error(t, err)
}
