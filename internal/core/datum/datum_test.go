package datum

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProperties_AbsentVersusEmpty(t *testing.T) {
	absent := &Properties{Instantaneous: []decimal.Decimal{dec("1.5")}}
	empty := &Properties{Instantaneous: []decimal.Decimal{dec("1.5")}, Status: []string{}}

	require.False(t, absent.Equal(empty))
	require.True(t, absent.Equal(absent.Clone()))
	require.True(t, empty.Equal(empty.Clone()))
	require.NotNil(t, empty.Clone().Status)
	require.Nil(t, absent.Clone().Status)
}

func TestProperties_JSONPreservesEmptySlots(t *testing.T) {
	p := Properties{Accumulating: []decimal.Decimal{dec("10")}, Tags: []string{}}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got Properties
	require.NoError(t, json.Unmarshal(data, &got))
	require.True(t, p.Equal(&got))
	require.Nil(t, got.Instantaneous)
	require.NotNil(t, got.Tags)
}

func TestProperties_TagsCompareAsSet(t *testing.T) {
	a := &Properties{Tags: []string{"a", "b"}}
	b := &Properties{Tags: []string{"b", "a"}}
	require.True(t, a.Equal(b))
	require.True(t, a.HasTag("b"))
	require.False(t, a.HasTag("c"))
}

func TestProperties_Decimal(t *testing.T) {
	p := &Properties{Instantaneous: []decimal.Decimal{dec("1"), dec("2")}}

	v, ok := p.Decimal(Instantaneous, 1)
	require.True(t, ok)
	require.True(t, v.Equal(dec("2")))

	_, ok = p.Decimal(Instantaneous, 2)
	require.False(t, ok)
	_, ok = p.Decimal(Accumulating, 0)
	require.False(t, ok)
	_, ok = p.Decimal(Status, 0)
	require.False(t, ok)
}

func TestStatistics_JSONTuples(t *testing.T) {
	s := Statistics{
		Instantaneous: []*InstantaneousStatistic{
			{Count: 6, Min: dec("1.1"), Max: dec("9")},
			nil,
		},
		Accumulating: []*AccumulatingStatistic{
			{Difference: dec("5"), Start: dec("100"), End: dec("105")},
		},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `{"i":[["6","1.1","9"],null],"a":[["5","100","105"]]}`, string(data))

	var got Statistics
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.Instantaneous, 2)
	require.Nil(t, got.Instantaneous[1])
	require.Equal(t, int64(6), got.Instantaneous[0].Count)
	require.True(t, got.Accumulating[0].End.Equal(dec("105")))
}

func TestStatistics_RejectsShortTuple(t *testing.T) {
	var got Statistics
	err := json.Unmarshal([]byte(`{"a":[["1","2"]]}`), &got)
	require.Error(t, err)
}

func TestObjectDatumID_IsFullySpecified(t *testing.T) {
	ts := time.Date(2021, 3, 17, 14, 0, 0, 0, time.UTC)
	streamID := uuid.New()

	tests := []struct {
		name string
		id   ObjectDatumID
		want bool
	}{
		{name: "complete", id: ObjectDatumID{StreamID: streamID, Timestamp: ts, Aggregation: aggregation.Hour}, want: true},
		{name: "raw level", id: ObjectDatumID{StreamID: streamID, Timestamp: ts, Aggregation: aggregation.None}, want: true},
		{name: "missing timestamp", id: ObjectDatumID{StreamID: streamID, Aggregation: aggregation.Hour}},
		{name: "missing stream", id: ObjectDatumID{Timestamp: ts, Aggregation: aggregation.Hour}},
		{name: "missing aggregation", id: ObjectDatumID{StreamID: streamID, Timestamp: ts}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.id.IsFullySpecified())
		})
	}
}

func TestStreamMetadata_PropertyIndex(t *testing.T) {
	meta := &ObjectDatumStreamMetadata{
		InstantaneousNames: []string{"watts", "voltage"},
		AccumulatingNames:  []string{"wattHours"},
		StatusNames:        []string{"mode"},
	}

	require.Equal(t, 1, meta.PropertyIndex(Instantaneous, "voltage"))
	require.Equal(t, 0, meta.PropertyIndex(Accumulating, "wattHours"))
	require.Equal(t, -1, meta.PropertyIndex(Status, "watts"))
	require.Equal(t, -1, meta.PropertyIndex(Tag, "anything"))
}

func TestStreamMetadata_MergeNames(t *testing.T) {
	meta := &ObjectDatumStreamMetadata{InstantaneousNames: []string{"watts"}}

	require.True(t, meta.MergeNames([]string{"voltage", "watts"}, []string{"wattHours"}, nil))
	require.Equal(t, []string{"watts", "voltage"}, meta.InstantaneousNames)
	require.Equal(t, []string{"wattHours"}, meta.AccumulatingNames)

	require.False(t, meta.MergeNames([]string{"watts"}, nil, nil))
}

func TestStreamMetadata_Location(t *testing.T) {
	require.Equal(t, time.UTC, (&ObjectDatumStreamMetadata{}).Location())
	require.Equal(t, time.UTC, (&ObjectDatumStreamMetadata{TimeZoneID: "Not/AZone"}).Location())

	loc := (&ObjectDatumStreamMetadata{TimeZoneID: "Pacific/Auckland"}).Location()
	require.Equal(t, "Pacific/Auckland", loc.String())
}

func TestStreamMetadata_LocationIsCached(t *testing.T) {
	a := (&ObjectDatumStreamMetadata{TimeZoneID: "Asia/Kolkata"}).Location()
	b := (&ObjectDatumStreamMetadata{TimeZoneID: "Asia/Kolkata"}).Location()
	require.Same(t, a, b)

	cached, ok := locations.Load("Asia/Kolkata")
	require.True(t, ok)
	require.Same(t, a, cached)

	(&ObjectDatumStreamMetadata{TimeZoneID: "Not/AZone"}).Location()
	cached, ok = locations.Load("Not/AZone")
	require.True(t, ok)
	require.Equal(t, time.UTC, cached)
}

func TestAuxiliary_TypedReset(t *testing.T) {
	ts := time.Date(2021, 3, 17, 14, 30, 0, 0, time.UTC)
	aux := DatumAuxiliary{
		DatumAuxiliaryPK: DatumAuxiliaryPK{StreamID: uuid.New(), Timestamp: ts, Kind: Reset},
		SamplesFinal:     &Properties{Accumulating: []decimal.Decimal{dec("1000")}},
		SamplesStart:     &Properties{Accumulating: []decimal.Decimal{dec("0")}},
	}

	typed := aux.Typed()
	require.Len(t, typed, 2)
	require.Equal(t, RecordResetFinal, typed[0].Type)
	require.Equal(t, RecordResetStart, typed[1].Type)
	require.True(t, typed[0].Timestamp.Equal(ts))

	aux.Kind = "Other"
	require.Empty(t, aux.Typed())
}

func TestParseObjectKind(t *testing.T) {
	k, err := ParseObjectKind("l")
	require.NoError(t, err)
	require.Equal(t, Location, k)

	_, err = ParseObjectKind("x")
	require.Error(t, err)

	require.Equal(t, Node, ObjectKind("").OrDefault())
}
