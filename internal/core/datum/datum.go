package datum

import (
	"fmt"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/google/uuid"
)

// DatumPK uniquely identifies one raw datum, or (with an aggregation kind)
// one aggregate bucket.
type DatumPK struct {
	StreamID  uuid.UUID `json:"streamId"`
	Timestamp time.Time `json:"timestamp"`
}

func (pk DatumPK) String() string {
	return fmt.Sprintf("%s@%s", pk.StreamID, pk.Timestamp.UTC().Format(time.RFC3339Nano))
}

// Datum is one raw reading. It is immutable after creation: a second record
// with the same PK is rejected by the store, never merged.
type Datum struct {
	DatumPK
	// Received is the ingestion time, distinct from the datum's own Timestamp.
	Received   time.Time  `json:"received"`
	Properties Properties `json:"properties"`
}

// AggregateDatum is a rollup of raw datum over a bucket that starts at
// Timestamp, or a cumulative total when Aggregation is RunningTotal.
type AggregateDatum struct {
	DatumPK
	Aggregation aggregation.Kind `json:"aggregation"`
	Properties  Properties       `json:"properties"`
	Statistics  Statistics       `json:"statistics"`
}

// FromDatum presents a raw datum as an aggregate of kind None.
func FromDatum(d Datum) AggregateDatum {
	return AggregateDatum{
		DatumPK:     d.DatumPK,
		Aggregation: aggregation.None,
		Properties:  *d.Properties.Clone(),
	}
}

// ReadingDatum is the difference between two absolute reading instants,
// Timestamp and EndTimestamp, rather than a calendar bucket.
type ReadingDatum struct {
	AggregateDatum
	EndTimestamp time.Time `json:"endTimestamp"`
}

// RecordType marks an element of a calculation sequence.
type RecordType string

const (
	RecordRaw        RecordType = "Raw"
	RecordResetFinal RecordType = "ResetFinal"
	RecordResetStart RecordType = "ResetStart"
)

// TypedDatum is an intermediate calculation element: a raw datum, or one half
// of an auxiliary reset presented as a datum at the reset instant.
type TypedDatum struct {
	Datum
	Type RecordType
}

// StaleAggregateDatum is a work-queue row: its existence means the aggregate
// bucket at (StreamID, Timestamp, Kind) must be recomputed.
type StaleAggregateDatum struct {
	StreamID  uuid.UUID        `json:"streamId"`
	Timestamp time.Time        `json:"timestamp"`
	Kind      aggregation.Kind `json:"kind"`
	Created   time.Time        `json:"created"`
}

func (s StaleAggregateDatum) String() string {
	return fmt.Sprintf("stale{%s %s %s}", s.StreamID, s.Kind, s.Timestamp.UTC().Format(time.RFC3339))
}

// DatumRecordCounts reports how many rows a maintenance filter matches.
type DatumRecordCounts struct {
	DatumCount        int64 `json:"datumCount"`
	DatumHourlyCount  int64 `json:"datumHourlyCount"`
	DatumDailyCount   int64 `json:"datumDailyCount"`
	DatumMonthlyCount int64 `json:"datumMonthlyCount"`
}
