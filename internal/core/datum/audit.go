package datum

import (
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/google/uuid"
)

// AuditCounts holds the usage counters shared by stream-keyed and
// object/source-keyed audit rows. A nil counter means "not tracked at this
// granularity", which is not the same as zero.
type AuditCounts struct {
	DatumCount               *int64 `json:"datumCount,omitempty"`
	DatumHourlyCount         *int64 `json:"datumHourlyCount,omitempty"`
	DatumDailyCount          *int64 `json:"datumDailyCount,omitempty"`
	DatumMonthlyCount        *int64 `json:"datumMonthlyCount,omitempty"`
	DatumPropertyCount       *int64 `json:"datumPropertyCount,omitempty"`
	DatumPropertyUpdateCount *int64 `json:"datumPropertyUpdateCount,omitempty"`
	DatumQueryCount          *int64 `json:"datumQueryCount,omitempty"`
	FluxDataInCount          *int64 `json:"fluxDataInCount,omitempty"`
}

// AuditDatum is one audit row for a stream at one granularity.
type AuditDatum struct {
	StreamID    uuid.UUID        `json:"streamId"`
	Timestamp   time.Time        `json:"timestamp"`
	Aggregation aggregation.Kind `json:"aggregation"`
	AuditCounts
}

// AuditDatumRollup is an audit row keyed by object and source instead of
// stream ID.
type AuditDatumRollup struct {
	Kind        ObjectKind       `json:"kind"`
	ObjectID    int64            `json:"objectId"`
	SourceID    string           `json:"sourceId"`
	Timestamp   time.Time        `json:"timestamp"`
	Aggregation aggregation.Kind `json:"aggregation"`
	AuditCounts
}

// StaleAuditDatum marks an audit bucket that must be recomputed.
type StaleAuditDatum struct {
	StreamID  uuid.UUID        `json:"streamId"`
	Timestamp time.Time        `json:"timestamp"`
	Kind      aggregation.Kind `json:"kind"`
	Created   time.Time        `json:"created"`
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Value dereferences c, treating nil as zero.
func Value(c *int64) int64 {
	if c == nil {
		return 0
	}
	return *c
}
