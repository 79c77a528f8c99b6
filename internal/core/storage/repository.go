package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
)

// ErrDuplicate is returned when a record with the same unique key already
// exists. Datum are never merged.
var ErrDuplicate = errors.New("record already exists")

// DatumStore reads and writes raw datum and aggregate rows.
type DatumStore interface {
	// Store inserts d. Returns ErrDuplicate when (stream, timestamp) exists.
	Store(ctx context.Context, d *datum.Datum) error
	Delete(ctx context.Context, pk datum.DatumPK) (bool, error)

	// FindFiltered returns raw datum ordered by stream then time unless the
	// criteria carries sorts. Only stream, object, source, user, date range,
	// local date range, most-recent and pagination capabilities apply.
	FindFiltered(ctx context.Context, c *criteria.DatumCriteria) (*FilterResults[datum.Datum], error)

	// FindFilteredStream hands each matching datum to p on the calling
	// goroutine, in result order. A processor error aborts the stream.
	FindFilteredStream(ctx context.Context, c *criteria.DatumCriteria, p StreamProcessor[datum.Datum]) error

	// FindAggregateFiltered returns aggregate rows of c.Aggregation().
	FindAggregateFiltered(ctx context.Context, c *criteria.DatumCriteria) (*FilterResults[datum.AggregateDatum], error)

	// StoreAggregate upserts a by (stream, timestamp, aggregation).
	StoreAggregate(ctx context.Context, a *datum.AggregateDatum) error
	DeleteAggregate(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, ts time.Time) (bool, error)
}

// MaintenanceStore manages the stale aggregate queue and bulk maintenance.
type MaintenanceStore interface {
	// MarkDatumAggregatesStale inserts stale rows for every bucket holding
	// raw datum within the criteria's date range, at Hour and at each stale
	// tracked level finer than c.Aggregation(). Re-marking is idempotent;
	// returns the number of rows newly inserted.
	MarkDatumAggregatesStale(ctx context.Context, c *criteria.DatumCriteria) (int, error)
	// MarkAggregateStale marks one bucket, reporting whether the marker is new.
	MarkAggregateStale(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, ts time.Time) (bool, error)

	// FindStaleAggregateDatum pages stale rows ordered by created, then
	// stream, timestamp and kind.
	FindStaleAggregateDatum(ctx context.Context, c *criteria.DatumCriteria) (*FilterResults[datum.StaleAggregateDatum], error)
	DeleteStaleAggregateDatum(ctx context.Context, s datum.StaleAggregateDatum) (bool, error)

	CountDatumRecords(ctx context.Context, c *criteria.DatumCriteria) (*datum.DatumRecordCounts, error)

	// DeleteFiltered deletes raw datum, aggregates and stale markers matching
	// c and returns the number of raw datum deleted.
	DeleteFiltered(ctx context.Context, c *criteria.DatumCriteria) (int64, error)

	// DeleteForIDs deletes the rows named by fully specified ids on streams
	// owned by userID. Partially specified ids are ignored. Returns the ids
	// actually deleted.
	DeleteForIDs(ctx context.Context, userID int64, ids []datum.ObjectDatumID) ([]datum.ObjectDatumID, error)
}

// AuxiliaryStore manages out-of-band datum records.
type AuxiliaryStore interface {
	// StoreAuxiliary upserts a by primary key.
	StoreAuxiliary(ctx context.Context, a *datum.DatumAuxiliary) error
	// GetAuxiliary returns nil when absent.
	GetAuxiliary(ctx context.Context, pk datum.DatumAuxiliaryPK) (*datum.DatumAuxiliary, error)
	// MoveAuxiliary relocates the record at from to to, keeping its payload.
	// Returns false when from does not exist.
	MoveAuxiliary(ctx context.Context, from, to datum.DatumAuxiliaryPK) (bool, error)
	DeleteAuxiliary(ctx context.Context, pk datum.DatumAuxiliaryPK) (bool, error)
	FindAuxiliaryFiltered(ctx context.Context, c *criteria.DatumCriteria) (*FilterResults[datum.DatumAuxiliary], error)
}

// AuditStore persists audit counters and their stale queue.
type AuditStore interface {
	// AddAuditCounts increments the Hour audit row at hour by the non-nil
	// counters in counts, creating the row when needed.
	AddAuditCounts(ctx context.Context, streamID uuid.UUID, hour time.Time, counts datum.AuditCounts) error
	// StoreAuditDatum upserts a by (stream, timestamp, aggregation).
	StoreAuditDatum(ctx context.Context, a *datum.AuditDatum) error
	// FindAuditDatumFiltered returns rows of c.Aggregation(), Hour by default.
	FindAuditDatumFiltered(ctx context.Context, c *criteria.AuditCriteria) (*FilterResults[datum.AuditDatum], error)
	// FindAccumulativeAuditDatumFiltered returns RunningTotal rows. With
	// most-recent set only the latest row per stream is returned.
	FindAccumulativeAuditDatumFiltered(ctx context.Context, c *criteria.AuditCriteria) (*FilterResults[datum.AuditDatum], error)

	MarkAuditStale(ctx context.Context, streamID uuid.UUID, ts time.Time, kind aggregation.Kind) (bool, error)
	// FindStaleAuditDatum returns up to max stale rows of kind (any kind when
	// unset) ordered by created.
	FindStaleAuditDatum(ctx context.Context, kind aggregation.Kind, max int) ([]datum.StaleAuditDatum, error)
	DeleteStaleAuditDatum(ctx context.Context, s datum.StaleAuditDatum) (bool, error)
}

// MetadataStore persists stream identity and property names.
type MetadataStore interface {
	// CreateStreamMetadata inserts m. Returns ErrDuplicate when the stream ID
	// or its (kind, object, source) is already taken.
	CreateStreamMetadata(ctx context.Context, m *datum.ObjectDatumStreamMetadata) error
	// FindStreamMetadata returns nil when nothing matches.
	FindStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) (*datum.ObjectDatumStreamMetadata, error)
	FindDatumStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]*datum.ObjectDatumStreamMetadata, error)
	FindDatumStreamMetadataIDs(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]datum.ObjectDatumStreamMetadataID, error)
	// UpdateIDAttributes relabels a stream; nil values are left unchanged.
	UpdateIDAttributes(ctx context.Context, kind datum.ObjectKind, streamID uuid.UUID, objectID *int64, sourceID *string) (bool, error)
	ReplaceJSONMeta(ctx context.Context, kind datum.ObjectKind, streamID uuid.UUID, meta json.RawMessage) (bool, error)
	UpdatePropertyNames(ctx context.Context, streamID uuid.UUID, instantaneous, accumulating, status []string) error
}

// Store is the full persistence surface.
type Store interface {
	DatumStore
	MaintenanceStore
	AuxiliaryStore
	AuditStore
	MetadataStore
}
