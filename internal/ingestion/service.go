// Package ingestion stores posted datum and records the side effects every
// write has: the hour bucket becomes stale and the datum is audited.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/aevon-datum/internal/api/v1"
	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	coreerrors "github.com/aevon-lab/aevon-datum/internal/core/errors"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/coder/quartz"
	"github.com/google/uuid"
)

// StreamResolver finds or creates the stream a datum belongs to.
type StreamResolver interface {
	EnsureStream(ctx context.Context, want *datum.ObjectDatumStreamMetadata) (*datum.ObjectDatumStreamMetadata, error)
}

// Store is the write access ingestion needs.
type Store interface {
	Store(ctx context.Context, d *datum.Datum) error
	Delete(ctx context.Context, pk datum.DatumPK) (bool, error)
	MarkAggregateStale(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, ts time.Time) (bool, error)
}

// Auditor counts ingested datum.
type Auditor interface {
	AddDatumIngest(ctx context.Context, meta *datum.ObjectDatumStreamMetadata, datumCount, propertyCount int64) error
	AddPropertyUpdates(ctx context.Context, meta *datum.ObjectDatumStreamMetadata, count int64) error
}

type Service struct {
	streams StreamResolver
	store   Store
	audit   Auditor
	clock   quartz.Clock
}

// NewService creates an ingestion service. audit may be nil; a nil clock
// uses the real clock.
func NewService(streams StreamResolver, store Store, audit Auditor, clock quartz.Clock) *Service {
	if streams == nil {
		panic("ingestion: stream resolver must not be nil")
	}
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Service{streams: streams, store: store, audit: audit, clock: clock}
}

// Ingest stores d as a new datum. A datum already stored for the same
// stream and timestamp is never merged; storage.ErrDuplicate is returned.
func (s *Service) Ingest(ctx context.Context, d *v1.GeneralDatum) (*datum.Datum, error) {
	meta, rec, err := s.prepare(ctx, d)
	if err != nil {
		return nil, err
	}
	if err := s.store.Store(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("datum %s: %w", rec.DatumPK, err)
		}
		return nil, fmt.Errorf("failed to store datum: %w", err)
	}
	if err := s.markStale(ctx, meta, rec); err != nil {
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.AddDatumIngest(ctx, meta, 1, int64(d.Samples.PropertyCount())); err != nil {
			slog.Warn("[Ingestion] Failed to audit datum", "stream_id", meta.StreamID, "error", err)
		}
	}
	slog.Debug("[Ingestion] Stored datum",
		"stream_id", meta.StreamID,
		"object_id", meta.ObjectID,
		"source_id", meta.SourceID,
		"timestamp", rec.Timestamp,
	)
	return rec, nil
}

// Supersede replaces the datum stored for d's stream and timestamp, or
// stores it when none exists. A replacement is audited as property updates.
func (s *Service) Supersede(ctx context.Context, d *v1.GeneralDatum) (*datum.Datum, error) {
	meta, rec, err := s.prepare(ctx, d)
	if err != nil {
		return nil, err
	}
	replaced, err := s.store.Delete(ctx, rec.DatumPK)
	if err != nil {
		return nil, fmt.Errorf("failed to delete superseded datum: %w", err)
	}
	if err := s.store.Store(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store datum: %w", err)
	}
	if err := s.markStale(ctx, meta, rec); err != nil {
		return nil, err
	}

	if s.audit != nil {
		count := int64(d.Samples.PropertyCount())
		if replaced {
			err = s.audit.AddPropertyUpdates(ctx, meta, count)
		} else {
			err = s.audit.AddDatumIngest(ctx, meta, 1, count)
		}
		if err != nil {
			slog.Warn("[Ingestion] Failed to audit datum", "stream_id", meta.StreamID, "error", err)
		}
	}
	slog.Info("[Ingestion] Superseded datum", "stream_id", meta.StreamID, "timestamp", rec.Timestamp, "replaced", replaced)
	return rec, nil
}

func (s *Service) prepare(ctx context.Context, d *v1.GeneralDatum) (*datum.ObjectDatumStreamMetadata, *datum.Datum, error) {
	if d == nil {
		return nil, nil, coreerrors.InvalidArgumentf("datum is required")
	}
	if err := d.Validate(); err != nil {
		return nil, nil, coreerrors.InvalidArgumentf("%v", err)
	}
	meta, err := s.streams.EnsureStream(ctx, d.Metadata())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve stream: %w", err)
	}
	return meta, &datum.Datum{
		DatumPK:    datum.DatumPK{StreamID: meta.StreamID, Timestamp: d.Timestamp},
		Received:   s.clock.Now(),
		Properties: d.Samples.Properties(meta),
	}, nil
}

func (s *Service) markStale(ctx context.Context, meta *datum.ObjectDatumStreamMetadata, rec *datum.Datum) error {
	hour := aggregation.Hour.Floor(rec.Timestamp, meta.Location())
	if _, err := s.store.MarkAggregateStale(ctx, meta.StreamID, aggregation.Hour, hour); err != nil {
		return fmt.Errorf("failed to mark hour stale: %w", err)
	}
	return nil
}
