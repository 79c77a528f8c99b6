package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateStreamMetadata inserts m. Returns storage.ErrDuplicate when the stream
// ID or its kind, object and source are taken.
func (a *Adapter) CreateStreamMetadata(ctx context.Context, m *datum.ObjectDatumStreamMetadata) error {
	_, err := a.db.ExecContext(ctx, queryCreateStreamMetadata,
		m.StreamID,
		string(m.Kind.OrDefault()),
		m.ObjectID,
		m.SourceID,
		m.UserID,
		m.TimeZoneID,
		pq.StringArray(m.InstantaneousNames),
		pq.StringArray(m.AccumulatingNames),
		pq.StringArray(m.StatusNames),
		rawColumn(m.JSONMeta),
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create stream metadata %s: %w", m.StreamID, err)
	}
	return nil
}

func (a *Adapter) FindStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) (*datum.ObjectDatumStreamMetadata, error) {
	metas, err := a.FindDatumStreamMetadata(ctx, c)
	if err != nil || len(metas) == 0 {
		return nil, err
	}
	return metas[0], nil
}

func (a *Adapter) FindDatumStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]*datum.ObjectDatumStreamMetadata, error) {
	if c == nil {
		c = &criteria.StreamMetadataCriteria{}
	}
	f := newFilter("stream_meta").streams(c, true)
	q, args := f.list(metadataColumns, metaOrder, nil, false)
	metas, err := queryRows(ctx, a.db, q, args, scanMetadataRow)
	if err != nil {
		return nil, fmt.Errorf("find stream metadata: %w", err)
	}
	return metas, nil
}

func (a *Adapter) FindDatumStreamMetadataIDs(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]datum.ObjectDatumStreamMetadataID, error) {
	metas, err := a.FindDatumStreamMetadata(ctx, c)
	if err != nil {
		return nil, err
	}
	ids := make([]datum.ObjectDatumStreamMetadataID, 0, len(metas))
	for _, m := range metas {
		ids = append(ids, m.ID())
	}
	return ids, nil
}

func (a *Adapter) UpdateIDAttributes(ctx context.Context, kind datum.ObjectKind, streamID uuid.UUID, objectID *int64, sourceID *string) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryUpdateIDAttributes, streamID, string(kind.OrDefault()), objectID, sourceID)
	if isUniqueViolation(err) {
		return false, storage.ErrDuplicate
	}
	if err != nil {
		return false, fmt.Errorf("failed to update stream %s: %w", streamID, err)
	}
	return affected(res)
}

func (a *Adapter) ReplaceJSONMeta(ctx context.Context, kind datum.ObjectKind, streamID uuid.UUID, meta json.RawMessage) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryReplaceJSONMeta, streamID, string(kind.OrDefault()), rawColumn(meta))
	if err != nil {
		return false, fmt.Errorf("failed to replace metadata of %s: %w", streamID, err)
	}
	return affected(res)
}

func (a *Adapter) UpdatePropertyNames(ctx context.Context, streamID uuid.UUID, instantaneous, accumulating, status []string) error {
	res, err := a.db.ExecContext(ctx, queryUpdatePropertyNames, streamID,
		pq.StringArray(instantaneous), pq.StringArray(accumulating), pq.StringArray(status))
	if err != nil {
		return fmt.Errorf("failed to update property names of %s: %w", streamID, err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stream %s has no metadata", streamID)
	}
	return nil
}
