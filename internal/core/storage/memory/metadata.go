package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
)

// identityTaken reports whether another stream already uses the kind, object
// and source of m.
func (s *Store) identityTaken(m *datum.ObjectDatumStreamMetadata) bool {
	for id, o := range s.metas {
		if id != m.StreamID && o.Kind.OrDefault() == m.Kind.OrDefault() &&
			o.ObjectID == m.ObjectID && o.SourceID == m.SourceID {
			return true
		}
	}
	return false
}

func (s *Store) CreateStreamMetadata(ctx context.Context, m *datum.ObjectDatumStreamMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.metas[m.StreamID]; exists || s.identityTaken(m) {
		return storage.ErrDuplicate
	}
	c := m.Clone()
	c.Kind = c.Kind.OrDefault()
	s.metas[m.StreamID] = c
	return nil
}

func (s *Store) FindStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) (*datum.ObjectDatumStreamMetadata, error) {
	metas, err := s.FindDatumStreamMetadata(ctx, c)
	if err != nil || len(metas) == 0 {
		return nil, err
	}
	return metas[0], nil
}

func (s *Store) FindDatumStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]*datum.ObjectDatumStreamMetadata, error) {
	if c == nil {
		c = &criteria.StreamMetadataCriteria{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*datum.ObjectDatumStreamMetadata
	for id, m := range s.metas {
		if s.selectStream(c, id, true) {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *datum.ObjectDatumStreamMetadata) int {
		if c := cmp.Compare(a.ObjectID, b.ObjectID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SourceID, b.SourceID); c != 0 {
			return c
		}
		return cmp.Compare(a.StreamID.String(), b.StreamID.String())
	})
	return out, nil
}

func (s *Store) FindDatumStreamMetadataIDs(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]datum.ObjectDatumStreamMetadataID, error) {
	metas, err := s.FindDatumStreamMetadata(ctx, c)
	if err != nil {
		return nil, err
	}
	ids := make([]datum.ObjectDatumStreamMetadataID, 0, len(metas))
	for _, m := range metas {
		ids = append(ids, m.ID())
	}
	return ids, nil
}

func (s *Store) UpdateIDAttributes(ctx context.Context, kind datum.ObjectKind, streamID uuid.UUID, objectID *int64, sourceID *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.metas[streamID]
	if !exists || m.Kind.OrDefault() != kind.OrDefault() {
		return false, nil
	}
	next := m.Clone()
	if objectID != nil {
		next.ObjectID = *objectID
	}
	if sourceID != nil {
		next.SourceID = *sourceID
	}
	if s.identityTaken(next) {
		return false, storage.ErrDuplicate
	}
	s.metas[streamID] = next
	return true, nil
}

func (s *Store) ReplaceJSONMeta(ctx context.Context, kind datum.ObjectKind, streamID uuid.UUID, meta json.RawMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.metas[streamID]
	if !exists || m.Kind.OrDefault() != kind.OrDefault() {
		return false, nil
	}
	m.JSONMeta = slices.Clone(meta)
	return true, nil
}

func (s *Store) UpdatePropertyNames(ctx context.Context, streamID uuid.UUID, instantaneous, accumulating, status []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.metas[streamID]
	if !exists {
		return fmt.Errorf("stream %s has no metadata", streamID)
	}
	m.InstantaneousNames = slices.Clone(instantaneous)
	m.AccumulatingNames = slices.Clone(accumulating)
	m.StatusNames = slices.Clone(status)
	return nil
}
