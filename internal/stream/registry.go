package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	coreerrors "github.com/aevon-lab/aevon-datum/internal/core/errors"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheCapacity is the default number of streams kept in memory.
const DefaultCacheCapacity = 10000

// identity is the (kind, object, source) triple a stream ID stands for.
type identity struct {
	kind     datum.ObjectKind
	objectID int64
	sourceID string
}

func identityOf(m *datum.ObjectDatumStreamMetadata) identity {
	return identity{m.Kind.OrDefault(), m.ObjectID, m.SourceID}
}

// Registry resolves stream metadata through an LRU cache in front of a
// metadata store. Concurrent misses for the same stream share one store
// lookup.
type Registry struct {
	store storage.MetadataStore
	cache *lruCache
	index *xsync.Map[identity, uuid.UUID]
	group singleflight.Group

	// mu serializes property-name merges so concurrent writers do not drop
	// each other's new names.
	mu sync.Mutex
}

// NewRegistry creates a registry caching up to capacity streams.
func NewRegistry(store storage.MetadataStore, capacity int) *Registry {
	return &Registry{
		store: store,
		cache: newLRUCache(capacity),
		index: xsync.NewMap[identity, uuid.UUID](),
	}
}

func (r *Registry) remember(m *datum.ObjectDatumStreamMetadata) {
	if evicted := r.cache.Put(m); evicted != nil {
		r.unindex(evicted)
	}
	r.index.Store(identityOf(m), m.StreamID)
}

// unindex drops the identity of m unless it already points at another stream.
func (r *Registry) unindex(m *datum.ObjectDatumStreamMetadata) {
	r.index.Compute(identityOf(m), func(old uuid.UUID, loaded bool) (uuid.UUID, xsync.ComputeOp) {
		if loaded && old == m.StreamID {
			return old, xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
}

func (r *Registry) forget(streamID uuid.UUID) {
	if m := r.cache.Invalidate(streamID); m != nil {
		r.unindex(m)
	}
}

// load runs find once per key among concurrent callers and caches the result.
func (r *Registry) load(key string, find func() (*datum.ObjectDatumStreamMetadata, error)) (*datum.ObjectDatumStreamMetadata, error) {
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		m, err := find()
		if err != nil || m == nil {
			return nil, err
		}
		r.remember(m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	m, _ := v.(*datum.ObjectDatumStreamMetadata)
	return m.Clone(), nil
}

// Metadata returns the metadata of a stream, or nil when it does not exist.
func (r *Registry) Metadata(ctx context.Context, streamID uuid.UUID) (*datum.ObjectDatumStreamMetadata, error) {
	if m := r.cache.Get(streamID); m != nil {
		return m, nil
	}
	return r.load("id:"+streamID.String(), func() (*datum.ObjectDatumStreamMetadata, error) {
		c := &criteria.StreamMetadataCriteria{}
		c.SetStreamID(streamID)
		return r.store.FindStreamMetadata(ctx, c)
	})
}

// Lookup returns the stream of an object and source, or nil when none exists.
func (r *Registry) Lookup(ctx context.Context, kind datum.ObjectKind, objectID int64, sourceID string) (*datum.ObjectDatumStreamMetadata, error) {
	key := identity{kind.OrDefault(), objectID, sourceID}
	if id, ok := r.index.Load(key); ok {
		if m := r.cache.Get(id); m != nil {
			return m, nil
		}
	}
	return r.load(fmt.Sprintf("obj:%s/%d/%s", key.kind, objectID, sourceID), func() (*datum.ObjectDatumStreamMetadata, error) {
		c := &criteria.StreamMetadataCriteria{}
		c.SetObjectKind(key.kind)
		if key.kind == datum.Location {
			c.SetLocationID(objectID)
		} else {
			c.SetNodeID(objectID)
		}
		c.SetSourceID(sourceID)
		return r.store.FindStreamMetadata(ctx, c)
	})
}

// FindStreamMetadata returns the first stream matching c, or nil.
func (r *Registry) FindStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) (*datum.ObjectDatumStreamMetadata, error) {
	m, err := r.store.FindStreamMetadata(ctx, c)
	if err != nil || m == nil {
		return nil, err
	}
	r.remember(m)
	return m, nil
}

// FindDatumStreamMetadata returns every stream matching c. Node is the
// object kind unless c says otherwise.
func (r *Registry) FindDatumStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]*datum.ObjectDatumStreamMetadata, error) {
	metas, err := r.store.FindDatumStreamMetadata(ctx, c)
	if err != nil {
		return nil, err
	}
	for _, m := range metas {
		r.remember(m)
	}
	return metas, nil
}

func (r *Registry) FindDatumStreamMetadataIDs(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]datum.ObjectDatumStreamMetadataID, error) {
	return r.store.FindDatumStreamMetadataIDs(ctx, c)
}

// UpdateIDAttributes relabels a stream's object and/or source without
// touching its data. A nil value is left unchanged; at least one is required.
func (r *Registry) UpdateIDAttributes(ctx context.Context, kind datum.ObjectKind, streamID uuid.UUID, objectID *int64, sourceID *string) (bool, error) {
	if kind == "" {
		return false, coreerrors.InvalidArgumentf("object kind required")
	}
	if streamID == uuid.Nil {
		return false, coreerrors.InvalidArgumentf("stream ID required")
	}
	if objectID == nil && sourceID == nil {
		return false, coreerrors.InvalidArgumentf("object ID or source ID required")
	}

	ok, err := r.store.UpdateIDAttributes(ctx, kind, streamID, objectID, sourceID)
	if err != nil {
		return false, err
	}
	if ok {
		r.forget(streamID)
		slog.Info("[Stream] Updated stream identity", "stream_id", streamID, "kind", kind)
	}
	return ok, nil
}

// ReplaceJSONMeta replaces the stream's JSON metadata document.
func (r *Registry) ReplaceJSONMeta(ctx context.Context, kind datum.ObjectKind, streamID uuid.UUID, meta json.RawMessage) (bool, error) {
	if kind == "" {
		return false, coreerrors.InvalidArgumentf("object kind required")
	}
	if streamID == uuid.Nil {
		return false, coreerrors.InvalidArgumentf("stream ID required")
	}
	if len(meta) > 0 && !json.Valid(meta) {
		return false, coreerrors.InvalidArgumentf("metadata is not valid JSON")
	}

	ok, err := r.store.ReplaceJSONMeta(ctx, kind, streamID, meta)
	if err != nil {
		return false, err
	}
	if ok {
		r.forget(streamID)
	}
	return ok, nil
}

// EnsureStream returns the stream for want's kind, object and source,
// creating it with a new ID when absent. Property names in want that the
// stream does not know yet are appended to its name lists.
func (r *Registry) EnsureStream(ctx context.Context, want *datum.ObjectDatumStreamMetadata) (*datum.ObjectDatumStreamMetadata, error) {
	if want == nil || want.SourceID == "" {
		return nil, coreerrors.InvalidArgumentf("source ID required")
	}

	m, err := r.Lookup(ctx, want.Kind, want.ObjectID, want.SourceID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m, err = r.create(ctx, want)
		if err != nil {
			return nil, err
		}
	}
	return r.mergeNames(ctx, m, want)
}

func (r *Registry) create(ctx context.Context, want *datum.ObjectDatumStreamMetadata) (*datum.ObjectDatumStreamMetadata, error) {
	m := want.Clone()
	m.StreamID = uuid.New()
	m.Kind = want.Kind.OrDefault()

	err := r.store.CreateStreamMetadata(ctx, m)
	if errors.Is(err, storage.ErrDuplicate) {
		// Another writer created it first.
		existing, err := r.Lookup(ctx, m.Kind, m.ObjectID, m.SourceID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("stream %s/%d/%s reported duplicate but not found", m.Kind, m.ObjectID, m.SourceID)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	r.remember(m)
	slog.Info("[Stream] Created stream",
		"stream_id", m.StreamID,
		"kind", m.Kind,
		"object_id", m.ObjectID,
		"source_id", m.SourceID,
	)
	return m.Clone(), nil
}

func (r *Registry) mergeNames(ctx context.Context, m, want *datum.ObjectDatumStreamMetadata) (*datum.ObjectDatumStreamMetadata, error) {
	if !m.Clone().MergeNames(want.InstantaneousNames, want.AccumulatingNames, want.StatusNames) {
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-read under the lock; another merge may have landed.
	r.forget(m.StreamID)
	current, err := r.Metadata(ctx, m.StreamID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("stream %s disappeared during name merge", m.StreamID)
	}
	if !current.MergeNames(want.InstantaneousNames, want.AccumulatingNames, want.StatusNames) {
		return current, nil
	}
	if err := r.store.UpdatePropertyNames(ctx, current.StreamID,
		current.InstantaneousNames, current.AccumulatingNames, current.StatusNames); err != nil {
		return nil, fmt.Errorf("failed to update property names: %w", err)
	}
	r.remember(current)

	slog.Debug("[Stream] Merged property names", "stream_id", current.StreamID)
	return current.Clone(), nil
}
