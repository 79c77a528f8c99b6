package storage

import (
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
)

// FilterResults is one page of query results. TotalResults is nil unless a
// total count was requested.
type FilterResults[T any] struct {
	Results             []T
	TotalResults        *int64
	StartingOffset      int64
	ReturnedResultCount int
}

// NewFilterResults wraps a page of results.
func NewFilterResults[T any](results []T, total *int64, offset int64) *FilterResults[T] {
	return &FilterResults[T]{
		Results:             results,
		TotalResults:        total,
		StartingOffset:      offset,
		ReturnedResultCount: len(results),
	}
}

// StreamProcessor receives streamed results. Start is called once with the
// total count (nil unless requested), then Handle for each result in order,
// then Finish.
type StreamProcessor[T any] interface {
	Start(totalResults *int64) error
	Handle(result T) error
	Finish() error
}

type objectSource struct {
	objectID int64
	sourceID string
}

// ObjectDatumStreamFilterResults is a page of results indexed by the
// metadata of the streams they belong to.
type ObjectDatumStreamFilterResults[T any] struct {
	FilterResults[T]
	streamIDs []uuid.UUID
	byStream  map[uuid.UUID]*datum.ObjectDatumStreamMetadata
	bySource  map[objectSource]*datum.ObjectDatumStreamMetadata
}

// NewObjectDatumStreamFilterResults indexes metas. Duplicate stream IDs keep
// the first metadata seen.
func NewObjectDatumStreamFilterResults[T any](page *FilterResults[T], metas []*datum.ObjectDatumStreamMetadata) *ObjectDatumStreamFilterResults[T] {
	out := &ObjectDatumStreamFilterResults[T]{
		byStream: make(map[uuid.UUID]*datum.ObjectDatumStreamMetadata, len(metas)),
		bySource: make(map[objectSource]*datum.ObjectDatumStreamMetadata, len(metas)),
	}
	if page != nil {
		out.FilterResults = *page
	}
	for _, m := range metas {
		if m == nil {
			continue
		}
		if _, ok := out.byStream[m.StreamID]; ok {
			continue
		}
		out.streamIDs = append(out.streamIDs, m.StreamID)
		out.byStream[m.StreamID] = m
		out.bySource[objectSource{m.ObjectID, m.SourceID}] = m
	}
	return out
}

// MetadataStreamIDs returns the stream IDs with metadata, in the order given.
func (r *ObjectDatumStreamFilterResults[T]) MetadataStreamIDs() []uuid.UUID {
	return r.streamIDs
}

// MetadataForStreamID returns nil for unknown streams.
func (r *ObjectDatumStreamFilterResults[T]) MetadataForStreamID(id uuid.UUID) *datum.ObjectDatumStreamMetadata {
	return r.byStream[id]
}

// MetadataForObjectSource returns nil when no stream has that object and
// source.
func (r *ObjectDatumStreamFilterResults[T]) MetadataForObjectSource(objectID int64, sourceID string) *datum.ObjectDatumStreamMetadata {
	return r.bySource[objectSource{objectID, sourceID}]
}
