package datum

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// ObjectKind identifies what owns a stream.
type ObjectKind string

const (
	Node     ObjectKind = "n"
	Location ObjectKind = "l"
)

// ParseObjectKind accepts the short key or the full name.
func ParseObjectKind(s string) (ObjectKind, error) {
	switch s {
	case "n", "Node", "node":
		return Node, nil
	case "l", "Location", "location":
		return Location, nil
	default:
		return "", fmt.Errorf("unsupported object kind %q", s)
	}
}

// OrDefault returns Node when k is unset.
func (k ObjectKind) OrDefault() ObjectKind {
	if k == "" {
		return Node
	}
	return k
}

func (k ObjectKind) String() string {
	switch k {
	case Node:
		return "Node"
	case Location:
		return "Location"
	default:
		return string(k)
	}
}

// ObjectDatumStreamMetadataID is the ID-only projection of stream metadata.
type ObjectDatumStreamMetadataID struct {
	StreamID uuid.UUID  `json:"streamId"`
	Kind     ObjectKind `json:"kind"`
	ObjectID int64      `json:"objectId"`
	SourceID string     `json:"sourceId"`
}

// ObjectDatumStreamMetadata maps a stream ID to its owner and the names of
// each positional property slot.
type ObjectDatumStreamMetadata struct {
	StreamID           uuid.UUID       `json:"streamId"`
	Kind               ObjectKind      `json:"kind"`
	ObjectID           int64           `json:"objectId"`
	SourceID           string          `json:"sourceId"`
	// UserID owns the stream's object; zero when ownership is not tracked.
	UserID             int64           `json:"userId,omitempty"`
	TimeZoneID         string          `json:"zone,omitempty"`
	InstantaneousNames []string        `json:"i,omitempty"`
	AccumulatingNames  []string        `json:"a,omitempty"`
	StatusNames        []string        `json:"s,omitempty"`
	JSONMeta           json.RawMessage `json:"meta,omitempty"`
}

// ID returns the ID-only projection.
func (m *ObjectDatumStreamMetadata) ID() ObjectDatumStreamMetadataID {
	return ObjectDatumStreamMetadataID{StreamID: m.StreamID, Kind: m.Kind, ObjectID: m.ObjectID, SourceID: m.SourceID}
}

// PropertyNames returns the names for one slot. Tags have no names.
func (m *ObjectDatumStreamMetadata) PropertyNames(t PropertyType) []string {
	if m == nil {
		return nil
	}
	switch t {
	case Instantaneous:
		return m.InstantaneousNames
	case Accumulating:
		return m.AccumulatingNames
	case Status:
		return m.StatusNames
	default:
		return nil
	}
}

// PropertyIndex returns the position of name within slot t, or -1.
func (m *ObjectDatumStreamMetadata) PropertyIndex(t PropertyType, name string) int {
	return slices.Index(m.PropertyNames(t), name)
}

// Location returns the stream's time zone, UTC when unset or unknown.
func (m *ObjectDatumStreamMetadata) Location() *time.Location {
	if m == nil || m.TimeZoneID == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(m.TimeZoneID); ok {
		return loc
	}
	loc, err := time.LoadLocation(m.TimeZoneID)
	if err != nil {
		loc = time.UTC
	}
	locations.Store(m.TimeZoneID, loc)
	return loc
}

// locations caches resolved zones by ID; unknown IDs map to UTC.
var locations = xsync.NewMap[string, *time.Location]()

// Clone returns a deep copy.
func (m *ObjectDatumStreamMetadata) Clone() *ObjectDatumStreamMetadata {
	if m == nil {
		return nil
	}
	c := *m
	c.InstantaneousNames = cloneSlice(m.InstantaneousNames)
	c.AccumulatingNames = cloneSlice(m.AccumulatingNames)
	c.StatusNames = cloneSlice(m.StatusNames)
	c.JSONMeta = cloneSlice(m.JSONMeta)
	return &c
}

// MergeNames appends any names not already present in each slot and reports
// whether anything changed. Existing positions never move.
func (m *ObjectDatumStreamMetadata) MergeNames(instantaneous, accumulating, status []string) bool {
	var changed bool
	merge := func(dst *[]string, names []string) {
		for _, n := range names {
			if !slices.Contains(*dst, n) {
				*dst = append(*dst, n)
				changed = true
			}
		}
	}
	merge(&m.InstantaneousNames, instantaneous)
	merge(&m.AccumulatingNames, accumulating)
	merge(&m.StatusNames, status)
	return changed
}

// ObjectDatumID identifies one datum or aggregate row by stream or by object
// and source.
type ObjectDatumID struct {
	Kind        ObjectKind       `json:"kind"`
	StreamID    uuid.UUID        `json:"streamId"`
	ObjectID    *int64           `json:"objectId,omitempty"`
	SourceID    string           `json:"sourceId,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Aggregation aggregation.Kind `json:"aggregation"`
}

// IsFullySpecified reports whether the stream ID, timestamp and aggregation
// are all set. Only fully specified IDs may be used for deletion.
func (id ObjectDatumID) IsFullySpecified() bool {
	return id.StreamID != uuid.Nil && !id.Timestamp.IsZero() && id.Aggregation.IsSet()
}
