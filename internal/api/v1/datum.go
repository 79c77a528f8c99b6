package v1

import (
	"fmt"
	"sort"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/shopspring/decimal"
)

// GeneralDatum is one set of named samples posted by an object for a source.
// Samples are keyed by property name; the ingestion service maps them onto
// the positional slots of the stream's metadata.
type GeneralDatum struct {
	// Kind defaults to Node.
	Kind     datum.ObjectKind `json:"kind,omitempty"`
	ObjectID int64            `json:"objectId"`
	SourceID string           `json:"sourceId"`

	// Timestamp is when the samples were taken (client-side clock).
	Timestamp time.Time `json:"created"`

	Samples Samples `json:"samples"`
}

// Samples holds named property values.
type Samples struct {
	Instantaneous map[string]decimal.Decimal `json:"i,omitempty"`
	Accumulating  map[string]decimal.Decimal `json:"a,omitempty"`
	Status        map[string]string          `json:"s,omitempty"`
	Tags          []string                   `json:"t,omitempty"`
}

// Validate ensures the datum identifies its stream and carries samples.
func (d *GeneralDatum) Validate() error {
	if d.Kind != "" && d.Kind != datum.Node && d.Kind != datum.Location {
		return fmt.Errorf("unsupported kind: %s", d.Kind)
	}
	if d.SourceID == "" {
		return fmt.Errorf("sourceId is required")
	}
	if d.Timestamp.IsZero() {
		return fmt.Errorf("created is required")
	}
	if d.Samples.IsEmpty() {
		return fmt.Errorf("samples are required")
	}
	for name := range d.Samples.Instantaneous {
		if _, ok := d.Samples.Accumulating[name]; ok {
			return fmt.Errorf("property %q is both instantaneous and accumulating", name)
		}
	}
	return nil
}

// IsEmpty reports whether no sample or tag is present.
func (s *Samples) IsEmpty() bool {
	return len(s.Instantaneous) == 0 && len(s.Accumulating) == 0 && len(s.Status) == 0 && len(s.Tags) == 0
}

// PropertyCount is the number of named values, tags excluded.
func (s *Samples) PropertyCount() int {
	return len(s.Instantaneous) + len(s.Accumulating) + len(s.Status)
}

// Metadata returns the stream identity and property names the samples need,
// names sorted within each slot.
func (d *GeneralDatum) Metadata() *datum.ObjectDatumStreamMetadata {
	return &datum.ObjectDatumStreamMetadata{
		Kind:               d.Kind.OrDefault(),
		ObjectID:           d.ObjectID,
		SourceID:           d.SourceID,
		InstantaneousNames: sortedKeys(d.Samples.Instantaneous),
		AccumulatingNames:  sortedKeys(d.Samples.Accumulating),
		StatusNames:        sortedKeys(d.Samples.Status),
	}
}

// Properties lays the samples out in meta's slot order. Each slot ends at
// its last named value; names missing before that read as zero, or empty
// for status. A slot with no values is absent.
func (s *Samples) Properties(meta *datum.ObjectDatumStreamMetadata) datum.Properties {
	props := datum.Properties{
		Instantaneous: positional(meta.InstantaneousNames, s.Instantaneous),
		Accumulating:  positional(meta.AccumulatingNames, s.Accumulating),
		Status:        positional(meta.StatusNames, s.Status),
	}
	if len(s.Tags) > 0 {
		props.Tags = append([]string(nil), s.Tags...)
	}
	return props
}

func positional[V any](names []string, values map[string]V) []V {
	last := -1
	for i, n := range names {
		if _, ok := values[n]; ok {
			last = i
		}
	}
	if last < 0 {
		return nil
	}
	out := make([]V, last+1)
	for i := 0; i <= last; i++ {
		if v, ok := values[names[i]]; ok {
			out[i] = v
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
