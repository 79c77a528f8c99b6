package datum

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuxiliaryKind classifies an out-of-band datum record.
type AuxiliaryKind string

const (
	// Reset marks an accumulating counter reset, e.g. a meter replacement.
	Reset AuxiliaryKind = "Reset"
)

// DatumAuxiliaryPK identifies one auxiliary record.
type DatumAuxiliaryPK struct {
	StreamID  uuid.UUID     `json:"streamId"`
	Timestamp time.Time     `json:"timestamp"`
	Kind      AuxiliaryKind `json:"kind"`
}

// DatumAuxiliary injects a correction into a stream's accumulating-property
// accounting. SamplesFinal holds the readings just before the event and
// SamplesStart those just after it; both align with the stream's property
// names.
type DatumAuxiliary struct {
	DatumAuxiliaryPK
	Updated      time.Time       `json:"updated"`
	SamplesFinal *Properties     `json:"final,omitempty"`
	SamplesStart *Properties     `json:"start,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Metadata     json.RawMessage `json:"meta,omitempty"`
}

// Typed expands a reset into the pair of calculation elements that straddle
// it. Other kinds produce nothing.
func (a DatumAuxiliary) Typed() []TypedDatum {
	if a.Kind != Reset {
		return nil
	}
	var out []TypedDatum
	if a.SamplesFinal != nil {
		out = append(out, TypedDatum{
			Datum: Datum{DatumPK: DatumPK{StreamID: a.StreamID, Timestamp: a.Timestamp}, Properties: *a.SamplesFinal.Clone()},
			Type:  RecordResetFinal,
		})
	}
	if a.SamplesStart != nil {
		out = append(out, TypedDatum{
			Datum: Datum{DatumPK: DatumPK{StreamID: a.StreamID, Timestamp: a.Timestamp}, Properties: *a.SamplesStart.Clone()},
			Type:  RecordResetStart,
		})
	}
	return out
}
