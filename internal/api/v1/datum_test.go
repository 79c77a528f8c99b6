package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/shopspring/decimal"
)

func TestGeneralDatum_Validation(t *testing.T) {
	now := time.Now()
	samples := Samples{Instantaneous: map[string]decimal.Decimal{"watts": decimal.NewFromInt(5)}}

	tests := []struct {
		name    string
		d       GeneralDatum
		wantErr bool
	}{
		{
			name: "valid node datum",
			d:    GeneralDatum{ObjectID: 1, SourceID: "meter/1", Timestamp: now, Samples: samples},
		},
		{
			name: "valid location datum",
			d:    GeneralDatum{Kind: datum.Location, ObjectID: 7, SourceID: "weather", Timestamp: now, Samples: samples},
		},
		{
			name:    "unknown kind",
			d:       GeneralDatum{Kind: "Planet", SourceID: "meter/1", Timestamp: now, Samples: samples},
			wantErr: true,
		},
		{
			name:    "missing source",
			d:       GeneralDatum{ObjectID: 1, Timestamp: now, Samples: samples},
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			d:       GeneralDatum{ObjectID: 1, SourceID: "meter/1", Samples: samples},
			wantErr: true,
		},
		{
			name:    "no samples",
			d:       GeneralDatum{ObjectID: 1, SourceID: "meter/1", Timestamp: now},
			wantErr: true,
		},
		{
			name: "name in two slots",
			d: GeneralDatum{ObjectID: 1, SourceID: "meter/1", Timestamp: now, Samples: Samples{
				Instantaneous: map[string]decimal.Decimal{"watts": decimal.NewFromInt(5)},
				Accumulating:  map[string]decimal.Decimal{"watts": decimal.NewFromInt(5)},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeneralDatum_JSONDecoding(t *testing.T) {
	body := `{
		"objectId": 1,
		"sourceId": "meter/1",
		"created": "2021-03-17T14:20:00Z",
		"samples": {"i": {"watts": 230.5}, "a": {"wattHours": "1010"}, "s": {"mode": "auto"}, "t": ["solar"]}
	}`

	var d GeneralDatum
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !d.Samples.Instantaneous["watts"].Equal(decimal.RequireFromString("230.5")) {
		t.Errorf("watts = %s", d.Samples.Instantaneous["watts"])
	}
	if d.Samples.PropertyCount() != 3 {
		t.Errorf("PropertyCount() = %d, want 3", d.Samples.PropertyCount())
	}

	meta := d.Metadata()
	if meta.Kind != datum.Node {
		t.Errorf("Kind = %s, want Node", meta.Kind)
	}
	if len(meta.AccumulatingNames) != 1 || meta.AccumulatingNames[0] != "wattHours" {
		t.Errorf("AccumulatingNames = %v", meta.AccumulatingNames)
	}
}

func TestSamples_Properties(t *testing.T) {
	meta := &datum.ObjectDatumStreamMetadata{
		InstantaneousNames: []string{"amps", "volts", "watts"},
		AccumulatingNames:  []string{"wattHours"},
		StatusNames:        []string{"mode"},
	}
	s := Samples{
		Instantaneous: map[string]decimal.Decimal{"volts": decimal.NewFromInt(230)},
		Tags:          []string{"solar"},
	}

	props := s.Properties(meta)
	if len(props.Instantaneous) != 2 {
		t.Fatalf("Instantaneous = %v, want 2 slots", props.Instantaneous)
	}
	if !props.Instantaneous[0].IsZero() || !props.Instantaneous[1].Equal(decimal.NewFromInt(230)) {
		t.Errorf("Instantaneous = %v", props.Instantaneous)
	}
	if props.Accumulating != nil {
		t.Errorf("Accumulating = %v, want absent", props.Accumulating)
	}
	if props.Status != nil {
		t.Errorf("Status = %v, want absent", props.Status)
	}
	if len(props.Tags) != 1 || props.Tags[0] != "solar" {
		t.Errorf("Tags = %v", props.Tags)
	}
}
