package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/stretchr/testify/require"
)

const meters = `
streams:
  - kind: node
    object_id: 1
    source_id: meter/1
    time_zone: Pacific/Auckland
    accumulating: [wattHours]
    meta:
      model: EM-1
  - kind: location
    object_id: 7
    source_id: weather
    instantaneous: [temp, humidity]
`

type recordingEnsurer struct {
	seen []*datum.ObjectDatumStreamMetadata
}

func (e *recordingEnsurer) EnsureStream(ctx context.Context, want *datum.ObjectDatumStreamMetadata) (*datum.ObjectDatumStreamMetadata, error) {
	e.seen = append(e.seen, want)
	return want, nil
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meters.yaml"), []byte(meters), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	defs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	require.Equal(t, datum.Node, defs[0].Kind)
	require.Equal(t, "Pacific/Auckland", defs[0].TimeZoneID)
	require.Equal(t, []string{"wattHours"}, defs[0].AccumulatingNames)
	require.JSONEq(t, `{"model":"EM-1"}`, string(defs[0].JSONMeta))

	require.Equal(t, datum.Location, defs[1].Kind)
	require.Equal(t, []string{"temp", "humidity"}, defs[1].InstantaneousNames)
	require.Nil(t, defs[1].JSONMeta)
}

func TestLoad_MissingDirectory(t *testing.T) {
	defs, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	require.Empty(t, defs)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "bad kind", content: "streams:\n  - kind: planet\n    source_id: a\n", wantErr: "unsupported object kind"},
		{name: "missing source", content: "streams:\n  - object_id: 1\n", wantErr: "source_id is required"},
		{name: "bad yaml", content: "streams: [", wantErr: "failed to parse"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "s.yml"), []byte(tc.content), 0o644))
			_, err := Load(dir)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meters.yaml"), []byte(meters), 0o644))

	e := &recordingEnsurer{}
	n, err := Apply(context.Background(), dir, e)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "weather", e.seen[1].SourceID)
}
