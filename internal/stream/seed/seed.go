// Package seed loads stream definitions from YAML files so known streams
// exist with stable property name positions before any datum arrives.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"gopkg.in/yaml.v3"
)

// File is the layout of one seed file:
//
//	streams:
//	  - kind: node
//	    object_id: 1
//	    source_id: meter/1
//	    time_zone: Pacific/Auckland
//	    accumulating: [wattHours]
type File struct {
	Streams []Definition `yaml:"streams"`
}

// Definition describes one stream.
type Definition struct {
	Kind          string                 `yaml:"kind"`
	ObjectID      int64                  `yaml:"object_id"`
	SourceID      string                 `yaml:"source_id"`
	UserID        int64                  `yaml:"user_id"`
	TimeZone      string                 `yaml:"time_zone"`
	Instantaneous []string               `yaml:"instantaneous"`
	Accumulating  []string               `yaml:"accumulating"`
	Status        []string               `yaml:"status"`
	Meta          map[string]interface{} `yaml:"meta"`
}

// Metadata converts d into stream metadata without a stream ID.
func (d Definition) Metadata() (*datum.ObjectDatumStreamMetadata, error) {
	m := &datum.ObjectDatumStreamMetadata{
		ObjectID:           d.ObjectID,
		SourceID:           d.SourceID,
		UserID:             d.UserID,
		TimeZoneID:         d.TimeZone,
		InstantaneousNames: d.Instantaneous,
		AccumulatingNames:  d.Accumulating,
		StatusNames:        d.Status,
	}
	if d.Kind != "" {
		kind, err := datum.ParseObjectKind(d.Kind)
		if err != nil {
			return nil, err
		}
		m.Kind = kind
	}
	if strings.TrimSpace(d.SourceID) == "" {
		return nil, fmt.Errorf("source_id is required")
	}
	if d.Meta != nil {
		b, err := json.Marshal(d.Meta)
		if err != nil {
			return nil, fmt.Errorf("meta: %w", err)
		}
		m.JSONMeta = b
	}
	return m, nil
}

// Load reads every .yaml and .yml file directly under dir in name order. A
// missing directory yields no definitions.
func Load(dir string) ([]*datum.ObjectDatumStreamMetadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("[Seed] Stream seed directory not found", "path", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read seed directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var out []*datum.ObjectDatumStreamMetadata
	for _, name := range names {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var f File
		if err := yaml.Unmarshal(content, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for i, d := range f.Streams {
			m, err := d.Metadata()
			if err != nil {
				return nil, fmt.Errorf("%s: stream %d: %w", path, i, err)
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// Ensurer creates or updates a stream from a definition.
type Ensurer interface {
	EnsureStream(ctx context.Context, want *datum.ObjectDatumStreamMetadata) (*datum.ObjectDatumStreamMetadata, error)
}

// Apply loads dir and ensures every stream it defines.
func Apply(ctx context.Context, dir string, e Ensurer) (int, error) {
	defs, err := Load(dir)
	if err != nil {
		return 0, err
	}
	for _, d := range defs {
		if _, err := e.EnsureStream(ctx, d); err != nil {
			return 0, fmt.Errorf("failed to seed stream %s/%d/%s: %w", d.Kind.OrDefault(), d.ObjectID, d.SourceID, err)
		}
	}

	slog.Info("[Seed] Stream definitions applied", "path", dir, "count", len(defs))
	return len(defs), nil
}
