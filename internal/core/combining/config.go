// Package combining merges datum from sets of real object or source IDs into
// virtual streams.
package combining

import (
	"math"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
)

// Config is derived from a criteria's combining type and ID mappings. It is
// never persisted.
type Config struct {
	Type           criteria.CombiningType
	ObjectMappings criteria.Mappings[int64]
	SourceMappings criteria.Mappings[string]
}

// FromCriteria returns nil when c requests no combining, i.e. it has no
// combining type or neither mapping dimension is set.
func FromCriteria(c criteria.CombiningCriteria) *Config {
	if c == nil || c.CombiningType() == "" {
		return nil
	}
	obj, src := c.ObjectIDMappings(), c.SourceIDMappings()
	if len(obj) == 0 && len(src) == 0 {
		return nil
	}
	return &Config{
		Type:           c.CombiningType(),
		ObjectMappings: obj.Clone(),
		SourceMappings: src.Clone(),
	}
}

// IsWithObjectIDs reports whether object IDs are combined.
func (c *Config) IsWithObjectIDs() bool {
	return c != nil && len(c.ObjectMappings) > 0
}

// IsWithSourceIDs reports whether source IDs are combined.
func (c *Config) IsWithSourceIDs() bool {
	return c != nil && len(c.SourceMappings) > 0
}

// RealObjectIDs returns every real object ID to query.
func (c *Config) RealObjectIDs() []int64 {
	if !c.IsWithObjectIDs() {
		return nil
	}
	return c.ObjectMappings.AllReals()
}

// RealSourceIDs returns every real source ID to query.
func (c *Config) RealSourceIDs() []string {
	if !c.IsWithSourceIDs() {
		return nil
	}
	return c.SourceMappings.AllReals()
}

// VirtualObjectID returns the virtual ID real is combined into. When real is
// listed under more than one virtual ID the last mapping wins. Unmapped IDs,
// or any ID when objects are not combined, pass through unchanged with false.
func (c *Config) VirtualObjectID(real int64) (int64, bool) {
	if !c.IsWithObjectIDs() {
		return real, false
	}
	return virtualOf(c.ObjectMappings, real)
}

// VirtualSourceID is the source counterpart of VirtualObjectID.
func (c *Config) VirtualSourceID(real string) (string, bool) {
	if !c.IsWithSourceIDs() {
		return real, false
	}
	return virtualOf(c.SourceMappings, real)
}

func virtualOf[T comparable](m criteria.Mappings[T], real T) (T, bool) {
	out, found := real, false
	for _, e := range m {
		for _, r := range e.Reals {
			if r == real {
				out, found = e.Virtual, true
			}
		}
	}
	return out, found
}

// rank returns real's position within its winning mapping, used to order
// contributions for Difference.
func rank[T comparable](m criteria.Mappings[T], real T) int {
	pos := math.MaxInt32
	for _, e := range m {
		for i, r := range e.Reals {
			if r == real {
				pos = i
			}
		}
	}
	return pos
}
