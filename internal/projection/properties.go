package projection

import (
	"slices"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
)

// propertySelection holds, per slot, the metadata positions a query keeps.
// A nil slot keeps nothing.
type propertySelection struct {
	instantaneous []int
	accumulating  []int
	status        []int
}

// propertyTrim narrows rows to the property names a query asked for. A nil
// trim leaves rows untouched.
type propertyTrim map[uuid.UUID]propertySelection

// newPropertyTrim resolves q's property-name filters against each stream and
// returns the trim with metadata narrowed to match. Without filters the
// trim is nil and metas are returned as given.
func newPropertyTrim(q *criteria.DatumCriteria, metas []*datum.ObjectDatumStreamMetadata) (propertyTrim, []*datum.ObjectDatumStreamMetadata) {
	if !q.HasPropertyNames() {
		return nil, metas
	}
	trim := make(propertyTrim, len(metas))
	narrowed := make([]*datum.ObjectDatumStreamMetadata, 0, len(metas))
	for _, m := range metas {
		sel := propertySelection{
			instantaneous: positions(m, datum.Instantaneous, q.PropertyNames(), q.InstantaneousPropertyNames()),
			accumulating:  positions(m, datum.Accumulating, q.PropertyNames(), q.AccumulatingPropertyNames()),
			status:        positions(m, datum.Status, q.PropertyNames(), q.StatusPropertyNames()),
		}
		trim[m.StreamID] = sel

		c := m.Clone()
		c.InstantaneousNames = pick(m.InstantaneousNames, sel.instantaneous)
		c.AccumulatingNames = pick(m.AccumulatingNames, sel.accumulating)
		c.StatusNames = pick(m.StatusNames, sel.status)
		narrowed = append(narrowed, c)
	}
	return trim, narrowed
}

// positions returns the indexes of slot t names matching any of the given
// names, in metadata order.
func positions(m *datum.ObjectDatumStreamMetadata, t datum.PropertyType, names, slot []string) []int {
	if len(names) == 0 && len(slot) == 0 {
		return nil
	}
	var out []int
	for i, name := range m.PropertyNames(t) {
		if slices.Contains(names, name) || slices.Contains(slot, name) {
			out = append(out, i)
		}
	}
	return out
}

func pick[T any](values []T, idx []int) []T {
	var out []T
	for _, i := range idx {
		if i < len(values) {
			out = append(out, values[i])
		}
	}
	return out
}

// apply narrows r's properties and statistics in place. Rows of streams the
// trim does not know are left as they are.
func (t propertyTrim) apply(r *datum.AggregateDatum) {
	if t == nil {
		return
	}
	sel, ok := t[r.StreamID]
	if !ok {
		return
	}
	r.Properties.Instantaneous = pick(r.Properties.Instantaneous, sel.instantaneous)
	r.Properties.Accumulating = pick(r.Properties.Accumulating, sel.accumulating)
	r.Properties.Status = pick(r.Properties.Status, sel.status)
	r.Statistics.Instantaneous = pick(r.Statistics.Instantaneous, sel.instantaneous)
	r.Statistics.Accumulating = pick(r.Statistics.Accumulating, sel.accumulating)
}
