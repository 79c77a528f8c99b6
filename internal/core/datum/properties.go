package datum

import (
	"slices"

	"github.com/shopspring/decimal"
)

// PropertyType names one of the positional property slots.
type PropertyType string

const (
	Instantaneous PropertyType = "i"
	Accumulating  PropertyType = "a"
	Status        PropertyType = "s"
	Tag           PropertyType = "t"
)

// Properties holds one datum's readings (or one aggregate's values) in four
// positional slots. A nil slice means the slot is absent; a non-nil empty slice
// means it is present but empty. Positions map to property names through the
// owning stream's metadata.
type Properties struct {
	Instantaneous []decimal.Decimal `json:"i"`
	Accumulating  []decimal.Decimal `json:"a"`
	Status        []string          `json:"s"`
	Tags          []string          `json:"t"`
}

// IsEmpty reports whether every slot is absent or empty.
func (p *Properties) IsEmpty() bool {
	return p == nil || (len(p.Instantaneous) == 0 && len(p.Accumulating) == 0 &&
		len(p.Status) == 0 && len(p.Tags) == 0)
}

// Clone returns a deep copy that preserves the absent/empty distinction.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return nil
	}
	return &Properties{
		Instantaneous: cloneSlice(p.Instantaneous),
		Accumulating:  cloneSlice(p.Accumulating),
		Status:        cloneSlice(p.Status),
		Tags:          cloneSlice(p.Tags),
	}
}

// Equal compares two property sets. Numeric slots compare by value, status
// positionally, tags as a set. Absent and empty are never equal.
func (p *Properties) Equal(o *Properties) bool {
	if p == nil || o == nil {
		return p == o
	}
	return decimalsEqual(p.Instantaneous, o.Instantaneous) &&
		decimalsEqual(p.Accumulating, o.Accumulating) &&
		stringsEqual(p.Status, o.Status) &&
		tagsEqual(p.Tags, o.Tags)
}

// HasTag reports whether tag is present.
func (p *Properties) HasTag(tag string) bool {
	return p != nil && slices.Contains(p.Tags, tag)
}

// Decimal returns the numeric value at index i of slot t, if present.
func (p *Properties) Decimal(t PropertyType, i int) (decimal.Decimal, bool) {
	if p == nil || i < 0 {
		return decimal.Zero, false
	}
	var s []decimal.Decimal
	switch t {
	case Instantaneous:
		s = p.Instantaneous
	case Accumulating:
		s = p.Accumulating
	default:
		return decimal.Zero, false
	}
	if i >= len(s) {
		return decimal.Zero, false
	}
	return s[i], true
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func decimalsEqual(a, b []decimal.Decimal) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return slices.Equal(a, b)
}

func tagsEqual(a, b []string) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	sa, sb := slices.Clone(a), slices.Clone(b)
	slices.Sort(sa)
	slices.Sort(sb)
	return slices.Equal(sa, sb)
}
