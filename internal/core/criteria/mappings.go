package criteria

import (
	"slices"
	"strconv"
	"strings"
)

// Mapping maps one virtual ID to the real IDs it stands for.
type Mapping[T comparable] struct {
	Virtual T
	Reals   []T
}

// Mappings is an ordered set of virtual-to-real ID mappings. Order is the
// order in which virtual IDs were first decoded.
type Mappings[T comparable] []Mapping[T]

// Virtuals returns the virtual IDs in order.
func (m Mappings[T]) Virtuals() []T {
	out := make([]T, 0, len(m))
	for _, e := range m {
		out = append(out, e.Virtual)
	}
	return out
}

// Reals returns the real IDs mapped to virtual, or nil.
func (m Mappings[T]) Reals(virtual T) []T {
	for _, e := range m {
		if e.Virtual == virtual {
			return e.Reals
		}
	}
	return nil
}

// AllReals returns every real ID across all mappings, de-duplicated, in
// mapping order.
func (m Mappings[T]) AllReals() []T {
	var out []T
	for _, e := range m {
		for _, r := range e.Reals {
			if !slices.Contains(out, r) {
				out = append(out, r)
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (m Mappings[T]) Clone() Mappings[T] {
	if m == nil {
		return nil
	}
	out := make(Mappings[T], len(m))
	for i, e := range m {
		out[i] = Mapping[T]{Virtual: e.Virtual, Reals: slices.Clone(e.Reals)}
	}
	return out
}

func (m Mappings[T]) index(virtual T) int {
	for i, e := range m {
		if e.Virtual == virtual {
			return i
		}
	}
	return -1
}

func addReal[T comparable](reals []T, v T) []T {
	if slices.Contains(reals, v) {
		return reals
	}
	return append(reals, v)
}

// ObjectMappingsFrom decodes "virtual:real1,real2" tokens with numeric IDs.
// See mappingsFrom for the token grammar.
func ObjectMappingsFrom(tokens []string) Mappings[int64] {
	return mappingsFrom(tokens, func(s string) (int64, error) {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	})
}

// SourceMappingsFrom decodes "virtual:real1,real2" tokens with string IDs.
func SourceMappingsFrom(tokens []string) Mappings[string] {
	return mappingsFrom(tokens, func(s string) (string, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", strconv.ErrSyntax
		}
		return s, nil
	})
}

// mappingsFrom decodes tokens of the form "virtual:real1,real2,...".
//
// Query string binders split "1:2,3" into ["1:2", "3"], so once exactly one
// mapping has been decoded a bare token (no virtual part) is appended to that
// mapping's reals instead of being dropped.
//
// Malformed tokens and unparseable IDs are skipped. A virtual ID seen more
// than once accumulates the union of its reals. Returns nil when nothing
// usable was decoded.
func mappingsFrom[T comparable](tokens []string, parse func(string) (T, error)) Mappings[T] {
	var result Mappings[T]
	for _, token := range tokens {
		delim := strings.IndexByte(token, ':')
		if delim < 1 && len(result) == 1 {
			if v, err := parse(token); err == nil {
				result[0].Reals = addReal(result[0].Reals, v)
			}
			continue
		}
		if delim < 1 || delim+1 >= len(token) {
			continue
		}
		virtual, err := parse(token[:delim])
		if err != nil {
			continue
		}
		var reals []T
		ok := true
		for _, part := range strings.Split(token[delim+1:], ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			v, err := parse(part)
			if err != nil {
				ok = false
				break
			}
			reals = addReal(reals, v)
		}
		if !ok || len(reals) == 0 {
			continue
		}
		if i := result.index(virtual); i >= 0 {
			for _, r := range reals {
				result[i].Reals = addReal(result[i].Reals, r)
			}
			continue
		}
		result = append(result, Mapping[T]{Virtual: virtual, Reals: reals})
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
