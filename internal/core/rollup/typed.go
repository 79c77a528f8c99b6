// Package rollup computes aggregate and reading rows from raw datum, reset
// auxiliaries and finer aggregates.
package rollup

import (
	"sort"

	"github.com/aevon-lab/aevon-datum/internal/core/datum"
)

var typeOrder = map[datum.RecordType]int{
	datum.RecordRaw:        0,
	datum.RecordResetFinal: 1,
	datum.RecordResetStart: 2,
}

// MergeTyped interleaves raw datum with the reset halves of auxiliaries in
// time order. At equal timestamps a raw reading sorts before the reset final
// value, which sorts before the reset start value.
func MergeTyped(datums []datum.Datum, auxiliaries []datum.DatumAuxiliary) []datum.TypedDatum {
	out := make([]datum.TypedDatum, 0, len(datums)+2*len(auxiliaries))
	for _, d := range datums {
		out = append(out, datum.TypedDatum{Datum: d, Type: datum.RecordRaw})
	}
	for _, a := range auxiliaries {
		out = append(out, a.Typed()...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return typeOrder[out[i].Type] < typeOrder[out[j].Type]
	})
	return out
}
