package datum

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// InstantaneousStatistic summarizes the samples behind one averaged value.
type InstantaneousStatistic struct {
	Count int64
	Min   decimal.Decimal
	Max   decimal.Decimal
}

// AccumulatingStatistic summarizes one accumulating property over a bucket.
type AccumulatingStatistic struct {
	Difference decimal.Decimal
	Start      decimal.Decimal
	End        decimal.Decimal
}

// Statistics is positionally aligned with the owning aggregate's Properties.
// nil entries mean no statistic exists for that property.
type Statistics struct {
	Instantaneous []*InstantaneousStatistic
	Accumulating  []*AccumulatingStatistic
}

// IsEmpty reports whether no statistic is present.
func (s *Statistics) IsEmpty() bool {
	return s == nil || (len(s.Instantaneous) == 0 && len(s.Accumulating) == 0)
}

// Clone returns a deep copy.
func (s *Statistics) Clone() *Statistics {
	if s == nil {
		return nil
	}
	out := &Statistics{}
	if s.Instantaneous != nil {
		out.Instantaneous = make([]*InstantaneousStatistic, len(s.Instantaneous))
		for i, st := range s.Instantaneous {
			if st != nil {
				c := *st
				out.Instantaneous[i] = &c
			}
		}
	}
	if s.Accumulating != nil {
		out.Accumulating = make([]*AccumulatingStatistic, len(s.Accumulating))
		for i, st := range s.Accumulating {
			if st != nil {
				c := *st
				out.Accumulating[i] = &c
			}
		}
	}
	return out
}

// statisticsJSON is the storage shape: positional tuples, null for absent.
//
//	{"i":[[count,min,max],null],"a":[[diff,start,end]]}
type statisticsJSON struct {
	Instantaneous [][]decimal.Decimal `json:"i,omitempty"`
	Accumulating  [][]decimal.Decimal `json:"a,omitempty"`
}

func (s Statistics) MarshalJSON() ([]byte, error) {
	var out statisticsJSON
	if s.Instantaneous != nil {
		out.Instantaneous = make([][]decimal.Decimal, len(s.Instantaneous))
		for i, st := range s.Instantaneous {
			if st != nil {
				out.Instantaneous[i] = []decimal.Decimal{decimal.NewFromInt(st.Count), st.Min, st.Max}
			}
		}
	}
	if s.Accumulating != nil {
		out.Accumulating = make([][]decimal.Decimal, len(s.Accumulating))
		for i, st := range s.Accumulating {
			if st != nil {
				out.Accumulating[i] = []decimal.Decimal{st.Difference, st.Start, st.End}
			}
		}
	}
	return json.Marshal(out)
}

func (s *Statistics) UnmarshalJSON(data []byte) error {
	var in statisticsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Statistics{}
	if in.Instantaneous != nil {
		s.Instantaneous = make([]*InstantaneousStatistic, len(in.Instantaneous))
		for i, tuple := range in.Instantaneous {
			if tuple == nil {
				continue
			}
			if len(tuple) != 3 {
				return fmt.Errorf("instantaneous statistic %d: expected 3 values, got %d", i, len(tuple))
			}
			s.Instantaneous[i] = &InstantaneousStatistic{Count: tuple[0].IntPart(), Min: tuple[1], Max: tuple[2]}
		}
	}
	if in.Accumulating != nil {
		s.Accumulating = make([]*AccumulatingStatistic, len(in.Accumulating))
		for i, tuple := range in.Accumulating {
			if tuple == nil {
				continue
			}
			if len(tuple) != 3 {
				return fmt.Errorf("accumulating statistic %d: expected 3 values, got %d", i, len(tuple))
			}
			s.Accumulating[i] = &AccumulatingStatistic{Difference: tuple[0], Start: tuple[1], End: tuple[2]}
		}
	}
	return nil
}
