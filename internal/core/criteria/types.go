package criteria

import (
	"fmt"
	"strings"
)

// RollupType selects how results are rolled up across the requested range.
type RollupType string

const (
	RollupNone    RollupType = "None"
	RollupAll     RollupType = "All"
	RollupAverage RollupType = "Average"
	RollupSum     RollupType = "Sum"
	RollupMin     RollupType = "Min"
	RollupMax     RollupType = "Max"
	RollupCount   RollupType = "Count"
)

// ReadingType selects a reading-style (difference between two instants)
// calculation.
type ReadingType string

const (
	// ReadingDifference uses the latest readings at or before each boundary.
	ReadingDifference ReadingType = "Difference"
	// ReadingNearestDifference uses the readings closest to each boundary.
	ReadingNearestDifference ReadingType = "NearestDifference"
	// ReadingDifferenceWithin uses the earliest and latest readings inside
	// the range.
	ReadingDifferenceWithin ReadingType = "DifferenceWithin"
)

// CombiningType is the operation applied across real streams mapped to one
// virtual stream.
type CombiningType string

const (
	CombineSum        CombiningType = "Sum"
	CombineAverage    CombiningType = "Average"
	CombineDifference CombiningType = "Difference"
)

// ParseRollupType parses a rollup name, ignoring case.
func ParseRollupType(s string) (RollupType, error) {
	for _, t := range []RollupType{RollupNone, RollupAll, RollupAverage, RollupSum, RollupMin, RollupMax, RollupCount} {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported rollup type %q", s)
}

// ParseReadingType parses a reading type name, ignoring case.
func ParseReadingType(s string) (ReadingType, error) {
	for _, t := range []ReadingType{ReadingDifference, ReadingNearestDifference, ReadingDifferenceWithin} {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported reading type %q", s)
}

// ParseCombiningType parses a combining type name, ignoring case.
func ParseCombiningType(s string) (CombiningType, error) {
	for _, t := range []CombiningType{CombineSum, CombineAverage, CombineDifference} {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported combining type %q", s)
}

// SortDescriptor orders results by one key.
type SortDescriptor struct {
	Key        string
	Descending bool
}

// Sort keys understood by the stores.
const (
	SortStream  = "stream"
	SortNode    = "node"
	SortSource  = "source"
	SortTime    = "time"
	SortCreated = "created"
)
