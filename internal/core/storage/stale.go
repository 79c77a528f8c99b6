package storage

import (
	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	coreerrors "github.com/aevon-lab/aevon-datum/internal/core/errors"
)

// StaleKindsFor returns the stale-tracked levels marked for a request at
// level k: always Hour, plus every tracked level finer than k.
func StaleKindsFor(k aggregation.Kind) []aggregation.Kind {
	kinds := []aggregation.Kind{aggregation.Hour}
	if !k.IsSet() {
		return kinds
	}
	for _, sk := range aggregation.StaleKinds() {
		if sk != aggregation.Hour && sk.Finer(k) {
			kinds = append(kinds, sk)
		}
	}
	return kinds
}

// RequireDateRange rejects criteria without a bounded date range, used by
// operations that must never run unbounded.
func RequireDateRange(c *criteria.DatumCriteria) error {
	if c == nil {
		return coreerrors.InvalidArgumentf("criteria required")
	}
	if c.HasLocalDates() {
		if c.LocalStartDate().IsZero() || c.LocalEndDate().IsZero() {
			return coreerrors.InvalidArgumentf("local start and end dates required")
		}
		return nil
	}
	if c.StartDate().IsZero() || c.EndDate().IsZero() {
		return coreerrors.InvalidArgumentf("start and end dates required")
	}
	if !c.StartDate().Before(c.EndDate()) {
		return coreerrors.InvalidArgumentf("start date %s not before end date %s", c.StartDate(), c.EndDate())
	}
	return nil
}
