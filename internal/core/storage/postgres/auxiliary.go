package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
)

func (a *Adapter) StoreAuxiliary(ctx context.Context, aux *datum.DatumAuxiliary) error {
	final, err := propertiesColumn(aux.SamplesFinal)
	if err != nil {
		return fmt.Errorf("failed to marshal final samples: %w", err)
	}
	start, err := propertiesColumn(aux.SamplesStart)
	if err != nil {
		return fmt.Errorf("failed to marshal start samples: %w", err)
	}
	_, err = a.db.ExecContext(ctx, queryUpsertAuxiliary,
		aux.StreamID,
		aux.Timestamp,
		string(aux.Kind),
		a.clock.Now(),
		aux.Notes,
		final,
		start,
		rawColumn(aux.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to store auxiliary %s: %w", aux.StreamID, err)
	}
	return nil
}

func (a *Adapter) GetAuxiliary(ctx context.Context, pk datum.DatumAuxiliaryPK) (*datum.DatumAuxiliary, error) {
	row := a.db.QueryRowContext(ctx, queryGetAuxiliary, pk.StreamID, pk.Timestamp, string(pk.Kind))
	aux, err := scanAuxiliaryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &aux, nil
}

func (a *Adapter) MoveAuxiliary(ctx context.Context, from, to datum.DatumAuxiliaryPK) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryMoveAuxiliary,
		from.StreamID, from.Timestamp, string(from.Kind),
		to.StreamID, to.Timestamp, string(to.Kind),
		a.clock.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to move auxiliary: %w", err)
	}
	return affected(res)
}

func (a *Adapter) DeleteAuxiliary(ctx context.Context, pk datum.DatumAuxiliaryPK) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryDeleteAuxiliary, pk.StreamID, pk.Timestamp, string(pk.Kind))
	if err != nil {
		return false, fmt.Errorf("failed to delete auxiliary: %w", err)
	}
	return affected(res)
}

func (a *Adapter) FindAuxiliaryFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.DatumAuxiliary], error) {
	if c == nil {
		c = &criteria.DatumCriteria{}
	}
	f := newFilter("datum_aux")
	if c.AuxiliaryKind() != "" {
		f.where("t.atype = " + f.arg(string(c.AuxiliaryKind())))
	}
	f.streams(c, false).dates(c)

	total, err := a.total(ctx, f, c, false)
	if err != nil {
		return nil, err
	}
	q, args := f.list(auxiliaryColumns, orderBy(c.Sorts()), c, false)
	rows, err := queryRows(ctx, a.db, q, args, scanAuxiliaryRow)
	if err != nil {
		return nil, fmt.Errorf("find auxiliary: %w", err)
	}
	return storage.NewFilterResults(rows, total, c.Offset()), nil
}
