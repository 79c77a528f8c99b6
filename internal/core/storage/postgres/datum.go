package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	coreerrors "github.com/aevon-lab/aevon-datum/internal/core/errors"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
)

// Store persists a raw datum. Returns storage.ErrDuplicate if a datum with the
// same stream and timestamp already exists.
func (a *Adapter) Store(ctx context.Context, d *datum.Datum) error {
	args := append([]interface{}{d.StreamID, d.Timestamp, d.Received}, propertyArgs(d.Properties)...)
	res, err := a.stmtStoreDatum.ExecContext(ctx, args...)
	if err != nil {
		return fmt.Errorf("failed to store datum: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check datum insert: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicate
	}

	slog.Debug("[Postgres] Stored datum", "stream_id", d.StreamID, "ts", d.Timestamp)
	return nil
}

func (a *Adapter) Delete(ctx context.Context, pk datum.DatumPK) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryDeleteDatum, pk.StreamID, pk.Timestamp)
	if err != nil {
		return false, fmt.Errorf("failed to delete datum %s: %w", pk, err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// total runs the count query when c asks for a total.
func (a *Adapter) total(ctx context.Context, f *filter, c criteria.PaginationCriteria, mostRecent bool) (*int64, error) {
	if c.WithoutTotalResultsCount() {
		return nil, nil
	}
	q, args := f.count(mostRecent)
	var n int64
	if err := a.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	return &n, nil
}

// queryRows runs q and scans every row with scan.
func queryRows[T any](ctx context.Context, db *sql.DB, q string, args []interface{}, scan func(scanner) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func datumFilter(c *criteria.DatumCriteria) *filter {
	return newFilter("datum").streams(c, false).dates(c)
}

func (a *Adapter) FindFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.Datum], error) {
	if c == nil {
		c = &criteria.DatumCriteria{}
	}
	f := datumFilter(c)
	total, err := a.total(ctx, f, c, c.MostRecent())
	if err != nil {
		return nil, err
	}
	q, args := f.list(datumColumns, orderBy(c.Sorts()), c, c.MostRecent())
	rows, err := queryRows(ctx, a.db, q, args, scanDatumRow)
	if err != nil {
		return nil, fmt.Errorf("find datum: %w", err)
	}
	return storage.NewFilterResults(rows, total, c.Offset()), nil
}

func (a *Adapter) FindFilteredStream(ctx context.Context, c *criteria.DatumCriteria, p storage.StreamProcessor[datum.Datum]) error {
	if c == nil {
		c = &criteria.DatumCriteria{}
	}
	f := datumFilter(c)
	total, err := a.total(ctx, f, c, c.MostRecent())
	if err != nil {
		return err
	}
	if err := p.Start(total); err != nil {
		return err
	}

	q, args := f.list(datumColumns, orderBy(c.Sorts()), c, c.MostRecent())
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to stream datum: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDatumRow(rows)
		if err != nil {
			return err
		}
		if err := p.Handle(d); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating datum: %w", err)
	}
	return p.Finish()
}

func (a *Adapter) FindAggregateFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.AggregateDatum], error) {
	if c == nil || !c.Aggregation().IsSet() {
		return nil, coreerrors.InvalidArgumentf("aggregation required")
	}
	f := newFilter("agg_datum")
	f.where("t.agg = " + f.arg(string(c.Aggregation())))
	f.streams(c, false).dates(c)

	total, err := a.total(ctx, f, c, c.MostRecent())
	if err != nil {
		return nil, err
	}
	q, args := f.list(aggregateColumns, orderBy(c.Sorts()), c, c.MostRecent())
	rows, err := queryRows(ctx, a.db, q, args, scanAggregateRow)
	if err != nil {
		return nil, fmt.Errorf("find aggregates: %w", err)
	}
	return storage.NewFilterResults(rows, total, c.Offset()), nil
}

func (a *Adapter) StoreAggregate(ctx context.Context, agg *datum.AggregateDatum) error {
	var stat interface{}
	if !agg.Statistics.IsEmpty() {
		stat = agg.Statistics
	}
	statJSON, err := jsonColumn(stat)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}
	args := append([]interface{}{agg.StreamID, agg.Timestamp, string(agg.Aggregation)}, propertyArgs(agg.Properties)...)
	if _, err := a.stmtUpsertAggregate.ExecContext(ctx, append(args, statJSON)...); err != nil {
		return fmt.Errorf("failed to store aggregate %s %s: %w", agg.Aggregation, agg.DatumPK, err)
	}
	return nil
}

func (a *Adapter) DeleteAggregate(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, ts time.Time) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryDeleteAggregate, streamID, string(kind), ts)
	if err != nil {
		return false, fmt.Errorf("failed to delete aggregate: %w", err)
	}
	return affected(res)
}
