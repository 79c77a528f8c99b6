package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
)

// truncUnits maps the stale-tracked levels to date_trunc units.
var truncUnits = map[aggregation.Kind]string{
	aggregation.Hour:  "hour",
	aggregation.Day:   "day",
	aggregation.Month: "month",
}

// markStaleQuery renders an insert of one stale marker per bucket holding
// matching datum, at each of kinds. Buckets are floored in the stream's
// time zone.
func markStaleQuery(c *criteria.DatumCriteria, kinds []aggregation.Kind, created interface{}) (string, []interface{}) {
	f := datumFilter(c)
	now := f.arg(created)
	selects := make([]string, 0, len(kinds))
	for _, k := range kinds {
		selects = append(selects, fmt.Sprintf(
			"SELECT DISTINCT s.stream_id, date_trunc('%s', s.ts AT TIME ZONE s.tz) AT TIME ZONE s.tz AS ts, '%s' AS agg FROM s",
			truncUnits[k], k))
	}
	q := f.cte() +
		" INSERT INTO stale_agg_datum (stream_id, ts, agg, created)" +
		" SELECT b.stream_id, b.ts, b.agg, " + now + " FROM (" + strings.Join(selects, " UNION ") + ") b" +
		" ON CONFLICT (stream_id, agg, ts) DO NOTHING"
	return q, f.args
}

func (a *Adapter) MarkDatumAggregatesStale(ctx context.Context, c *criteria.DatumCriteria) (int, error) {
	if err := storage.RequireDateRange(c); err != nil {
		return 0, err
	}
	q, args := markStaleQuery(c, storage.StaleKindsFor(c.Aggregation()), a.clock.Now())
	res, err := a.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark aggregates stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read stale count: %w", err)
	}

	slog.Debug("[Postgres] Marked aggregates stale", "inserted", n)
	return int(n), nil
}

func (a *Adapter) MarkAggregateStale(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, ts time.Time) (bool, error) {
	res, err := a.stmtMarkStale.ExecContext(ctx, streamID, ts, string(kind), a.clock.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark %s %s stale: %w", kind, streamID, err)
	}
	return affected(res)
}

func (a *Adapter) FindStaleAggregateDatum(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.StaleAggregateDatum], error) {
	if c == nil {
		c = &criteria.DatumCriteria{}
	}
	f := newFilter("stale_agg_datum")
	if c.Aggregation().IsSet() {
		f.where("t.agg = " + f.arg(string(c.Aggregation())))
	}
	f.streams(c, false).dates(c)

	total, err := a.total(ctx, f, c, false)
	if err != nil {
		return nil, err
	}
	q, args := f.list(staleColumns, staleOrder, c, false)
	rows, err := queryRows(ctx, a.db, q, args, scanStaleRow)
	if err != nil {
		return nil, fmt.Errorf("find stale aggregates: %w", err)
	}
	return storage.NewFilterResults(rows, total, c.Offset()), nil
}

func (a *Adapter) DeleteStaleAggregateDatum(ctx context.Context, s datum.StaleAggregateDatum) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryDeleteStale, s.StreamID, string(s.Kind), s.Timestamp)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", s, err)
	}
	return affected(res)
}

func (a *Adapter) CountDatumRecords(ctx context.Context, c *criteria.DatumCriteria) (*datum.DatumRecordCounts, error) {
	if err := storage.RequireDateRange(c); err != nil {
		return nil, err
	}
	counts := &datum.DatumRecordCounts{}

	q, args := datumFilter(c).count(false)
	if err := a.db.QueryRowContext(ctx, q, args...).Scan(&counts.DatumCount); err != nil {
		return nil, fmt.Errorf("failed to count datum: %w", err)
	}

	f := newFilter("agg_datum")
	f.where("t.agg IN ('Hour', 'Day', 'Month')")
	f.streams(c, false).dates(c)
	rows, err := a.db.QueryContext(ctx, f.cte()+" SELECT s.agg, COUNT(*) FROM s GROUP BY s.agg", f.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count aggregates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind aggregation.Kind
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate count: %w", err)
		}
		switch kind {
		case aggregation.Hour:
			counts.DatumHourlyCount = n
		case aggregation.Day:
			counts.DatumDailyCount = n
		case aggregation.Month:
			counts.DatumMonthlyCount = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate counts: %w", err)
	}
	return counts, nil
}

// deleteQuery renders a delete of the rows of table selected by c, matched
// on the table's key columns.
func deleteQuery(table string, keys []string, c *criteria.DatumCriteria) (string, []interface{}) {
	f := newFilter(table).streams(c, false).dates(c)
	on := make([]string, len(keys))
	for i, k := range keys {
		on[i] = "x." + k + " = s." + k
	}
	return f.cte() + " DELETE FROM " + table + " x USING s WHERE " + strings.Join(on, " AND "), f.args
}

func (a *Adapter) DeleteFiltered(ctx context.Context, c *criteria.DatumCriteria) (int64, error) {
	if err := storage.RequireDateRange(c); err != nil {
		return 0, err
	}
	var deleted int64
	err := a.inTx(ctx, func(tx *sql.Tx) error {
		q, args := deleteQuery("datum", []string{"stream_id", "ts"}, c)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("failed to delete datum: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to read deleted count: %w", err)
		}
		for _, table := range []string{"agg_datum", "stale_agg_datum"} {
			q, args := deleteQuery(table, []string{"stream_id", "agg", "ts"}, c)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("[Postgres] Deleted datum", "count", deleted)
	return deleted, nil
}

func (a *Adapter) DeleteForIDs(ctx context.Context, userID int64, ids []datum.ObjectDatumID) ([]datum.ObjectDatumID, error) {
	var deleted []datum.ObjectDatumID
	err := a.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if !id.IsFullySpecified() {
				continue
			}
			var meta datum.ObjectDatumStreamMetadata
			err := tx.QueryRowContext(ctx, queryStreamOwner, id.StreamID, userID).
				Scan(&meta.Kind, &meta.ObjectID, &meta.SourceID, &meta.TimeZoneID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to check owner of %s: %w", id.StreamID, err)
			}

			var res sql.Result
			if id.Aggregation == aggregation.None {
				res, err = tx.ExecContext(ctx, queryDeleteDatum, id.StreamID, id.Timestamp)
			} else {
				res, err = tx.ExecContext(ctx, queryDeleteAggregate, id.StreamID, string(id.Aggregation), id.Timestamp)
			}
			if err != nil {
				return fmt.Errorf("failed to delete %s@%s: %w", id.StreamID, id.Timestamp, err)
			}
			ok, err := affected(res)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if id.Aggregation == aggregation.None {
				bucket := aggregation.Hour.Floor(id.Timestamp, meta.Location())
				if _, err := tx.ExecContext(ctx, queryMarkStale,
					id.StreamID, bucket, string(aggregation.Hour), a.clock.Now()); err != nil {
					return fmt.Errorf("failed to mark %s stale: %w", id.StreamID, err)
				}
			}

			objectID := meta.ObjectID
			id.Kind = meta.Kind.OrDefault()
			id.ObjectID = &objectID
			id.SourceID = meta.SourceID
			deleted = append(deleted, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
