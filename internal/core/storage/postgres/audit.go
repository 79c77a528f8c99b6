package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
)

func (a *Adapter) AddAuditCounts(ctx context.Context, streamID uuid.UUID, hour time.Time, counts datum.AuditCounts) error {
	hour = hour.UTC()
	args := append([]interface{}{streamID, hour}, auditCountArgs(counts)...)
	if _, err := a.stmtAddAuditCounts.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("failed to add audit counts for %s: %w", streamID, err)
	}
	return nil
}

func (a *Adapter) StoreAuditDatum(ctx context.Context, d *datum.AuditDatum) error {
	args := append([]interface{}{d.StreamID, d.Timestamp, string(d.Aggregation)}, auditCountArgs(d.AuditCounts)...)
	if _, err := a.db.ExecContext(ctx, queryUpsertAuditDatum, args...); err != nil {
		return fmt.Errorf("failed to store %s audit datum for %s: %w", d.Aggregation, d.StreamID, err)
	}
	return nil
}

func (a *Adapter) findAudit(ctx context.Context, c *criteria.AuditCriteria, kind aggregation.Kind) (*storage.FilterResults[datum.AuditDatum], error) {
	f := newFilter("aud_datum")
	f.where("t.agg = " + f.arg(string(kind)))
	f.streams(c, false).dates(c)

	total, err := a.total(ctx, f, c, c.MostRecent())
	if err != nil {
		return nil, err
	}
	q, args := f.list(auditColumns, orderBy(c.Sorts()), c, c.MostRecent())
	rows, err := queryRows(ctx, a.db, q, args, scanAuditRow)
	if err != nil {
		return nil, fmt.Errorf("find %s audit datum: %w", kind, err)
	}
	return storage.NewFilterResults(rows, total, c.Offset()), nil
}

func (a *Adapter) FindAuditDatumFiltered(ctx context.Context, c *criteria.AuditCriteria) (*storage.FilterResults[datum.AuditDatum], error) {
	if c == nil {
		c = &criteria.AuditCriteria{}
	}
	kind := c.Aggregation()
	if !kind.IsSet() {
		kind = aggregation.Hour
	}
	return a.findAudit(ctx, c, kind)
}

func (a *Adapter) FindAccumulativeAuditDatumFiltered(ctx context.Context, c *criteria.AuditCriteria) (*storage.FilterResults[datum.AuditDatum], error) {
	if c == nil {
		c = &criteria.AuditCriteria{}
	}
	return a.findAudit(ctx, c, aggregation.RunningTotal)
}

func (a *Adapter) MarkAuditStale(ctx context.Context, streamID uuid.UUID, ts time.Time, kind aggregation.Kind) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryMarkAuditStale, streamID, ts, string(kind), a.clock.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark %s audit stale for %s: %w", kind, streamID, err)
	}
	return affected(res)
}

func (a *Adapter) FindStaleAuditDatum(ctx context.Context, kind aggregation.Kind, max int) ([]datum.StaleAuditDatum, error) {
	return queryRows(ctx, a.db, queryFindStaleAudit, []interface{}{string(kind), max},
		func(row scanner) (datum.StaleAuditDatum, error) {
			var s datum.StaleAuditDatum
			if err := row.Scan(&s.StreamID, &s.Timestamp, &s.Kind, &s.Created); err != nil {
				return s, fmt.Errorf("failed to scan stale audit row: %w", err)
			}
			return s, nil
		})
}

func (a *Adapter) DeleteStaleAuditDatum(ctx context.Context, s datum.StaleAuditDatum) (bool, error) {
	res, err := a.db.ExecContext(ctx, queryDeleteStaleAudit, s.StreamID, string(s.Kind), s.Timestamp)
	if err != nil {
		return false, fmt.Errorf("failed to delete stale audit row: %w", err)
	}
	return affected(res)
}
