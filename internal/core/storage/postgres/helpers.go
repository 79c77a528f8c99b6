package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

// decimalArray renders decimals as a text array for a numeric[] column. A
// nil slice stays NULL and an empty one becomes '{}'.
func decimalArray(ds []decimal.Decimal) pq.StringArray {
	if ds == nil {
		return nil
	}
	out := make(pq.StringArray, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

func decimalsFrom(a pq.StringArray) ([]decimal.Decimal, error) {
	if a == nil {
		return nil, nil
	}
	out := make([]decimal.Decimal, len(a))
	for i, s := range a {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse numeric %q: %w", s, err)
		}
		out[i] = d
	}
	return out, nil
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// propertyColumns holds the four positional property columns of a row.
type propertyColumns struct {
	i, a, s, t pq.StringArray
}

func (c *propertyColumns) dest() []interface{} {
	return []interface{}{&c.i, &c.a, &c.s, &c.t}
}

func (c *propertyColumns) properties() (datum.Properties, error) {
	var p datum.Properties
	var err error
	if p.Instantaneous, err = decimalsFrom(c.i); err != nil {
		return p, err
	}
	if p.Accumulating, err = decimalsFrom(c.a); err != nil {
		return p, err
	}
	p.Status = []string(c.s)
	p.Tags = []string(c.t)
	return p, nil
}

func propertyArgs(p datum.Properties) []interface{} {
	return []interface{}{
		decimalArray(p.Instantaneous),
		decimalArray(p.Accumulating),
		pq.StringArray(p.Status),
		pq.StringArray(p.Tags),
	}
}

// jsonColumn marshals v into a jsonb value; a nil v is NULL.
func jsonColumn(v interface{}) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}, nil
}

func rawColumn(m json.RawMessage) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: m, Valid: len(m) > 0}
}

func propertiesColumn(p *datum.Properties) (pqtype.NullRawMessage, error) {
	if p == nil {
		return pqtype.NullRawMessage{}, nil
	}
	return jsonColumn(p)
}

func propertiesFrom(m pqtype.NullRawMessage) (*datum.Properties, error) {
	if !m.Valid {
		return nil, nil
	}
	var p datum.Properties
	if err := json.Unmarshal(m.RawMessage, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func rawFrom(m pqtype.NullRawMessage) json.RawMessage {
	if !m.Valid {
		return nil
	}
	return m.RawMessage
}

func scanDatumRow(row scanner) (datum.Datum, error) {
	var d datum.Datum
	var props propertyColumns
	dest := append([]interface{}{&d.StreamID, &d.Timestamp, &d.Received}, props.dest()...)
	if err := row.Scan(dest...); err != nil {
		return d, fmt.Errorf("failed to scan datum row: %w", err)
	}
	p, err := props.properties()
	if err != nil {
		return d, fmt.Errorf("datum %s: %w", d.DatumPK, err)
	}
	d.Properties = p
	return d, nil
}

func scanAggregateRow(row scanner) (datum.AggregateDatum, error) {
	var a datum.AggregateDatum
	var props propertyColumns
	var stat pqtype.NullRawMessage
	dest := append([]interface{}{&a.StreamID, &a.Timestamp, &a.Aggregation}, props.dest()...)
	if err := row.Scan(append(dest, &stat)...); err != nil {
		return a, fmt.Errorf("failed to scan aggregate row: %w", err)
	}
	p, err := props.properties()
	if err != nil {
		return a, fmt.Errorf("aggregate %s: %w", a.DatumPK, err)
	}
	a.Properties = p
	if stat.Valid {
		if err := json.Unmarshal(stat.RawMessage, &a.Statistics); err != nil {
			return a, fmt.Errorf("aggregate %s: failed to unmarshal statistics: %w", a.DatumPK, err)
		}
	}
	return a, nil
}

func scanAuxiliaryRow(row scanner) (datum.DatumAuxiliary, error) {
	var a datum.DatumAuxiliary
	var final, start, meta pqtype.NullRawMessage
	if err := row.Scan(&a.StreamID, &a.Timestamp, &a.Kind, &a.Updated, &a.Notes, &final, &start, &meta); err != nil {
		return a, fmt.Errorf("failed to scan auxiliary row: %w", err)
	}
	var err error
	if a.SamplesFinal, err = propertiesFrom(final); err != nil {
		return a, fmt.Errorf("failed to unmarshal final samples: %w", err)
	}
	if a.SamplesStart, err = propertiesFrom(start); err != nil {
		return a, fmt.Errorf("failed to unmarshal start samples: %w", err)
	}
	a.Metadata = rawFrom(meta)
	return a, nil
}

func scanStaleRow(row scanner) (datum.StaleAggregateDatum, error) {
	var s datum.StaleAggregateDatum
	if err := row.Scan(&s.StreamID, &s.Timestamp, &s.Kind, &s.Created); err != nil {
		return s, fmt.Errorf("failed to scan stale row: %w", err)
	}
	return s, nil
}

func countPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return datum.Int64(n.Int64)
}

func auditCountArgs(c datum.AuditCounts) []interface{} {
	return []interface{}{
		c.DatumCount, c.DatumHourlyCount, c.DatumDailyCount, c.DatumMonthlyCount,
		c.DatumPropertyCount, c.DatumPropertyUpdateCount, c.DatumQueryCount, c.FluxDataInCount,
	}
}

func scanAuditRow(row scanner) (datum.AuditDatum, error) {
	var a datum.AuditDatum
	var n [8]sql.NullInt64
	if err := row.Scan(&a.StreamID, &a.Timestamp, &a.Aggregation,
		&n[0], &n[1], &n[2], &n[3], &n[4], &n[5], &n[6], &n[7]); err != nil {
		return a, fmt.Errorf("failed to scan audit row: %w", err)
	}
	a.AuditCounts = datum.AuditCounts{
		DatumCount:               countPtr(n[0]),
		DatumHourlyCount:         countPtr(n[1]),
		DatumDailyCount:          countPtr(n[2]),
		DatumMonthlyCount:        countPtr(n[3]),
		DatumPropertyCount:       countPtr(n[4]),
		DatumPropertyUpdateCount: countPtr(n[5]),
		DatumQueryCount:          countPtr(n[6]),
		FluxDataInCount:          countPtr(n[7]),
	}
	return a, nil
}

func scanMetadataRow(row scanner) (*datum.ObjectDatumStreamMetadata, error) {
	var m datum.ObjectDatumStreamMetadata
	var names propertyColumns
	var meta pqtype.NullRawMessage
	if err := row.Scan(&m.StreamID, &m.Kind, &m.ObjectID, &m.SourceID, &m.UserID, &m.TimeZoneID,
		&names.i, &names.a, &names.s, &meta); err != nil {
		return nil, fmt.Errorf("failed to scan stream metadata row: %w", err)
	}
	m.InstantaneousNames = []string(names.i)
	m.AccumulatingNames = []string(names.a)
	m.StatusNames = []string(names.s)
	m.JSONMeta = rawFrom(meta)
	return &m, nil
}
