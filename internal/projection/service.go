// Package projection answers datum, aggregate and reading queries over
// stored streams, including partial aggregation and virtual stream combining.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/core/combining"
	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	coreerrors "github.com/aevon-lab/aevon-datum/internal/core/errors"
	"github.com/aevon-lab/aevon-datum/internal/core/rollup"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/google/uuid"
)

// Store is the read access the query service needs.
type Store interface {
	rollup.Source
	FindFilteredStream(ctx context.Context, c *criteria.DatumCriteria, p storage.StreamProcessor[datum.Datum]) error
}

// MetadataFinder resolves the streams a query touches.
type MetadataFinder interface {
	FindDatumStreamMetadata(ctx context.Context, c *criteria.StreamMetadataCriteria) ([]*datum.ObjectDatumStreamMetadata, error)
}

// QueryCounter records how many rows each stream returned.
type QueryCounter interface {
	AddQueryCounts(ctx context.Context, metas []*datum.ObjectDatumStreamMetadata, counts map[uuid.UUID]int64) error
}

// Service implements the query layer.
type Service struct {
	store   Store
	streams MetadataFinder
	audit   QueryCounter
}

// NewService creates a query service. audit may be nil.
func NewService(store Store, streams MetadataFinder, audit QueryCounter) *Service {
	return &Service{store: store, streams: streams, audit: audit}
}

func invalidQueryf(format string, args ...interface{}) error {
	return coreerrors.InvalidArgumentf(format, args...)
}

// storedKind reports whether k rows are maintained by the stale processor.
func storedKind(k aggregation.Kind) bool {
	return slices.Contains(aggregation.StaleKinds(), k)
}

func validate(c *criteria.DatumCriteria) error {
	if c == nil {
		return invalidQueryf("criteria is required")
	}
	if c.Offset() < 0 || c.Max() < 0 {
		return invalidQueryf("offset and max must not be negative")
	}
	if !c.StartDate().IsZero() && !c.EndDate().IsZero() && !c.EndDate().After(c.StartDate()) {
		return invalidQueryf("end date must be after start date")
	}

	agg := c.Aggregation()
	if agg.IsSet() && !agg.Valid() {
		return invalidQueryf("unsupported aggregation: %s", agg)
	}
	if partial := c.PartialAggregation(); partial.IsSet() {
		if !storedKind(partial) {
			return invalidQueryf("unsupported partial aggregation: %s", partial)
		}
		if !agg.IsSet() || agg == aggregation.RunningTotal || !partial.Finer(agg) {
			return invalidQueryf("partial aggregation %s must be finer than aggregation %s", partial, agg)
		}
		if err := storage.RequireDateRange(c); err != nil {
			return err
		}
	}
	if agg.IsSet() && agg != aggregation.None && agg != aggregation.RunningTotal && !storedKind(agg) {
		if err := storage.RequireDateRange(c); err != nil {
			return fmt.Errorf("aggregation %s is computed per request: %w", agg, err)
		}
	}

	for _, rt := range c.RollupTypes() {
		switch rt {
		case criteria.RollupNone:
		case criteria.RollupAll:
			if !agg.IsSet() || agg == aggregation.None {
				return invalidQueryf("rollup %s requires an aggregation", rt)
			}
		default:
			return invalidQueryf("unsupported rollup type: %s", rt)
		}
	}

	switch c.CombiningType() {
	case "":
		if len(c.ObjectIDMappings()) > 0 || len(c.SourceIDMappings()) > 0 {
			return invalidQueryf("combining type is required with ID mappings")
		}
	case criteria.CombineSum, criteria.CombineAverage, criteria.CombineDifference:
	default:
		return invalidQueryf("unsupported combining type: %s", c.CombiningType())
	}
	return nil
}

// expand returns a copy of c querying the real IDs behind cfg.
func expand(c *criteria.DatumCriteria, cfg *combining.Config) *criteria.DatumCriteria {
	q := c.Clone()
	if cfg.IsWithObjectIDs() {
		if q.ObjectKind() == datum.Location {
			q.SetLocationIDs(cfg.RealObjectIDs())
		} else {
			q.SetNodeIDs(cfg.RealObjectIDs())
		}
	}
	if cfg.IsWithSourceIDs() {
		q.SetSourceIDs(cfg.RealSourceIDs())
	}
	return q
}

// resolve loads the metadata of every stream q may touch and narrows q to
// those stream IDs.
func (s *Service) resolve(ctx context.Context, q *criteria.DatumCriteria) ([]*datum.ObjectDatumStreamMetadata, error) {
	mc := &criteria.StreamMetadataCriteria{}
	mc.CopyFrom(q)
	metas, err := s.streams.FindDatumStreamMetadata(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("find stream metadata: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(metas))
	for _, m := range metas {
		ids = append(ids, m.StreamID)
	}
	q.SetStreamIDs(ids)
	return metas, nil
}

// rangeFor returns q's date range for one stream, resolving local dates in
// the stream's time zone.
func rangeFor(q *criteria.DatumCriteria, meta *datum.ObjectDatumStreamMetadata) (time.Time, time.Time) {
	if q.HasLocalDates() {
		return q.In(meta.Location())
	}
	return q.StartDate(), q.EndDate()
}

// FindFiltered returns raw datum (aggregation unset or None) or aggregates of
// c's aggregation. Aggregations without stored rows are computed from the
// next finer level, partial aggregation assembles unaligned range ends from
// the partial level, and RunningTotal rolls up every month in range. When c
// carries combining mappings, rows of the real streams are merged into
// virtual streams. Property-name filters narrow every row, and the returned
// metadata, to the named properties.
func (s *Service) FindFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.ObjectDatumStreamFilterResults[datum.AggregateDatum], error) {
	if err := validate(c); err != nil {
		return nil, err
	}

	q := c.Clone()
	cfg := combining.FromCriteria(c)
	if cfg != nil {
		q = expand(c, cfg)
	}
	metas, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return storage.NewObjectDatumStreamFilterResults(storage.NewFilterResults([]datum.AggregateDatum{}, nil, q.Offset()), nil), nil
	}

	agg := q.Aggregation()
	rollupAll := slices.Contains(q.RollupTypes(), criteria.RollupAll)
	inMemory := cfg != nil || rollupAll

	var rows []datum.AggregateDatum
	var total *int64
	switch {
	case !agg.IsSet() || agg == aggregation.None:
		rq := q
		if inMemory {
			rq = withoutPaging(q)
		}
		res, err := s.store.FindFiltered(ctx, rq)
		if err != nil {
			return nil, fmt.Errorf("query datum: %w", err)
		}
		rows = make([]datum.AggregateDatum, 0, len(res.Results))
		for _, d := range res.Results {
			rows = append(rows, datum.FromDatum(d))
		}
		total = res.TotalResults

	case agg == aggregation.RunningTotal:
		rows, err = s.runningTotals(ctx, q, metas)
		inMemory = true

	case storedKind(agg) && !q.PartialAggregation().IsSet():
		rq := q
		if inMemory {
			rq = withoutPaging(q)
		}
		var res *storage.FilterResults[datum.AggregateDatum]
		res, err = s.store.FindAggregateFiltered(ctx, rq)
		if err == nil {
			rows, total = res.Results, res.TotalResults
		}

	default:
		rows, err = s.assembled(ctx, q, metas)
		inMemory = true
	}
	if err != nil {
		return nil, err
	}

	if rollupAll {
		sortRows(rows)
		rows = rollupStreams(agg, rows)
	}

	var trim propertyTrim
	trim, metas = newPropertyTrim(q, metas)
	for i := range rows {
		trim.apply(&rows[i])
	}

	if cfg != nil {
		s.countQuery(ctx, metas, rows)
		combined, virtual := combining.Combine(cfg, rows, lookupIn(metas))
		return storage.NewObjectDatumStreamFilterResults(paginate(combined, q), virtual), nil
	}

	var page *storage.FilterResults[datum.AggregateDatum]
	if inMemory {
		page = paginate(rows, q)
	} else {
		page = storage.NewFilterResults(rows, total, q.Offset())
	}
	s.countQuery(ctx, metas, page.Results)
	return storage.NewObjectDatumStreamFilterResults(page, metas), nil
}

// assembled builds rows range by range for aggregations that are computed
// per request or that need partial range ends.
func (s *Service) assembled(ctx context.Context, q *criteria.DatumCriteria, metas []*datum.ObjectDatumStreamMetadata) ([]datum.AggregateDatum, error) {
	agg, partial := q.Aggregation(), q.PartialAggregation()
	var rows []datum.AggregateDatum
	for _, m := range metas {
		loc := m.Location()
		start, end := rangeFor(q, m)

		var ranges []TimeRange
		if partial.IsSet() {
			ranges = PartialRanges(agg, partial, start, end, loc)
		} else {
			ranges = bucketRanges(agg, start, end, loc)
		}

		var stored map[int64]datum.AggregateDatum
		if storedKind(agg) {
			var err error
			if stored, err = s.storedRows(ctx, m.StreamID, agg, start, end, loc); err != nil {
				return nil, err
			}
		}

		var streamRows []datum.AggregateDatum
		for _, r := range ranges {
			if r.Kind == agg && stored != nil {
				if row, ok := stored[r.Start.UnixNano()]; ok {
					streamRows = append(streamRows, row)
				}
				continue
			}
			from := aggregation.SourceKind(agg)
			if r.Kind != agg {
				from = r.Kind
			}
			row, err := rollup.Compute(ctx, s.store, m.StreamID, from, agg, r.Start, r.Start, r.End)
			if err != nil {
				return nil, fmt.Errorf("compute %s %s: %w", agg, m.StreamID, err)
			}
			if row != nil {
				streamRows = append(streamRows, *row)
			}
		}
		if q.MostRecent() && len(streamRows) > 0 {
			streamRows = streamRows[len(streamRows)-1:]
		}
		rows = append(rows, streamRows...)
	}
	sortRows(rows)
	return rows, nil
}

// storedRows returns the stored kind rows of a stream covering [start, end),
// keyed by bucket start.
func (s *Service) storedRows(ctx context.Context, streamID uuid.UUID, kind aggregation.Kind, start, end time.Time, loc *time.Location) (map[int64]datum.AggregateDatum, error) {
	c := &criteria.DatumCriteria{}
	c.SetStreamID(streamID)
	c.SetAggregation(kind)
	c.SetStartDate(kind.Floor(start, loc))
	c.SetEndDate(end)
	res, err := s.store.FindAggregateFiltered(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("query %s aggregates: %w", kind, err)
	}
	out := make(map[int64]datum.AggregateDatum, len(res.Results))
	for _, r := range res.Results {
		out[r.Timestamp.UnixNano()] = r
	}
	return out, nil
}

// runningTotals rolls up each stream's month aggregates within the date
// range into one row, labelled with the range start or else the first month.
func (s *Service) runningTotals(ctx context.Context, q *criteria.DatumCriteria, metas []*datum.ObjectDatumStreamMetadata) ([]datum.AggregateDatum, error) {
	var rows []datum.AggregateDatum
	for _, m := range metas {
		start, end := rangeFor(q, m)
		c := &criteria.DatumCriteria{}
		c.SetStreamID(m.StreamID)
		c.SetAggregation(aggregation.Month)
		c.SetStartDate(start)
		c.SetEndDate(end)
		c.SetSorts([]criteria.SortDescriptor{{Key: criteria.SortTime}})
		months, err := s.store.FindAggregateFiltered(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("query month aggregates: %w", err)
		}
		if len(months.Results) == 0 {
			continue
		}
		ts := start
		if ts.IsZero() {
			ts = months.Results[0].Timestamp
		}
		if row := rollup.RollupAggregates(m.StreamID, aggregation.RunningTotal, ts, months.Results); row != nil {
			rows = append(rows, *row)
		}
	}
	sortRows(rows)
	return rows, nil
}

// rollupStreams folds each stream's rows into a single row at the stream's
// first timestamp. rows must be sorted by stream then time.
func rollupStreams(kind aggregation.Kind, rows []datum.AggregateDatum) []datum.AggregateDatum {
	var out []datum.AggregateDatum
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].StreamID == rows[i].StreamID {
			j++
		}
		if row := rollup.RollupAggregates(rows[i].StreamID, kind, rows[i].Timestamp, rows[i:j]); row != nil {
			out = append(out, *row)
		}
		i = j
	}
	return out
}

// FindFilteredStream hands every raw datum matching c to p. Aggregation and
// combining are not available in streaming mode.
func (s *Service) FindFilteredStream(ctx context.Context, c *criteria.DatumCriteria, p storage.StreamProcessor[datum.Datum]) error {
	if err := validate(c); err != nil {
		return err
	}
	if agg := c.Aggregation(); agg.IsSet() && agg != aggregation.None {
		return invalidQueryf("streaming supports raw datum only, not %s", agg)
	}
	if c.CombiningType() != "" {
		return invalidQueryf("streaming does not support combining")
	}

	q := c.Clone()
	metas, err := s.resolve(ctx, q)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		if err := p.Start(nil); err != nil {
			return err
		}
		return p.Finish()
	}

	counting := &countingProcessor{next: p, counts: make(map[uuid.UUID]int64)}
	err = s.store.FindFilteredStream(ctx, q, counting)
	s.recordCounts(ctx, metas, counting.counts)
	return err
}

type countingProcessor struct {
	next   storage.StreamProcessor[datum.Datum]
	counts map[uuid.UUID]int64
}

func (p *countingProcessor) Start(total *int64) error { return p.next.Start(total) }
func (p *countingProcessor) Finish() error            { return p.next.Finish() }

func (p *countingProcessor) Handle(d datum.Datum) error {
	p.counts[d.StreamID]++
	return p.next.Handle(d)
}

// FindDatumReadingFiltered computes c's reading type between the start and
// end dates for each stream. With an aggregation set, one reading is
// computed per bucket. Combined readings are labelled with their range.
func (s *Service) FindDatumReadingFiltered(ctx context.Context, c *criteria.DatumCriteria) (*storage.ObjectDatumStreamFilterResults[datum.ReadingDatum], error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	rt := c.ReadingType()
	switch rt {
	case criteria.ReadingDifference, criteria.ReadingNearestDifference, criteria.ReadingDifferenceWithin:
	case "":
		return nil, invalidQueryf("reading type is required")
	default:
		return nil, invalidQueryf("unsupported reading type: %s", rt)
	}
	if err := storage.RequireDateRange(c); err != nil {
		return nil, err
	}
	if c.TimeTolerance() < 0 {
		return nil, invalidQueryf("time tolerance must not be negative")
	}
	agg := c.Aggregation()
	if agg == aggregation.RunningTotal || c.PartialAggregation().IsSet() {
		return nil, invalidQueryf("readings do not support %s aggregation", agg)
	}

	q := c.Clone()
	cfg := combining.FromCriteria(c)
	if cfg != nil {
		q = expand(c, cfg)
	}
	metas, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}

	var readings []datum.ReadingDatum
	for _, m := range metas {
		start, end := rangeFor(q, m)
		ranges := []TimeRange{{Kind: aggregation.None, Start: start, End: end}}
		if agg.IsSet() && agg != aggregation.None {
			ranges = bucketRanges(agg, start, end, m.Location())
		}
		for _, r := range ranges {
			seq, err := rollup.LoadReadingSequence(ctx, s.store, m.StreamID, r.Start, r.End)
			if err != nil {
				return nil, fmt.Errorf("load readings %s: %w", m.StreamID, err)
			}
			rd := rollup.ComputeReading(m.StreamID, rt, r.Start, r.End, q.TimeTolerance(), seq)
			if rd == nil {
				continue
			}
			if cfg != nil {
				rd.Timestamp, rd.EndTimestamp = r.Start, r.End
			}
			rd.Aggregation = r.Kind
			readings = append(readings, *rd)
		}
	}

	var trim propertyTrim
	trim, metas = newPropertyTrim(q, metas)
	for i := range readings {
		trim.apply(&readings[i].AggregateDatum)
	}

	counted := make([]datum.AggregateDatum, 0, len(readings))
	for _, rd := range readings {
		counted = append(counted, rd.AggregateDatum)
	}
	s.countQuery(ctx, metas, counted)

	if cfg == nil {
		return storage.NewObjectDatumStreamFilterResults(paginate(readings, q), metas), nil
	}

	ends := make(map[int64]time.Time, len(readings))
	for _, rd := range readings {
		ends[rd.Timestamp.UnixNano()] = rd.EndTimestamp
	}
	combined, virtual := combining.Combine(cfg, counted, lookupIn(metas))
	out := make([]datum.ReadingDatum, 0, len(combined))
	for _, row := range combined {
		out = append(out, datum.ReadingDatum{AggregateDatum: row, EndTimestamp: ends[row.Timestamp.UnixNano()]})
	}
	return storage.NewObjectDatumStreamFilterResults(paginate(out, q), virtual), nil
}

func (s *Service) countQuery(ctx context.Context, metas []*datum.ObjectDatumStreamMetadata, rows []datum.AggregateDatum) {
	if s.audit == nil || len(rows) == 0 {
		return
	}
	counts := make(map[uuid.UUID]int64)
	for _, r := range rows {
		counts[r.StreamID]++
	}
	s.recordCounts(ctx, metas, counts)
}

// recordCounts never fails a query; audit errors are logged.
func (s *Service) recordCounts(ctx context.Context, metas []*datum.ObjectDatumStreamMetadata, counts map[uuid.UUID]int64) {
	if s.audit == nil || len(counts) == 0 {
		return
	}
	if err := s.audit.AddQueryCounts(ctx, metas, counts); err != nil {
		slog.Warn("[Projection] Failed to record query counts", "error", err)
	}
}

func lookupIn(metas []*datum.ObjectDatumStreamMetadata) combining.MetadataLookup {
	byStream := make(map[uuid.UUID]*datum.ObjectDatumStreamMetadata, len(metas))
	for _, m := range metas {
		byStream[m.StreamID] = m
	}
	return func(id uuid.UUID) *datum.ObjectDatumStreamMetadata { return byStream[id] }
}

func withoutPaging(q *criteria.DatumCriteria) *criteria.DatumCriteria {
	out := q.Clone()
	out.SetOffset(0)
	out.SetMax(0)
	out.SetWithoutTotalResultsCount(true)
	return out
}

// paginate applies q's offset and max to rows assembled in memory. A max of
// zero returns everything from the offset.
func paginate[T any](rows []T, q *criteria.DatumCriteria) *storage.FilterResults[T] {
	var total *int64
	if !q.WithoutTotalResultsCount() {
		n := int64(len(rows))
		total = &n
	}
	offset := q.Offset()
	if offset > int64(len(rows)) {
		offset = int64(len(rows))
	}
	page := rows[offset:]
	if q.Max() > 0 && len(page) > q.Max() {
		page = page[:q.Max()]
	}
	if page == nil {
		page = []T{}
	}
	return storage.NewFilterResults(page, total, q.Offset())
}

func sortRows(rows []datum.AggregateDatum) {
	sort.SliceStable(rows, func(i, j int) bool {
		if a, b := rows[i].StreamID.String(), rows[j].StreamID.String(); a != b {
			return a < b
		}
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
}
