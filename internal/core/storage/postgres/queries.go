package postgres

// SQL for the fixed-shape statements. Criteria-driven queries are rendered
// by filter.

const (
	// queryStoreDatum inserts a raw datum. ON CONFLICT DO NOTHING affects no
	// rows for a duplicate (stream, timestamp); datum are never merged.
	queryStoreDatum = `
		INSERT INTO datum (stream_id, ts, received, data_i, data_a, data_s, data_t)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stream_id, ts) DO NOTHING
	`

	queryDeleteDatum = `DELETE FROM datum WHERE stream_id = $1 AND ts = $2`

	queryUpsertAggregate = `
		INSERT INTO agg_datum (stream_id, ts, agg, data_i, data_a, data_s, data_t, stat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stream_id, agg, ts)
		DO UPDATE SET
			data_i = EXCLUDED.data_i,
			data_a = EXCLUDED.data_a,
			data_s = EXCLUDED.data_s,
			data_t = EXCLUDED.data_t,
			stat   = EXCLUDED.stat
	`

	queryDeleteAggregate = `DELETE FROM agg_datum WHERE stream_id = $1 AND agg = $2 AND ts = $3`

	// queryMarkStale inserts one stale marker; a marker that already exists
	// keeps its original created time.
	queryMarkStale = `
		INSERT INTO stale_agg_datum (stream_id, ts, agg, created)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stream_id, agg, ts) DO NOTHING
	`

	queryDeleteStale = `DELETE FROM stale_agg_datum WHERE stream_id = $1 AND agg = $2 AND ts = $3`

	queryStreamOwner = `
		SELECT kind, object_id, source_id, time_zone
		FROM stream_meta
		WHERE stream_id = $1 AND user_id = $2
	`

	queryUpsertAuxiliary = `
		INSERT INTO datum_aux (stream_id, ts, atype, updated, notes, jdata_final, jdata_start, jmeta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stream_id, ts, atype)
		DO UPDATE SET
			updated     = EXCLUDED.updated,
			notes       = EXCLUDED.notes,
			jdata_final = EXCLUDED.jdata_final,
			jdata_start = EXCLUDED.jdata_start,
			jmeta       = EXCLUDED.jmeta
	`

	queryGetAuxiliary = `
		SELECT stream_id, ts, atype, updated, notes, jdata_final, jdata_start, jmeta
		FROM datum_aux
		WHERE stream_id = $1 AND ts = $2 AND atype = $3
	`

	// queryMoveAuxiliary relocates a record in one statement; no rows are
	// affected when the source does not exist.
	queryMoveAuxiliary = `
		WITH moved AS (
			DELETE FROM datum_aux
			WHERE stream_id = $1 AND ts = $2 AND atype = $3
			RETURNING notes, jdata_final, jdata_start, jmeta
		)
		INSERT INTO datum_aux (stream_id, ts, atype, updated, notes, jdata_final, jdata_start, jmeta)
		SELECT $4, $5, $6, $7, notes, jdata_final, jdata_start, jmeta FROM moved
		ON CONFLICT (stream_id, ts, atype)
		DO UPDATE SET
			updated     = EXCLUDED.updated,
			notes       = EXCLUDED.notes,
			jdata_final = EXCLUDED.jdata_final,
			jdata_start = EXCLUDED.jdata_start,
			jmeta       = EXCLUDED.jmeta
	`

	queryDeleteAuxiliary = `DELETE FROM datum_aux WHERE stream_id = $1 AND ts = $2 AND atype = $3`

	// queryAddAuditCounts increments the hourly audit row. A NULL increment
	// leaves the stored counter untouched; a NULL stored counter takes the
	// increment.
	queryAddAuditCounts = `
		INSERT INTO aud_datum (
			stream_id, ts, agg, datum_count, datum_hourly_count, datum_daily_count,
			datum_monthly_count, prop_count, prop_update_count, datum_q_count, flux_data_in_count
		) VALUES ($1, $2, 'Hour', $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (stream_id, agg, ts)
		DO UPDATE SET
			datum_count         = COALESCE(aud_datum.datum_count + EXCLUDED.datum_count, aud_datum.datum_count, EXCLUDED.datum_count),
			datum_hourly_count  = COALESCE(aud_datum.datum_hourly_count + EXCLUDED.datum_hourly_count, aud_datum.datum_hourly_count, EXCLUDED.datum_hourly_count),
			datum_daily_count   = COALESCE(aud_datum.datum_daily_count + EXCLUDED.datum_daily_count, aud_datum.datum_daily_count, EXCLUDED.datum_daily_count),
			datum_monthly_count = COALESCE(aud_datum.datum_monthly_count + EXCLUDED.datum_monthly_count, aud_datum.datum_monthly_count, EXCLUDED.datum_monthly_count),
			prop_count          = COALESCE(aud_datum.prop_count + EXCLUDED.prop_count, aud_datum.prop_count, EXCLUDED.prop_count),
			prop_update_count   = COALESCE(aud_datum.prop_update_count + EXCLUDED.prop_update_count, aud_datum.prop_update_count, EXCLUDED.prop_update_count),
			datum_q_count       = COALESCE(aud_datum.datum_q_count + EXCLUDED.datum_q_count, aud_datum.datum_q_count, EXCLUDED.datum_q_count),
			flux_data_in_count  = COALESCE(aud_datum.flux_data_in_count + EXCLUDED.flux_data_in_count, aud_datum.flux_data_in_count, EXCLUDED.flux_data_in_count)
	`

	queryUpsertAuditDatum = `
		INSERT INTO aud_datum (
			stream_id, ts, agg, datum_count, datum_hourly_count, datum_daily_count,
			datum_monthly_count, prop_count, prop_update_count, datum_q_count, flux_data_in_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (stream_id, agg, ts)
		DO UPDATE SET
			datum_count         = EXCLUDED.datum_count,
			datum_hourly_count  = EXCLUDED.datum_hourly_count,
			datum_daily_count   = EXCLUDED.datum_daily_count,
			datum_monthly_count = EXCLUDED.datum_monthly_count,
			prop_count          = EXCLUDED.prop_count,
			prop_update_count   = EXCLUDED.prop_update_count,
			datum_q_count       = EXCLUDED.datum_q_count,
			flux_data_in_count  = EXCLUDED.flux_data_in_count
	`

	queryMarkAuditStale = `
		INSERT INTO aud_stale_datum (stream_id, ts, agg, created)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stream_id, agg, ts) DO NOTHING
	`

	// queryFindStaleAudit treats an empty kind as any kind and a zero limit
	// as unlimited.
	queryFindStaleAudit = `
		SELECT stream_id, ts, agg, created
		FROM aud_stale_datum
		WHERE ($1 = '' OR agg = $1)
		ORDER BY created, stream_id, ts, agg
		LIMIT NULLIF($2, 0)
	`

	queryDeleteStaleAudit = `DELETE FROM aud_stale_datum WHERE stream_id = $1 AND agg = $2 AND ts = $3`

	queryCreateStreamMetadata = `
		INSERT INTO stream_meta (
			stream_id, kind, object_id, source_id, user_id, time_zone,
			names_i, names_a, names_s, jdata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	// queryUpdateIDAttributes leaves a column unchanged when its value is
	// NULL.
	queryUpdateIDAttributes = `
		UPDATE stream_meta
		SET object_id = COALESCE($3, object_id),
			source_id = COALESCE($4, source_id)
		WHERE stream_id = $1 AND kind = $2
	`

	queryReplaceJSONMeta = `UPDATE stream_meta SET jdata = $3 WHERE stream_id = $1 AND kind = $2`

	queryUpdatePropertyNames = `
		UPDATE stream_meta
		SET names_i = $2, names_a = $3, names_s = $4
		WHERE stream_id = $1
	`

	queryValidateSchema = `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_name IN ('stream_meta', 'datum', 'agg_datum', 'stale_agg_datum', 'datum_aux', 'aud_datum', 'aud_stale_datum')
	`
)

// Column lists shared by the criteria-driven selects. Each data table is
// read through the "s" CTE rendered by filter.
const (
	datumColumns     = "s.stream_id, s.ts, s.received, s.data_i, s.data_a, s.data_s, s.data_t"
	aggregateColumns = "s.stream_id, s.ts, s.agg, s.data_i, s.data_a, s.data_s, s.data_t, s.stat"
	auxiliaryColumns = "s.stream_id, s.ts, s.atype, s.updated, s.notes, s.jdata_final, s.jdata_start, s.jmeta"
	staleColumns     = "s.stream_id, s.ts, s.agg, s.created"
	auditColumns     = "s.stream_id, s.ts, s.agg, s.datum_count, s.datum_hourly_count, s.datum_daily_count, " +
		"s.datum_monthly_count, s.prop_count, s.prop_update_count, s.datum_q_count, s.flux_data_in_count"
	metadataColumns = "s.stream_id, s.kind, s.object_id, s.source_id, s.user_id, s.time_zone, " +
		"s.names_i, s.names_a, s.names_s, s.jdata"

	staleOrder = "s.created, s.stream_id, s.ts, CASE s.agg WHEN 'Hour' THEN 0 WHEN 'Day' THEN 1 ELSE 2 END"
	metaOrder  = "s.object_id, s.source_id, s.stream_id"
)
