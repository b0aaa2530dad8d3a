package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RunLogTable records one row per ingestion run.
const RunLogTable = "ingest_runs"

// RunRecord is the persisted summary of a run.
type RunRecord struct {
	RunID             string            `json:"runId"`
	Archive           string            `json:"archive"`
	Source            string            `json:"source"`
	State             string            `json:"state"`
	StartedAt         time.Time         `json:"startedAt"`
	FinishedAt        time.Time         `json:"finishedAt"`
	Attempted         int               `json:"attempted"`
	Succeeded         int               `json:"succeeded"`
	Failed            int               `json:"failed"`
	RowsInserted      int               `json:"rowsInserted"`
	DuplicatesDropped int               `json:"duplicatesDropped"`
	ValuesNulled      int               `json:"valuesNulled"`
	ColumnsAdded      int               `json:"columnsAdded"`
	IndexedTables     int               `json:"indexedTables"`
	Failures          map[string]string `json:"failures,omitempty"` // partition -> error code
	Error             string            `json:"error,omitempty"`
}

// RunLog persists run records in the destination schema.
type RunLog struct {
	db     DBTX
	schema string
}

// NewRunLog creates a run log on db.
func NewRunLog(db DBTX, schema string) *RunLog {
	return &RunLog{db: db, schema: schema}
}

// Ensure creates the run log table when missing. Unlike entity tables it
// survives across runs.
func (l *RunLog) Ensure(ctx context.Context) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id text PRIMARY KEY,
	archive text,
	source text,
	state text NOT NULL,
	started_at timestamptz NOT NULL,
	finished_at timestamptz,
	attempted integer NOT NULL DEFAULT 0,
	succeeded integer NOT NULL DEFAULT 0,
	failed integer NOT NULL DEFAULT 0,
	rows_inserted bigint NOT NULL DEFAULT 0,
	duplicates_dropped bigint NOT NULL DEFAULT 0,
	values_nulled bigint NOT NULL DEFAULT 0,
	columns_added integer NOT NULL DEFAULT 0,
	indexed_tables integer NOT NULL DEFAULT 0,
	failures jsonb,
	error text
)`, qualifiedName(l.schema, RunLogTable))

	if _, err := l.db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create run log: %w", err)
	}
	return nil
}

// Record inserts r, or replaces the row of an earlier record of the same run.
func (l *RunLog) Record(ctx context.Context, r RunRecord) error {
	var failures []byte
	if len(r.Failures) > 0 {
		var err error
		failures, err = json.Marshal(r.Failures)
		if err != nil {
			failures = nil
		}
	}

	var finished *time.Time
	if !r.FinishedAt.IsZero() {
		finished = &r.FinishedAt
	}

	sql := fmt.Sprintf(`INSERT INTO %s (
	run_id, archive, source, state, started_at, finished_at,
	attempted, succeeded, failed, rows_inserted, duplicates_dropped,
	values_nulled, columns_added, indexed_tables, failures, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (run_id) DO UPDATE SET
	archive = EXCLUDED.archive,
	source = EXCLUDED.source,
	state = EXCLUDED.state,
	finished_at = EXCLUDED.finished_at,
	attempted = EXCLUDED.attempted,
	succeeded = EXCLUDED.succeeded,
	failed = EXCLUDED.failed,
	rows_inserted = EXCLUDED.rows_inserted,
	duplicates_dropped = EXCLUDED.duplicates_dropped,
	values_nulled = EXCLUDED.values_nulled,
	columns_added = EXCLUDED.columns_added,
	indexed_tables = EXCLUDED.indexed_tables,
	failures = EXCLUDED.failures,
	error = EXCLUDED.error`, qualifiedName(l.schema, RunLogTable))

	_, err := l.db.Exec(ctx, sql,
		r.RunID, r.Archive, r.Source, r.State, r.StartedAt, finished,
		r.Attempted, r.Succeeded, r.Failed, r.RowsInserted, r.DuplicatesDropped,
		r.ValuesNulled, r.ColumnsAdded, r.IndexedTables, failures, r.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := fmt.Sprintf(`SELECT run_id, COALESCE(archive, ''), COALESCE(source, ''), state,
	started_at, COALESCE(finished_at, started_at),
	attempted, succeeded, failed, rows_inserted, duplicates_dropped,
	values_nulled, columns_added, indexed_tables,
	COALESCE(failures, '{}'::jsonb), COALESCE(error, '')
FROM %s ORDER BY started_at DESC LIMIT $1`, qualifiedName(l.schema, RunLogTable))

	rows, err := l.db.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r                     RunRecord
			rowsIns, dups, nulled int64
			failures              []byte
		)
		if err := rows.Scan(
			&r.RunID, &r.Archive, &r.Source, &r.State,
			&r.StartedAt, &r.FinishedAt,
			&r.Attempted, &r.Succeeded, &r.Failed, &rowsIns, &dups,
			&nulled, &r.ColumnsAdded, &r.IndexedTables,
			&failures, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		r.RowsInserted, r.DuplicatesDropped, r.ValuesNulled = int(rowsIns), int(dups), int(nulled)
		if len(failures) > 0 {
			_ = json.Unmarshal(failures, &r.Failures)
		}
		if len(r.Failures) == 0 {
			r.Failures = nil
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run log: %w", err)
	}
	return out, nil
}
