package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

// RunState tracks which destination tables were created during the current
// run. It is owned by the orchestrator and shared by all workers.
type RunState struct {
	mu      sync.Mutex
	created map[string]bool
}

// NewRunState returns an empty RunState.
func NewRunState() *RunState {
	return &RunState{created: make(map[string]bool)}
}

// SchemaManager creates destination tables and evolves their columns.
type SchemaManager struct {
	db     DBTX
	schema string
}

// NewSchemaManager returns a SchemaManager working in schema.
func NewSchemaManager(db DBTX, schema string) *SchemaManager {
	if schema == "" {
		schema = "public"
	}
	return &SchemaManager{db: db, schema: schema}
}

// qualified returns the quoted schema-qualified table name.
func (m *SchemaManager) qualified(table string) string {
	return qualifiedName(m.schema, table)
}

// EnsureTable drops and recreates the table of et the first time it is called
// for et within state. Later calls are no-ops and return false.
func (m *SchemaManager) EnsureTable(ctx context.Context, state *RunState, et EntityType) (bool, error) {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.created[et.Key] {
		return false, nil
	}

	table := m.qualified(et.Table)
	if _, err := m.db.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
		return false, fmt.Errorf("drop table %s: %w", et.Table, err)
	}
	if _, err := m.db.Exec(ctx, createTableSQL(table, et)); err != nil {
		return false, fmt.Errorf("create table %s: %w", et.Table, err)
	}

	state.created[et.Key] = true
	logging.WithFields(ctx, "table", et.Table, "entity_type", et.Key).Info("table created")
	return true, nil
}

// createTableSQL renders the CREATE TABLE statement for et: declared columns,
// provenance columns and the primary key, in that order.
func createTableSQL(table string, et EntityType) string {
	var defs []string
	seen := make(map[string]bool)
	add := func(name, typ string) {
		if seen[name] {
			return
		}
		seen[name] = true
		def := quoteIdentifier(name) + " " + typ
		if name == et.PrimaryKey {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	if _, ok := et.Column(et.PrimaryKey); !ok {
		add(et.PrimaryKey, ColumnText.SQL())
	}
	for _, c := range et.Columns {
		add(c.Name, c.Type.SQL())
	}
	add(ColumnSource, ColumnText.SQL())
	add(ColumnDownloadDate, ColumnDate.SQL())

	defs = append(defs, "PRIMARY KEY ("+quoteIdentifier(et.PrimaryKey)+")")
	return "CREATE TABLE " + table + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

// Columns returns the current column names of table.
func (m *SchemaManager) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := m.db.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		m.schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cols, nil
}

// EvolveColumns adds every observed column missing from the table of et as a
// nullable text column. Columns added concurrently by another worker are
// not an error. Returns the columns this call added.
func (m *SchemaManager) EvolveColumns(ctx context.Context, et EntityType, observed []string) ([]string, error) {
	existing, err := m.Columns(ctx, et.Table)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("evolve %s: table does not exist", et.Table)
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}

	var added []string
	for _, c := range observed {
		if have[c] {
			continue
		}
		have[c] = true

		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s text",
			m.qualified(et.Table), quoteIdentifier(c))
		if _, err := m.db.Exec(ctx, stmt); err != nil {
			if benignColumnRace(err) {
				continue
			}
			return added, fmt.Errorf("add column %s.%s: %w", et.Table, c, err)
		}
		added = append(added, c)
		logging.WithFields(ctx, "table", et.Table, "column", c).Info("added new column")
	}
	return added, nil
}

// benignColumnRace reports whether err means another session already added
// the column: a duplicate column, or a unique violation on the catalog when
// two ALTERs race.
func benignColumnRace(err error) bool {
	switch ClassifyPgError(err) {
	case ErrSchemaConflict, ErrUniqueness:
		return true
	}
	return errors.Is(err, ErrSchemaConflict)
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualifiedName returns "schema"."table".
func qualifiedName(schema, table string) string {
	return quoteIdentifier(schema) + "." + quoteIdentifier(table)
}

// quoteColumns quotes each column name in the slice.
func quoteColumns(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdentifier(c)
	}
	return quoted
}
