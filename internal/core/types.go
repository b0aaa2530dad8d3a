// Package core provides the transform and load logic for registry exports.
// This package has no transport dependencies and can be driven by the CLI,
// the pipeline orchestrator, or tests.
package core

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TxBeginner is a DBTX that can open transactions.
type TxBeginner interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// ColumnType is the declared destination type of a registry column.
type ColumnType int

const (
	ColumnText ColumnType = iota
	ColumnDate
	ColumnTimestamp
	ColumnDouble
	ColumnInteger
	ColumnBool
)

// SQL returns the PostgreSQL type name.
func (t ColumnType) SQL() string {
	switch t {
	case ColumnDate:
		return "date"
	case ColumnTimestamp:
		return "timestamp"
	case ColumnDouble:
		return "double precision"
	case ColumnInteger:
		return "integer"
	case ColumnBool:
		return "boolean"
	default:
		return "text"
	}
}

// ColumnSpec declares one destination column of an entity type.
type ColumnSpec struct {
	Name       string              // Column name after renaming
	Type       ColumnType          // Declared destination type
	Catalog    bool                // Values are Katalogwerte ids resolved during cleansing
	Normalizer func(string) string // Optional cleansing rule applied to non-null values
}

// EntityType maps one export entity type to its destination table.
type EntityType struct {
	Key        string            // Lowercased filename prefix: "einheitenwind"
	Table      string            // Destination table: "wind_extended"
	Category   string            // Selection category: "wind"
	Renames    map[string]string // Export column name -> destination column name
	PrimaryKey string            // Primary key column (after renaming)
	Columns    []ColumnSpec      // Declared columns; others are added as text on demand
	Loadable   bool              // False for lookup-only types such as katalogwerte
}

// Column returns the declared spec for name.
func (e EntityType) Column(name string) (ColumnSpec, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Partition describes one XML member of the archive.
// The payload is read by the worker that processes it.
type Partition struct {
	Name       string // Member name inside the archive: "EinheitenWind_3.xml"
	EntityType string // Registry key: "einheitenwind"
	Table      string // Destination table
	Sequence   int    // Numeric suffix, 0 when the entity type has a single file
	First      bool   // Lowest sequence of its entity type; creates the table

	// Open returns the raw payload. Set by the archive indexer.
	Open func() (io.ReadCloser, error)
}

// Provenance column names attached to every row.
const (
	ColumnSource       = "DatenQuelle"
	ColumnDownloadDate = "DatumDownload"
)

// RowBatch is the transformed content of one partition.
// Rows are aligned with Columns; a nil entry is SQL NULL.
type RowBatch struct {
	EntityType string
	Table      string
	Columns    []string
	Rows       [][]*string
}

// Len returns the number of rows.
func (b *RowBatch) Len() int { return len(b.Rows) }

// ColumnIndex returns the position of name in Columns, or -1.
func (b *RowBatch) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// LoadResult contains the outcome of loading one batch.
type LoadResult struct {
	Inserted          int
	DuplicatesDropped int // Key already stored or repeated within the batch
	NullKeysDropped   int // Primary key missing
	ValuesNulled      int
	Attempts          int
}

// PartitionResult is the outcome of one coordinator task.
type PartitionResult struct {
	Partition    string
	Table        string
	Rows         int
	ColumnsAdded []string
	Load         LoadResult
	Repairs      int
	Duration     time.Duration
	Err          error
}

// Outcome aggregates all partition results of a coordinator run.
type Outcome struct {
	Attempted         int
	Succeeded         int
	Failed            int
	RowsInserted      int
	DuplicatesDropped int
	NullKeysDropped   int
	ValuesNulled      int
	ColumnsAdded      int
	Failures          []PartitionResult
	Duration          time.Duration
}

// add folds r into o. Callers serialize access.
func (o *Outcome) add(r PartitionResult) {
	o.Attempted++
	o.RowsInserted += r.Load.Inserted
	o.DuplicatesDropped += r.Load.DuplicatesDropped
	o.NullKeysDropped += r.Load.NullKeysDropped
	o.ValuesNulled += r.Load.ValuesNulled
	o.ColumnsAdded += len(r.ColumnsAdded)
	if r.Err != nil {
		o.Failed++
		o.Failures = append(o.Failures, r)
		return
	}
	o.Succeeded++
}
