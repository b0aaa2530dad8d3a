package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

const (
	// DefaultMaxInsertAttempts bounds the insert retry loop per partition.
	DefaultMaxInsertAttempts = 10000

	// DefaultChunkRows is the number of rows per INSERT statement.
	DefaultChunkRows = 1000

	// maxParams is PostgreSQL's bind parameter limit per statement.
	maxParams = 65535
)

// Loader inserts row batches, recovering from rejected values and
// pre-existing primary keys.
type Loader struct {
	db          TxBeginner
	schema      string
	ChunkRows   int
	MaxAttempts int
}

// NewLoader returns a Loader writing into schema.
func NewLoader(db TxBeginner, schema string) *Loader {
	if schema == "" {
		schema = "public"
	}
	return &Loader{
		db:          db,
		schema:      schema,
		ChunkRows:   DefaultChunkRows,
		MaxAttempts: DefaultMaxInsertAttempts,
	}
}

// Load inserts b into the table of et. Each attempt runs in its own
// transaction, so a failed attempt leaves no rows behind.
//
// A data exception nulls every occurrence of the rejected literal and retries.
// A unique violation drops rows whose key already exists (and in-batch
// duplicates) and retries. Anything else aborts the partition. Existing rows
// are never updated.
func (l *Loader) Load(ctx context.Context, et EntityType, b *RowBatch) (LoadResult, error) {
	var res LoadResult
	log := logging.WithFields(ctx, "table", b.Table, "entity_type", et.Key)

	if n := dropNullKeys(et, b); n > 0 {
		res.NullKeysDropped = n
		log.Warn("entries without primary key dropped", "count", n)
	}

	for res.Attempts < l.MaxAttempts {
		if b.Len() == 0 {
			return res, nil
		}
		res.Attempts++

		err := l.insert(ctx, b)
		if err == nil {
			res.Inserted = b.Len()
			return res, nil
		}

		switch ClassifyPgError(err) {
		case ErrTypeCoercion:
			lit, ok := OffendingLiteral(err)
			if !ok {
				return res, fmt.Errorf("load %s: %w: %w", b.Table, ErrFatalLoad, err)
			}
			n := nullLiteral(b, lit)
			if n == 0 {
				return res, fmt.Errorf("load %s: rejected value %q not found in batch: %w: %w", b.Table, lit, ErrFatalLoad, err)
			}
			res.ValuesNulled += n
			log.Warn("entry deleted due to its false data type", "value", lit, "occurrences", n)

		case ErrUniqueness:
			n, derr := l.dropExisting(ctx, et, b)
			if derr != nil {
				return res, fmt.Errorf("load %s: %w", b.Table, derr)
			}
			if n == 0 {
				return res, fmt.Errorf("load %s: unique violation without duplicate keys: %w: %w", b.Table, ErrFatalLoad, err)
			}
			res.DuplicatesDropped += n
			log.Warn(fmt.Sprintf("%d entries already existed in the database", n))

		default:
			return res, fmt.Errorf("load %s: %w: %w", b.Table, ErrFatalLoad, err)
		}
	}

	return res, fmt.Errorf("load %s: gave up after %d attempts: %w", b.Table, res.Attempts, ErrFatalLoad)
}

// insert writes all rows of b in one transaction.
func (l *Loader) insert(ctx context.Context, b *RowBatch) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	chunk := l.ChunkRows
	if chunk <= 0 {
		chunk = DefaultChunkRows
	}
	if limit := maxParams / max(1, len(b.Columns)); chunk > limit {
		chunk = limit
	}

	prefix := "INSERT INTO " + qualifiedName(l.schema, b.Table) +
		" (" + strings.Join(quoteColumns(b.Columns), ", ") + ") VALUES "

	for start := 0; start < len(b.Rows); start += chunk {
		end := min(start+chunk, len(b.Rows))
		sql, args := insertStatement(prefix, len(b.Columns), b.Rows[start:end])
		// Simple protocol sends values as untyped literals so the server
		// performs every cast and reports the offending literal on failure.
		args = append([]any{pgx.QueryExecModeSimpleProtocol}, args...)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// insertStatement renders a multi-row VALUES list with positional parameters.
func insertStatement(prefix string, width int, rows [][]*string) (string, []any) {
	var sb strings.Builder
	sb.WriteString(prefix)
	args := make([]any, 0, width*len(rows))

	n := 1
	for r, row := range rows {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < width; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			n++

			var v any
			if c < len(row) && row[c] != nil {
				v = *row[c]
			}
			args = append(args, v)
		}
		sb.WriteByte(')')
	}
	return sb.String(), args
}

// nullLiteral replaces every value equal to lit with nil.
func nullLiteral(b *RowBatch, lit string) int {
	n := 0
	for _, row := range b.Rows {
		for i, v := range row {
			if v != nil && *v == lit {
				row[i] = nil
				n++
			}
		}
	}
	return n
}

// dropNullKeys removes rows whose primary key is missing.
func dropNullKeys(et EntityType, b *RowBatch) int {
	pk := b.ColumnIndex(et.PrimaryKey)
	if pk < 0 {
		n := len(b.Rows)
		b.Rows = nil
		return n
	}
	kept := b.Rows[:0]
	for _, row := range b.Rows {
		if row[pk] != nil {
			kept = append(kept, row)
		}
	}
	n := len(b.Rows) - len(kept)
	b.Rows = kept
	return n
}

// dropExisting removes rows whose key is already stored and duplicate keys
// within the batch (first occurrence wins). Returns the number removed.
func (l *Loader) dropExisting(ctx context.Context, et EntityType, b *RowBatch) (int, error) {
	pk := b.ColumnIndex(et.PrimaryKey)
	if pk < 0 {
		return 0, fmt.Errorf("primary key %s not in batch", et.PrimaryKey)
	}

	keys := make([]string, 0, len(b.Rows))
	for _, row := range b.Rows {
		if row[pk] != nil {
			keys = append(keys, *row[pk])
		}
	}

	existing, err := l.existingKeys(ctx, et, keys)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(b.Rows))
	kept := b.Rows[:0]
	for _, row := range b.Rows {
		if row[pk] == nil {
			continue
		}
		k := *row[pk]
		if existing[k] || seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, row)
	}
	n := len(b.Rows) - len(kept)
	b.Rows = kept
	return n, nil
}

// existingKeys returns which of keys are already present in the table.
func (l *Loader) existingKeys(ctx context.Context, et EntityType, keys []string) (map[string]bool, error) {
	col := quoteIdentifier(et.PrimaryKey)
	query := fmt.Sprintf("SELECT DISTINCT %s::text FROM %s WHERE %s::text = ANY($1)",
		col, qualifiedName(l.schema, et.Table), col)

	rows, err := l.db.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		existing[k] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return existing, nil
}
