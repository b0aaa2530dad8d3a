package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ============================================================================
// Database fakes
// ============================================================================

// fakeDB records statements and answers them through hooks. It satisfies
// DBTX, TxBeginner and Conn. Statements executed inside a transaction are
// recorded in the same log, committed or not.
type fakeDB struct {
	mu    sync.Mutex
	execs []string

	// onExec returns the error for one Exec; nil hook means success.
	onExec func(sql string, args []any) error
	// onQuery returns the rows for one Query.
	onQuery func(sql string, args []any) ([][]any, error)
	// onQueryRow returns the scanned values for one QueryRow.
	onQueryRow func(sql string, args []any) ([]any, error)

	commits   int
	rollbacks int
	released  int
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	f.execs = append(f.execs, sql)
	hook := f.onExec
	f.mu.Unlock()

	if hook != nil {
		if err := hook(sql, args); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	if strings.HasPrefix(sql, "UPDATE") {
		return pgconn.NewCommandTag("UPDATE 3"), nil
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.onQuery == nil {
		return &fakeRows{}, nil
	}
	data, err := f.onQuery(sql, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{data: data}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if f.onQueryRow == nil {
		return fakeRow{err: pgx.ErrNoRows}
	}
	vals, err := f.onQueryRow(sql, args)
	return fakeRow{vals: vals, err: err}
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Release() {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
}

// statements returns a copy of the executed statements.
func (f *fakeDB) statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.execs...)
}

// countPrefix counts executed statements starting with prefix.
func (f *fakeDB) countPrefix(prefix string) int {
	n := 0
	for _, s := range f.statements() {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

// fakeTx forwards statements to its fakeDB. Unimplemented pgx.Tx methods
// panic through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	db   *fakeDB
	done bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.done = true
	t.db.mu.Lock()
	t.db.commits++
	t.db.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.mu.Lock()
	t.db.rollbacks++
	t.db.mu.Unlock()
	return nil
}

// fakeRows iterates over in-memory rows.
type fakeRows struct {
	pgx.Rows
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.data[r.pos-1], dest)
}

func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     {}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.vals, dest)
}

func scanInto(vals []any, dest []any) error {
	if len(vals) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(vals), len(dest))
	}
	for i, v := range vals {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *int64:
			*d = v.(int64)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		case *[]byte:
			*d = v.([]byte)
		default:
			return errors.New("scan: unsupported target type")
		}
	}
	return nil
}

// fakeSource hands out the same fakeDB for every Acquire.
type fakeSource struct {
	db  *fakeDB
	err error
}

func (s fakeSource) Acquire(context.Context) (Conn, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.db, nil
}

// pgErr builds a driver error with the given SQLSTATE.
func pgErr(code, msg string) error {
	return &pgconn.PgError{Code: code, Message: msg}
}

// strp returns a pointer to s.
func strp(s string) *string { return &s }

// row builds a batch row from values; "" becomes nil.
func row(vals ...string) []*string {
	out := make([]*string, len(vals))
	for i, v := range vals {
		if v != "" {
			out[i] = strp(v)
		}
	}
	return out
}

// deref returns the value of p, or "<nil>".
func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

// withRegistry replaces the registry with ets for the duration of a test.
func withRegistry(t interface{ Cleanup(func()) }, ets ...EntityType) {
	registryMu.Lock()
	saved := registry
	registry = make(map[string]EntityType)
	registryMu.Unlock()

	for _, et := range ets {
		Register(et)
	}
	t.Cleanup(func() {
		registryMu.Lock()
		registry = saved
		registryMu.Unlock()
	})
}

// windType is a small loadable entity type used across tests.
var windType = EntityType{
	Key:        "einheitenwind",
	Table:      "wind_extended",
	Category:   "wind",
	Renames:    map[string]string{"LokationMaStRNummer": "LokationMastrNummer"},
	PrimaryKey: "EinheitMastrNummer",
	Columns: []ColumnSpec{
		{Name: "EinheitMastrNummer", Type: ColumnText},
		{Name: "Inbetriebnahmedatum", Type: ColumnDate},
		{Name: "DatumLetzteAktualisierung", Type: ColumnTimestamp},
		{Name: "Bruttoleistung", Type: ColumnDouble},
		{Name: "Gemeindeschluessel", Type: ColumnText},
		{Name: "Postleitzahl", Type: ColumnText},
		{Name: "Lage", Type: ColumnText, Catalog: true},
		{Name: "Laengengrad", Type: ColumnDouble},
		{Name: "Breitengrad", Type: ColumnDouble},
	},
	Loadable: true,
}
