package core

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestEnsureTable_OncePerRun(t *testing.T) {
	db := &fakeDB{}
	m := NewSchemaManager(db, "mastr")
	state := NewRunState()
	ctx := context.Background()

	created, err := m.EnsureTable(ctx, state, windType)
	if err != nil || !created {
		t.Fatalf("first EnsureTable = (%v, %v), want (true, nil)", created, err)
	}
	created, err = m.EnsureTable(ctx, state, windType)
	if err != nil || created {
		t.Fatalf("second EnsureTable = (%v, %v), want (false, nil)", created, err)
	}

	stmts := db.statements()
	if len(stmts) != 2 {
		t.Fatalf("executed %d statements, want 2: %v", len(stmts), stmts)
	}
	if stmts[0] != `DROP TABLE IF EXISTS "mastr"."wind_extended" CASCADE` {
		t.Errorf("drop = %q", stmts[0])
	}
	if !state.created["einheitenwind"] {
		t.Error("state should record einheitenwind as created")
	}
}

func TestEnsureTable_ConcurrentCallersCreateOnce(t *testing.T) {
	db := &fakeDB{}
	m := NewSchemaManager(db, "public")
	state := NewRunState()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EnsureTable(context.Background(), state, windType)
		}()
	}
	wg.Wait()

	if n := db.countPrefix("CREATE TABLE"); n != 1 {
		t.Errorf("CREATE TABLE executed %d times, want 1", n)
	}
}

func TestCreateTableSQL(t *testing.T) {
	et := EntityType{
		Key:        "anlagenkwk",
		Table:      "kwk",
		PrimaryKey: "KwkMastrNummer",
		Columns: []ColumnSpec{
			{Name: "Zulassungsdatum", Type: ColumnDate},
			{Name: "ThermischeNutzleistung", Type: ColumnDouble},
		},
	}

	sql := createTableSQL(`"public"."kwk"`, et)

	wantParts := []string{
		`CREATE TABLE "public"."kwk" (`,
		`"KwkMastrNummer" text NOT NULL`,
		`"Zulassungsdatum" date`,
		`"ThermischeNutzleistung" double precision`,
		`"DatenQuelle" text`,
		`"DatumDownload" date`,
		`PRIMARY KEY ("KwkMastrNummer")`,
	}
	for _, p := range wantParts {
		if !strings.Contains(sql, p) {
			t.Errorf("CREATE TABLE missing %q:\n%s", p, sql)
		}
	}
	if strings.Index(sql, "KwkMastrNummer") > strings.Index(sql, "Zulassungsdatum") {
		t.Error("undeclared primary key column should come first")
	}
}

func TestEvolveColumns(t *testing.T) {
	db := &fakeDB{
		onQuery: func(sql string, args []any) ([][]any, error) {
			return [][]any{{"EinheitMastrNummer"}, {"Bruttoleistung"}}, nil
		},
	}
	m := NewSchemaManager(db, "public")

	added, err := m.EvolveColumns(context.Background(), windType,
		[]string{"EinheitMastrNummer", "Nabenhoehe", "Bruttoleistung", "Nabenhoehe", "Hersteller"})
	if err != nil {
		t.Fatalf("EvolveColumns() error = %v", err)
	}
	if want := []string{"Nabenhoehe", "Hersteller"}; !reflect.DeepEqual(added, want) {
		t.Errorf("added = %v, want %v", added, want)
	}

	stmts := db.statements()
	want := `ALTER TABLE "public"."wind_extended" ADD COLUMN IF NOT EXISTS "Nabenhoehe" text`
	if len(stmts) != 2 || stmts[0] != want {
		t.Errorf("statements = %v, want first %q", stmts, want)
	}
}

func TestEvolveColumns_Idempotent(t *testing.T) {
	var mu sync.Mutex
	columns := []string{"EinheitMastrNummer", "Bruttoleistung"}
	db := &fakeDB{
		onQuery: func(string, []any) ([][]any, error) {
			mu.Lock()
			defer mu.Unlock()
			out := make([][]any, len(columns))
			for i, c := range columns {
				out[i] = []any{c}
			}
			return out, nil
		},
	}
	m := NewSchemaManager(db, "public")
	ctx := context.Background()
	observed := []string{"EinheitMastrNummer", "Nabenhoehe", "Hersteller"}

	added, err := m.EvolveColumns(ctx, windType, observed)
	if err != nil || len(added) != 2 {
		t.Fatalf("first EvolveColumns() = (%v, %v), want 2 added", added, err)
	}
	mu.Lock()
	columns = append(columns, added...)
	mu.Unlock()
	alters := db.countPrefix("ALTER TABLE")

	added, err = m.EvolveColumns(ctx, windType, observed)
	if err != nil {
		t.Fatalf("second EvolveColumns() error = %v", err)
	}
	if len(added) != 0 {
		t.Errorf("second call added %v, want nothing", added)
	}
	if n := db.countPrefix("ALTER TABLE"); n != alters {
		t.Errorf("second call executed %d ALTER statements, want 0", n-alters)
	}
}

func TestEvolveColumns_ConcurrentAdditionIsBenign(t *testing.T) {
	db := &fakeDB{
		onQuery: func(string, []any) ([][]any, error) {
			return [][]any{{"EinheitMastrNummer"}}, nil
		},
		onExec: func(sql string, _ []any) error {
			if strings.Contains(sql, `"Nabenhoehe"`) {
				return pgErr("42701", `column "Nabenhoehe" of relation "wind_extended" already exists`)
			}
			if strings.Contains(sql, `"Hersteller"`) {
				return pgErr("23505", "duplicate key value violates unique constraint")
			}
			return nil
		},
	}
	m := NewSchemaManager(db, "public")

	added, err := m.EvolveColumns(context.Background(), windType,
		[]string{"EinheitMastrNummer", "Nabenhoehe", "Hersteller"})
	if err != nil {
		t.Fatalf("EvolveColumns() error = %v, want benign race ignored", err)
	}
	if len(added) != 0 {
		t.Errorf("added = %v, want none", added)
	}
}

func TestEvolveColumns_MissingTable(t *testing.T) {
	m := NewSchemaManager(&fakeDB{}, "public")
	if _, err := m.EvolveColumns(context.Background(), windType, []string{"X"}); err == nil {
		t.Error("expected error when table does not exist")
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := map[string]string{
		"wind_extended":  `"wind_extended"`,
		`evil"; DROP --`: `"evil""; DROP --"`,
		"Laengengrad":    `"Laengengrad"`,
	}
	for in, want := range tests {
		if got := quoteIdentifier(in); got != want {
			t.Errorf("quoteIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}
