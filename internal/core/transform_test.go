package core

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const windPayload = `<?xml version="1.0" encoding="utf-16"?>
<EinheitenWind>
  <EinheitWind>
    <EinheitMastrNummer>SEE900000000001</EinheitMastrNummer>
    <LokationMaStRNummer>SEL900000000001</LokationMaStRNummer>
    <Gemeindeschluessel>9162000</Gemeindeschluessel>
    <Inbetriebnahmedatum>2020-01-02</Inbetriebnahmedatum>
  </EinheitWind>
  <EinheitWind>
    <EinheitMastrNummer>SEE900000000002</EinheitMastrNummer>
    <Gemeindeschluessel>11000000</Gemeindeschluessel>
    <Inbetriebnahmedatum>unbekannt</Inbetriebnahmedatum>
    <Nabenhoehe>120</Nabenhoehe>
  </EinheitWind>
</EinheitenWind>`

var testDownloadDate = time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC)

func windPartition() Partition {
	return Partition{Name: "EinheitenWind.xml", EntityType: "einheitenwind", Table: "wind_extended", First: true}
}

// cell returns the value of column name in row r of b.
func cell(t *testing.T, b *RowBatch, r int, name string) string {
	t.Helper()
	i := b.ColumnIndex(name)
	if i < 0 {
		t.Fatalf("column %s missing from %v", name, b.Columns)
	}
	return deref(b.Rows[r][i])
}

func TestTransform_Utf16Partition(t *testing.T) {
	withRegistry(t, windType)
	tr := NewTransformer("bulk", testDownloadDate, nil)

	batch, stats, err := tr.Transform(context.Background(), windPartition(),
		bytes.NewReader(utf16LE(windPayload, true)))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	wantCols := []string{
		"EinheitMastrNummer", "LokationMastrNummer", "Gemeindeschluessel",
		"Inbetriebnahmedatum", "Nabenhoehe", ColumnSource, ColumnDownloadDate,
	}
	if !reflect.DeepEqual(batch.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", batch.Columns, wantCols)
	}
	if batch.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", batch.Len())
	}
	for i, r := range batch.Rows {
		if len(r) != len(batch.Columns) {
			t.Errorf("row %d has %d values, want %d", i, len(r), len(batch.Columns))
		}
	}

	checks := []struct {
		row  int
		col  string
		want string
	}{
		{0, "Gemeindeschluessel", "09162000"},
		{1, "Gemeindeschluessel", "11000000"},
		{0, "LokationMastrNummer", "SEL900000000001"},
		{1, "LokationMastrNummer", "<nil>"},
		{0, "Nabenhoehe", "<nil>"},
		{1, "Nabenhoehe", "120"},
		{0, "Inbetriebnahmedatum", "2020-01-02"},
		{1, "Inbetriebnahmedatum", "<nil>"},
		{0, ColumnSource, "bulk"},
		{1, ColumnDownloadDate, "20230615"},
	}
	for _, c := range checks {
		if got := cell(t, batch, c.row, c.col); got != c.want {
			t.Errorf("row %d %s = %q, want %q", c.row, c.col, got, c.want)
		}
	}

	if stats.CodesPadded != 1 {
		t.Errorf("CodesPadded = %d, want 1", stats.CodesPadded)
	}
	if stats.DatesNulled != 1 {
		t.Errorf("DatesNulled = %d, want 1", stats.DatesNulled)
	}
	if stats.Repairs != 0 {
		t.Errorf("Repairs = %d, want 0", stats.Repairs)
	}
}

func TestTransform_RepairsMalformedFragments(t *testing.T) {
	withRegistry(t, windType)
	tr := NewTransformer("bulk", testDownloadDate, nil)

	payload := `<Root>` +
		`<Row><EinheitMastrNummer>SEE1</EinheitMastrNummer>&bogus;<Nabenhoehe>80</Nabenhoehe></Row>` +
		`<Row><EinheitMastrNummer>SEE2</EinheitMastrNummer><Ort>Bad &broken; Ort</Ort></Row>` +
		`</Root>`

	batch, stats, err := tr.Transform(context.Background(), windPartition(), strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if stats.Repairs != 2 {
		t.Errorf("Repairs = %d, want 2", stats.Repairs)
	}
	if batch.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", batch.Len())
	}
	if got := cell(t, batch, 0, "Nabenhoehe"); got != "80" {
		t.Errorf("Nabenhoehe = %q, want 80", got)
	}
	if got := cell(t, batch, 1, "Ort"); got != "<nil>" {
		t.Errorf("Ort = %q, want nil after excision", got)
	}
}

func TestTransform_CorruptPartition(t *testing.T) {
	withRegistry(t, windType)

	tests := []struct {
		name       string
		payload    string
		maxRepairs int
	}{
		{
			name:       "truncated document",
			payload:    `<Root><Row><EinheitMastrNummer>SEE1</EinheitMastrNummer>`,
			maxRepairs: DefaultMaxRepairs,
		},
		{
			name:       "repair budget exhausted",
			payload:    `<Root><Row><EinheitMastrNummer>SEE1</EinheitMastrNummer>&a;<X>1</X></Row></Root>`,
			maxRepairs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransformer("bulk", testDownloadDate, nil)
			tr.MaxRepairs = tt.maxRepairs

			_, _, err := tr.Transform(context.Background(), windPartition(), strings.NewReader(tt.payload))
			if !errors.Is(err, ErrCorruptPartition) {
				t.Errorf("error = %v, want ErrCorruptPartition", err)
			}
			if CodeOf(err) != "PRT001" {
				t.Errorf("CodeOf() = %q, want PRT001", CodeOf(err))
			}
		})
	}
}

func TestTransform_UnknownEntityType(t *testing.T) {
	withRegistry(t)
	tr := NewTransformer("bulk", testDownloadDate, nil)

	_, _, err := tr.Transform(context.Background(), windPartition(), strings.NewReader("<Root/>"))
	if err == nil {
		t.Fatal("expected error for unregistered entity type")
	}
}

func TestTransform_AppliesCleanser(t *testing.T) {
	withRegistry(t, windType)
	cleanser := NewCleanser(Catalog{"888": "Windkraft an Land"})
	tr := NewTransformer("bulk", testDownloadDate, cleanser)

	payload := `<Root><Row>` +
		`<EinheitMastrNummer> SEE1 </EinheitMastrNummer>` +
		`<Lage>888</Lage>` +
		`<Bruttoleistung>4200,5</Bruttoleistung>` +
		`</Row></Root>`

	batch, stats, err := tr.Transform(context.Background(), windPartition(), strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := cell(t, batch, 0, "EinheitMastrNummer"); got != "SEE1" {
		t.Errorf("EinheitMastrNummer = %q, want trimmed", got)
	}
	if got := cell(t, batch, 0, "Lage"); got != "Windkraft an Land" {
		t.Errorf("Lage = %q, want catalog value", got)
	}
	if got := cell(t, batch, 0, "Bruttoleistung"); got != "4200.5" {
		t.Errorf("Bruttoleistung = %q, want 4200.5", got)
	}
	if stats.ValuesClean != 3 {
		t.Errorf("ValuesClean = %d, want 3", stats.ValuesClean)
	}
}

func TestExcise(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		pos    int
		want   string
		wantOK bool
	}{
		{"between tags", "<a>x</a>junk<b/>", 10, "<a>x</a><b/>", true},
		{"inside element text", "<a>bad</a>", 5, "<a></a>", true},
		{"nothing between brackets", "<a></a>", 3, "", false},
		{"no closing bracket before", "junk<a/>", 2, "", false},
		{"no opening bracket after", "<a/>junk", 6, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := excise([]byte(tt.data), tt.pos)
			if ok != tt.wantOK {
				t.Fatalf("excise ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && string(got) != tt.want {
				t.Errorf("excise = %q, want %q", got, tt.want)
			}
		})
	}
}
