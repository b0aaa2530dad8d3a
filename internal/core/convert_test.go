package core

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// IsNullSentinel Tests
// ----------------------------------------------------------------------------

func TestIsNullSentinel(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"None", true},
		{"<NA>", true},
		{"nan", true},
		{"NaN", true},
		{"0", false},
		{"none", false},
		{"Nanga Parbat", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsNullSentinel(tt.input); got != tt.want {
				t.Errorf("IsNullSentinel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// PadCodeColumn Tests
// ----------------------------------------------------------------------------

func TestPadCodeColumn(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		input      []*string
		want       []string
		wantPadded int
	}{
		{
			name:       "seven digit municipality key padded",
			width:      8,
			input:      []*string{strp("9162000"), strp("11000000")},
			want:       []string{"09162000", "11000000"},
			wantPadded: 1,
		},
		{
			name:       "four digit postcode padded",
			width:      5,
			input:      []*string{strp("1067"), strp("80331")},
			want:       []string{"01067", "80331"},
			wantPadded: 1,
		},
		{
			name:       "float notation normalized before padding",
			width:      5,
			input:      []*string{strp("1067.0"), strp("+80331")},
			want:       []string{"01067", "80331"},
			wantPadded: 1,
		},
		{
			name:       "sentinels become nil",
			width:      5,
			input:      []*string{strp("nan"), nil, strp("None"), strp("1067")},
			want:       []string{"<nil>", "<nil>", "<nil>", "01067"},
			wantPadded: 1,
		},
		{
			name:       "two characters short left alone",
			width:      8,
			input:      []*string{strp("916200")},
			want:       []string{"916200"},
			wantPadded: 0,
		},
		{
			name:       "non integer value leaves column untouched",
			width:      5,
			input:      []*string{strp("1067"), strp("D-80331")},
			want:       []string{"1067", "D-80331"},
			wantPadded: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			padded := PadCodeColumn(tt.input, tt.width)
			if padded != tt.wantPadded {
				t.Errorf("padded = %d, want %d", padded, tt.wantPadded)
			}
			for i, v := range tt.input {
				if got := deref(v); got != tt.want[i] {
					t.Errorf("value[%d] = %q, want %q", i, got, tt.want[i])
				}
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Date Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		wantOK  bool
		wantDay string
	}{
		{"2023-06-15", true, "2023-06-15"},
		{"2023-06-15T10:30:00", true, "2023-06-15"},
		{"2023-06-15 10:30:00.1234567", true, "2023-06-15"},
		{"2023-06-15T10:30:00+02:00", true, "2023-06-15"},
		{"20230615", true, "2023-06-15"},
		{"15.06.2023", true, "2023-06-15"},
		{"", false, ""},
		{"next tuesday", false, ""},
		{"2023-13-45", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got.Format("2006-01-02") != tt.wantDay {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.wantDay)
			}
		})
	}
}

func TestCoerceDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		typ    ColumnType
		want   string
		wantOK bool
	}{
		{"date from timestamp", "2023-06-15T10:30:00", ColumnDate, "2023-06-15", true},
		{"timestamp keeps time", "2023-06-15T10:30:00", ColumnTimestamp, "2023-06-15 10:30:00", true},
		{"timestamp keeps fraction", "2023-06-15T10:30:00.25", ColumnTimestamp, "2023-06-15 10:30:00.25", true},
		{"german date", "01.02.2020", ColumnDate, "2020-02-01", true},
		{"garbage rejected", "unbekannt", ColumnDate, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceDate(tt.input, tt.typ)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CoerceDate(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// NormalizeDecimal Tests
// ----------------------------------------------------------------------------

func TestNormalizeDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1234.5", "1234.5"},
		{"1234,5", "1234.5"},
		{"1.234,56", "1234.56"},
		{" 7,5 ", "7.5"},
		{"-0,25", "-0.25"},
		{"a,b", "a,b"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeDecimal(tt.input); got != tt.want {
				t.Errorf("NormalizeDecimal(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDownloadDate(t *testing.T) {
	d := time.Date(2023, time.June, 15, 23, 59, 0, 0, time.UTC)
	if got := DownloadDate(d); got != "20230615" {
		t.Errorf("DownloadDate() = %q, want 20230615", got)
	}
}

func TestColumnTypeSQL(t *testing.T) {
	tests := map[ColumnType]string{
		ColumnText:      "text",
		ColumnDate:      "date",
		ColumnTimestamp: "timestamp",
		ColumnDouble:    "double precision",
		ColumnInteger:   "integer",
		ColumnBool:      "boolean",
	}
	for typ, want := range tests {
		if got := typ.SQL(); got != want {
			t.Errorf("%d.SQL() = %q, want %q", typ, got, want)
		}
	}
}
