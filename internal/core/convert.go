package core

// convert.go provides value conversions applied while transforming partitions.
//
// The export is mostly clean, but a few columns need help before PostgreSQL
// accepts them:
//   - administrative codes lose their leading zero when the export was produced
//     through a numeric pipeline (Gemeindeschluessel, Postleitzahl)
//   - date columns mix plain dates, timestamps and fractional seconds
//   - numeric columns occasionally carry German decimal commas
//
// All conversions report failure instead of guessing, so the caller can null
// the value and let the database keep the column type.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// nullSentinels are textual placeholders that mean "no value".
var nullSentinels = map[string]bool{
	"":     true,
	"None": true,
	"<NA>": true,
	"nan":  true,
	"NaN":  true,
}

// IsNullSentinel reports whether s is a placeholder for a missing value.
func IsNullSentinel(s string) bool {
	return nullSentinels[strings.TrimSpace(s)]
}

// CodeWidths lists the administrative code columns and their canonical width.
var CodeWidths = map[string]int{
	"Gemeindeschluessel": 8,
	"Postleitzahl":       5,
}

var integerRegex = regexp.MustCompile(`^[+-]?\d+(\.0+)?$`)

// normalizeInteger strips a leading '+' and a trailing ".0" fraction.
func normalizeInteger(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !integerRegex.MatchString(s) {
		return "", false
	}
	s = strings.TrimPrefix(s, "+")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s, true
}

// PadCodeColumn restores a lost leading zero in one code column.
//
// Sentinel values become nil. When every remaining value is an integer, values
// exactly one character shorter than width get a leading "0"; otherwise the
// column is left as-is. Returns the number of padded values.
func PadCodeColumn(values []*string, width int) int {
	normalized := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		if IsNullSentinel(*v) {
			values[i] = nil
			continue
		}
		n, ok := normalizeInteger(*v)
		if !ok {
			return 0
		}
		normalized[i] = n
	}

	padded := 0
	for i, v := range values {
		if v == nil {
			continue
		}
		s := normalized[i]
		if len(s) == width-1 {
			s = "0" + s
			padded++
		}
		values[i] = &s
	}
	return padded
}

// Date layouts accepted for date and timestamp columns, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102",
	"02.01.2006",
}

// ParseDate parses s using the accepted layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CoerceDate re-emits s in canonical ISO form for the declared type.
// Returns false when s cannot be parsed; the caller nulls the value.
func CoerceDate(s string, typ ColumnType) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	if typ == ColumnTimestamp {
		return t.Format("2006-01-02 15:04:05.999999"), true
	}
	return t.Format("2006-01-02"), true
}

// NormalizeDecimal converts German number notation ("1.234,5") into the
// notation PostgreSQL accepts ("1234.5"). Values without a comma are
// returned unchanged.
func NormalizeDecimal(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ",") {
		return s
	}
	candidate := strings.ReplaceAll(s, ".", "")
	candidate = strings.Replace(candidate, ",", ".", 1)
	if _, err := strconv.ParseFloat(candidate, 64); err != nil {
		return s
	}
	return candidate
}

// DownloadDate formats t as the DatumDownload provenance value.
func DownloadDate(t time.Time) string {
	return t.Format("20060102")
}
