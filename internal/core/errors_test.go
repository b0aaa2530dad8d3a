package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyPgError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *Error
	}{
		{"unique violation", pgErr("23505", "duplicate key value"), ErrUniqueness},
		{"duplicate column", pgErr("42701", `column "x" already exists`), ErrSchemaConflict},
		{"duplicate object", pgErr("42710", "already exists"), ErrSchemaConflict},
		{"invalid text representation", pgErr("22P02", `invalid input syntax for type double precision: "abc"`), ErrTypeCoercion},
		{"datetime overflow", pgErr("22008", `date/time field value out of range: "2023-02-30"`), ErrTypeCoercion},
		{"wrapped driver error", fmt.Errorf("insert: %w", pgErr("23505", "dup")), ErrUniqueness},
		{"undefined table", pgErr("42P01", "relation does not exist"), nil},
		{"not a driver error", errors.New("boom"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyPgError(tt.err); got != tt.want {
				t.Errorf("ClassifyPgError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOffendingLiteral(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   string
		wantOK bool
	}{
		{"double precision", pgErr("22P02", `invalid input syntax for type double precision: "12a"`), "12a", true},
		{"date out of range", pgErr("22008", `date/time field value out of range: "2023-02-30"`), "2023-02-30", true},
		{"quote inside literal", pgErr("22P02", `invalid input syntax for type integer: "5"x"`), `5"x`, true},
		{"integer out of range", pgErr("22003", `value "99999999999" is out of range for type integer`), "99999999999", true},
		{"double out of range", pgErr("22003", `"1e400" is out of range for type double precision`), "1e400", true},
		{"german quotes", pgErr("22P02", `ungültige Eingabesyntax für Typ double precision: »k.A.«`), "k.A.", true},
		{"no literal", pgErr("22003", "numeric field overflow"), "", false},
		{"plain error", errors.New(`bad: "x"`), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OffendingLiteral(tt.err)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("OffendingLiteral() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCodeOfAndRecoverable(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantCode        string
		wantRecoverable bool
	}{
		{"nil", nil, "", false},
		{"network", fmt.Errorf("fetch: %w: timeout", ErrNetwork), "NET001", false},
		{"corrupt partition", fmt.Errorf("transform: %w", ErrCorruptPartition), "PRT001", true},
		{"fatal load", fmt.Errorf("load: %w: %w", ErrFatalLoad, errors.New("x")), "LOD003", true},
		{"spatial", ErrSpatialUnavailable, "GEO001", true},
		{"unclassified", errors.New("boom"), "ERR000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.wantCode {
				t.Errorf("CodeOf() = %q, want %q", got, tt.wantCode)
			}
			if got := Recoverable(tt.err); got != tt.wantRecoverable {
				t.Errorf("Recoverable() = %v, want %v", got, tt.wantRecoverable)
			}
		})
	}
}
