// Error taxonomy for the ingestion pipeline.
//
// Every failure surfaced by this module wraps one of the sentinel errors
// below, so callers decide policy with errors.Is. Codes are stable and
// appear in logs and the run report:
//
//	NET001 - Network: index page or archive transfer failed
//	NET002 - Not found: no archive link matched on the index page
//	ARC001 - Corrupt archive: ZIP cannot be opened or a member fails its CRC
//	PRT001 - Corrupt partition: XML unrecoverable after the repair budget
//	SCH001 - Schema conflict: concurrent column addition, treated as success
//	LOD001 - Type coercion: value rejected by the destination type, nulled and retried
//	LOD002 - Uniqueness: primary key already present, rows dropped and retried
//	LOD003 - Fatal load: any other insert failure, partition aborted
//	GEO001 - Spatial unavailable: PostGIS missing, spatial step skipped
//	INF001 - Infrastructure: database unreachable or similar, run aborted
//
// Errors that carry no sentinel map to ERR000.
package core

import (
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
)

// Category groups error codes by pipeline stage.
type Category string

const (
	CategoryAcquisition    Category = "acquisition"
	CategoryArchive        Category = "archive"
	CategoryPartition      Category = "partition"
	CategorySchema         Category = "schema"
	CategoryLoad           Category = "load"
	CategorySpatial        Category = "spatial"
	CategoryInfrastructure Category = "infrastructure"
)

// Error is a categorized pipeline error.
type Error struct {
	Category    Category
	Code        string
	Message     string
	Recoverable bool // Run continues when the error is confined to one partition or step
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrNetwork             = &Error{CategoryAcquisition, "NET001", "network failure", false}
	ErrNotFound            = &Error{CategoryAcquisition, "NET002", "no archive link found", false}
	ErrCorruptArchive      = &Error{CategoryArchive, "ARC001", "corrupt archive", false}
	ErrCorruptPartition    = &Error{CategoryPartition, "PRT001", "corrupt partition", true}
	ErrSchemaConflict      = &Error{CategorySchema, "SCH001", "column already exists", true}
	ErrTypeCoercion        = &Error{CategoryLoad, "LOD001", "value rejected by destination type", true}
	ErrUniqueness          = &Error{CategoryLoad, "LOD002", "primary key already present", true}
	ErrFatalLoad           = &Error{CategoryLoad, "LOD003", "insert failed", true}
	ErrSpatialUnavailable  = &Error{CategorySpatial, "GEO001", "PostGIS unavailable", true}
	ErrFatalInfrastructure = &Error{CategoryInfrastructure, "INF001", "infrastructure failure", false}
)

// PostgreSQL SQLSTATE values the loader reacts to.
const (
	sqlStateUniqueViolation = "23505"
	sqlStateDuplicateColumn = "42701"
	sqlStateDuplicateObject = "42710"
	sqlClassDataException   = "22"
)

// CodeOf returns the code of the first pipeline error wrapped by err.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "ERR000"
}

// Recoverable reports whether err leaves the run as a whole intact.
// Unclassified errors are not recoverable.
func Recoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable
	}
	return false
}

// ClassifyPgError maps a driver error to its pipeline sentinel.
// Returns nil when err is not a PostgreSQL error the pipeline handles.
func ClassifyPgError(err error) *Error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch {
	case pgErr.Code == sqlStateUniqueViolation:
		return ErrUniqueness
	case pgErr.Code == sqlStateDuplicateColumn, pgErr.Code == sqlStateDuplicateObject:
		return ErrSchemaConflict
	case len(pgErr.Code) == 5 && pgErr.Code[:2] == sqlClassDataException:
		return ErrTypeCoercion
	}
	return nil
}

// Rejected values are quoted either at the end of the message
// (`invalid input syntax for type double precision: "abc"`) or up front
// (`value "99999999999" is out of range for type integer`). German-locale
// servers quote with »…«.
var literalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`: "(.*)"\s*$`),
	regexp.MustCompile(`"([^"]*)"`),
	regexp.MustCompile(`»([^«]*)«`),
}

// OffendingLiteral extracts the rejected value from a data exception.
func OffendingLiteral(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	for _, re := range literalPatterns {
		if m := re.FindStringSubmatch(pgErr.Message); m != nil {
			return m[1], true
		}
	}
	return "", false
}
