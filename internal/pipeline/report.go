package pipeline

import (
	"time"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
)

// Stage is a state of the orchestrator.
type Stage string

const (
	StageResolveConfig  Stage = "resolve_config"
	StageAcquireArchive Stage = "acquire_archive"
	StageValidate       Stage = "validate_archive"
	StageTransformLoad  Stage = "transform_load"
	StageSpatialIndex   Stage = "spatial_index"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// Where the archive of a run came from.
const (
	SourceExplicit = "explicit"
	SourceReused   = "reused"
	SourceMirror   = "mirror"
	SourceDownload = "download"
)

// Failure describes one failed partition.
type Failure struct {
	Partition string `json:"partition"`
	Table     string `json:"table"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

// Report is the outcome of a run. It is returned even when the run fails.
type Report struct {
	RunID       string    `json:"runId"`
	Stage       Stage     `json:"stage"`
	Archive     string    `json:"archive,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishDate time.Time `json:"publishDate,omitzero"`
	Skipped     bool      `json:"skipped,omitempty"`

	Partitions        int       `json:"partitions"`
	Succeeded         int       `json:"succeeded"`
	Failed            int       `json:"failed"`
	Failures          []Failure `json:"failures,omitempty"`
	RowsInserted      int       `json:"rowsInserted"`
	DuplicatesDropped int       `json:"duplicatesDropped"`
	NullKeysDropped   int       `json:"nullKeysDropped"`
	ValuesNulled      int       `json:"valuesNulled"`
	ColumnsAdded      int       `json:"columnsAdded"`

	SpatialAvailable bool     `json:"spatialAvailable"`
	IndexedTables    []string `json:"indexedTables,omitempty"`

	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt,omitzero"`
	Duration   time.Duration `json:"durationNs"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the run reached StageDone.
func (r *Report) OK() bool { return r.Stage == StageDone }

// applyOutcome copies the coordinator totals into the report.
func (r *Report) applyOutcome(o core.Outcome) {
	r.Partitions = o.Attempted
	r.Succeeded = o.Succeeded
	r.Failed = o.Failed
	r.RowsInserted = o.RowsInserted
	r.DuplicatesDropped = o.DuplicatesDropped
	r.NullKeysDropped = o.NullKeysDropped
	r.ValuesNulled = o.ValuesNulled
	r.ColumnsAdded = o.ColumnsAdded
	r.Failures = r.Failures[:0]
	for _, f := range o.Failures {
		r.Failures = append(r.Failures, Failure{
			Partition: f.Partition,
			Table:     f.Table,
			Code:      core.CodeOf(f.Err),
			Error:     f.Err.Error(),
		})
	}
}

// Record converts the report into a run log row.
func (r *Report) Record() core.RunRecord {
	rec := core.RunRecord{
		RunID:             r.RunID,
		Archive:           r.Archive,
		Source:            r.Source,
		State:             string(r.Stage),
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		Attempted:         r.Partitions,
		Succeeded:         r.Succeeded,
		Failed:            r.Failed,
		RowsInserted:      r.RowsInserted,
		DuplicatesDropped: r.DuplicatesDropped,
		ValuesNulled:      r.ValuesNulled,
		ColumnsAdded:      r.ColumnsAdded,
		IndexedTables:     len(r.IndexedTables),
		Error:             r.Error,
	}
	if len(r.Failures) > 0 {
		rec.Failures = make(map[string]string, len(r.Failures))
		for _, f := range r.Failures {
			rec.Failures[f.Partition] = f.Code
		}
	}
	return rec
}
