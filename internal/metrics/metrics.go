// Package metrics exposes ingestion counters in prometheus format.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
)

const namespace = "mastr"

// Recorder owns a registry with all ingestion metrics of one process.
type Recorder struct {
	Registry *prometheus.Registry

	partitions   *prometheus.CounterVec
	errors       *prometheus.CounterVec
	rows         *prometheus.CounterVec
	duplicates   *prometheus.CounterVec
	nullKeys     *prometheus.CounterVec
	nulled       *prometheus.CounterVec
	columnsAdded *prometheus.CounterVec
	repairs      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	stage        *prometheus.GaugeVec
	lastSuccess  prometheus.Gauge
	lastFinished prometheus.Gauge
}

// NewRecorder registers every metric on a fresh registry, together with the
// Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		partitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_total",
			Help:      "Partitions processed, by table and status.",
		}, []string{"table", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_errors_total",
			Help:      "Failed partitions by error code.",
		}, []string{"code"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_inserted_total",
			Help:      "Rows inserted into destination tables.",
		}, []string{"table"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Rows dropped because their primary key was already present.",
		}, []string{"table"}),
		nullKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "null_keys_dropped_total",
			Help:      "Rows dropped because their primary key was missing.",
		}, []string{"table"}),
		nulled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_nulled_total",
			Help:      "Values nulled after the destination type rejected them.",
		}, []string{"table"}),
		columnsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_added_total",
			Help:      "Columns added to destination tables during the run.",
		}, []string{"table"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xml_repairs_total",
			Help:      "Malformed XML fragments excised before parsing.",
		}, []string{"table"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_duration_seconds",
			Help:      "Wall time per partition from open to commit.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"table"}),
		stage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_stage",
			Help:      "1 for the stage the pipeline is currently in.",
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run completed, 0 if it failed.",
		}),
		lastFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_finished_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	r.Registry.MustRegister(
		r.partitions, r.errors, r.rows, r.duplicates, r.nullKeys, r.nulled,
		r.columnsAdded, r.repairs, r.duration, r.stage,
		r.lastSuccess, r.lastFinished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObservePartition records one coordinator result. Safe for concurrent use.
func (r *Recorder) ObservePartition(res core.PartitionResult) {
	status := "ok"
	if res.Err != nil {
		status = "failed"
		r.errors.WithLabelValues(core.CodeOf(res.Err)).Inc()
	}
	r.partitions.WithLabelValues(res.Table, status).Inc()
	r.rows.WithLabelValues(res.Table).Add(float64(res.Load.Inserted))
	r.duplicates.WithLabelValues(res.Table).Add(float64(res.Load.DuplicatesDropped))
	r.nullKeys.WithLabelValues(res.Table).Add(float64(res.Load.NullKeysDropped))
	r.nulled.WithLabelValues(res.Table).Add(float64(res.Load.ValuesNulled))
	r.columnsAdded.WithLabelValues(res.Table).Add(float64(len(res.ColumnsAdded)))
	r.repairs.WithLabelValues(res.Table).Add(float64(res.Repairs))
	r.duration.WithLabelValues(res.Table).Observe(res.Duration.Seconds())
}

// SetStage marks stage as current and clears the previous one.
func (r *Recorder) SetStage(stage string) {
	r.stage.Reset()
	r.stage.WithLabelValues(stage).Set(1)
}

// FinishRun records the final state of a run.
func (r *Recorder) FinishRun(ok bool, at time.Time) {
	if ok {
		r.lastSuccess.Set(1)
	} else {
		r.lastSuccess.Set(0)
	}
	r.lastFinished.Set(float64(at.Unix()))
}

// Push sends the registry to a pushgateway, grouped by run ID.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	pusher := push.New(url, job).Gatherer(r.Registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
