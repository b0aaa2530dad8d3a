package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
)

func TestObservePartition(t *testing.T) {
	r := NewRecorder()

	r.ObservePartition(core.PartitionResult{
		Partition:    "EinheitenWind_1.xml",
		Table:        "wind_extended",
		Load:         core.LoadResult{Inserted: 10, DuplicatesDropped: 2, NullKeysDropped: 4, ValuesNulled: 1},
		ColumnsAdded: []string{"Neu"},
		Repairs:      3,
		Duration:     time.Second,
	})
	r.ObservePartition(core.PartitionResult{
		Partition: "EinheitenWind_2.xml",
		Table:     "wind_extended",
		Err:       fmt.Errorf("parse: %w", core.ErrCorruptPartition),
	})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"ok partitions", testutil.ToFloat64(r.partitions.WithLabelValues("wind_extended", "ok")), 1},
		{"failed partitions", testutil.ToFloat64(r.partitions.WithLabelValues("wind_extended", "failed")), 1},
		{"errors by code", testutil.ToFloat64(r.errors.WithLabelValues("PRT001")), 1},
		{"rows", testutil.ToFloat64(r.rows.WithLabelValues("wind_extended")), 10},
		{"duplicates", testutil.ToFloat64(r.duplicates.WithLabelValues("wind_extended")), 2},
		{"null keys", testutil.ToFloat64(r.nullKeys.WithLabelValues("wind_extended")), 4},
		{"nulled", testutil.ToFloat64(r.nulled.WithLabelValues("wind_extended")), 1},
		{"columns", testutil.ToFloat64(r.columnsAdded.WithLabelValues("wind_extended")), 1},
		{"repairs", testutil.ToFloat64(r.repairs.WithLabelValues("wind_extended")), 3},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestObservePartition_Concurrent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ObservePartition(core.PartitionResult{Table: "solar_extended", Load: core.LoadResult{Inserted: 2}})
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(r.rows.WithLabelValues("solar_extended")); got != 100 {
		t.Errorf("rows = %v, want 100", got)
	}
}

func TestSetStage(t *testing.T) {
	r := NewRecorder()
	r.SetStage("acquire_archive")
	r.SetStage("transform_load")

	if n := testutil.CollectAndCount(r.stage); n != 1 {
		t.Errorf("stage series = %d, want only the current one", n)
	}
	if got := testutil.ToFloat64(r.stage.WithLabelValues("transform_load")); got != 1 {
		t.Errorf("current stage = %v, want 1", got)
	}
}

func TestFinishRun(t *testing.T) {
	r := NewRecorder()
	at := time.Unix(1700000000, 0)

	r.FinishRun(false, at)
	if got := testutil.ToFloat64(r.lastSuccess); got != 0 {
		t.Errorf("lastSuccess = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.lastFinished); got != 1700000000 {
		t.Errorf("lastFinished = %v", got)
	}
}

func TestPush(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	if err := r.Push(context.Background(), srv.URL, "mastr_ingest", "run-1"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !strings.Contains(gotPath, "/job/mastr_ingest") || !strings.Contains(gotPath, "/run_id/run-1") {
		t.Errorf("path = %q", gotPath)
	}
}

func TestPush_GatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewRecorder().Push(context.Background(), srv.URL, "mastr_ingest", "")
	if err == nil || errors.Unwrap(err) == nil {
		t.Errorf("Push() error = %v, want wrapped gateway error", err)
	}
}
