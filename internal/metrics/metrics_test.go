package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/forkrun/internal/metrics"
)

func scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}
	return rec.Body.String()
}

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.ObserveSpawn(metrics.ResultOK)
	metrics.IncrementSpawnRetry()
	metrics.ObserveRun("metrics_test_outcome", 20*time.Millisecond)
	metrics.ObserveRun("metrics_test_outcome", 30*time.Millisecond)
	metrics.AddOutputBytes("metrics_test_stream", 42)
	metrics.ObserveTermination(metrics.ResultOK)

	body := scrape(t)

	for _, line := range []string{
		`forkrun_runs_total{outcome="metrics_test_outcome"} 2`,
		`forkrun_output_bytes_total{stream="metrics_test_stream"} 42`,
		`forkrun_run_duration_seconds_count{outcome="metrics_test_outcome"} 2`,
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected metric line %q in body:\n%s", line, body)
		}
	}

	for _, name := range []string{
		"forkrun_spawn_attempts_total{",
		"forkrun_spawn_retries_total",
		"forkrun_terminations_total{",
		"forkrun_build_info{",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected metric %q in body:\n%s", name, body)
		}
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}

func TestAddOutputBytesIgnoresEmpty(t *testing.T) {
	metrics.AddOutputBytes("metrics_test_empty", 0)
	metrics.AddOutputBytes("", 10)

	body := scrape(t)
	if strings.Contains(body, `stream="metrics_test_empty"`) {
		t.Fatalf("expected no series for empty output:\n%s", body)
	}
}

func TestBuildInfoReportsGoVersion(t *testing.T) {
	goVersion, _ := metrics.BuildInfo()
	if goVersion == "" {
		t.Fatalf("unexpected go version %q", goVersion)
	}
}
