package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels shared by spawn and termination metrics.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	registry = prometheus.NewRegistry()

	spawnAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forkrun",
		Name:      "spawn_attempts_total",
		Help:      "Spawns that completed, by result.",
	}, []string{"result"})

	spawnRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forkrun",
		Name:      "spawn_retries_total",
		Help:      "Spawn attempts retried after the executable was busy.",
	})

	runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forkrun",
		Name:      "runs_total",
		Help:      "Runs that reached a terminal state, by outcome.",
	}, []string{"outcome"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "forkrun",
		Name:      "run_duration_seconds",
		Help:      "Wall time from spawn to the terminal event in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
	}, []string{"outcome"})

	outputBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forkrun",
		Name:      "output_bytes_total",
		Help:      "Bytes read from child processes, by stream.",
	}, []string{"stream"})

	terminations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forkrun",
		Name:      "terminations_total",
		Help:      "Process group kills issued after a timeout or cancellation, by result.",
	}, []string{"result"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "forkrun",
		Name:      "build_info",
		Help:      "Build metadata for the running forkrun binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(spawnAttempts, spawnRetries, runs, runDuration, outputBytes, terminations, buildInfo)
}

// Registry returns the Prometheus registry containing all forkrun metrics.
func Registry() *prometheus.Registry {
	return registry
}

// ObserveSpawn records a spawn that either started the process or gave up.
func ObserveSpawn(result string) {
	spawnAttempts.WithLabelValues(result).Inc()
}

// IncrementSpawnRetry records one retry of a busy executable.
func IncrementSpawnRetry() {
	spawnRetries.Inc()
}

// ObserveRun records the terminal state of a run and how long it took.
func ObserveRun(outcome string, d time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	runs.WithLabelValues(outcome).Inc()
	runDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AddOutputBytes accounts n bytes read from the named stream.
func AddOutputBytes(stream string, n int) {
	if stream == "" || n <= 0 {
		return
	}
	outputBytes.WithLabelValues(stream).Add(float64(n))
}

// ObserveTermination records a process group kill.
func ObserveTermination(result string) {
	terminations.WithLabelValues(result).Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// BuildInfo returns the go version and VCS revision of the running binary.
func BuildInfo() (goVersion, revision string) {
	goVersion = runtime.Version()
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.GoVersion != "" {
			goVersion = info.GoVersion
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				revision = setting.Value
			}
		}
	}
	return goVersion, revision
}
