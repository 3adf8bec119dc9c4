package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	// OutcomeSuccess labels completed runs.
	OutcomeSuccess = "success"
	// OutcomeError labels failed runs (configuration or dependency issues).
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dqflagger",
			Name:      "runs_total",
			Help:      "Total number of flag-generation runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	samplesScannedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dqflagger",
			Name:      "samples_scanned_total",
			Help:      "Samples or trigger events compared against thresholds.",
		},
	)

	flagsWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dqflagger",
			Name:      "flags_written_total",
			Help:      "Flags serialised to the output segment file.",
		},
	)

	fetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dqflagger",
			Name:      "fetch_seconds",
			Help:      "Source construction (fetch + transform) latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	scanDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dqflagger",
			Name:      "scan_seconds",
			Help:      "Per-threshold scan latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)
)

// Register attaches dqflagger collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		samplesScannedTotal,
		flagsWrittenTotal,
		fetchDurationSeconds,
		scanDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run outcome.
func ObserveRun(outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
}

// ObserveFetch records the duration of the fetch pass.
func ObserveFetch(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveScan records one threshold scan and the samples it visited.
func ObserveScan(duration time.Duration, samples int) {
	if duration < 0 {
		duration = 0
	}
	scanDurationSeconds.Observe(duration.Seconds())
	samplesScannedTotal.Add(float64(samples))
}

// ObserveFlagsWritten counts flags serialised to disk.
func ObserveFlagsWritten(n int) {
	flagsWrittenTotal.Add(float64(n))
}

// Push publishes the registry to a Pushgateway. Batch runs exit immediately
// after finishing, so scraping is not an option; an empty gateway URL
// disables the push.
func Push(gateway, job string, reg prometheus.Gatherer) error {
	if gateway == "" {
		return nil
	}
	return push.New(gateway, job).Gatherer(reg).Push()
}
