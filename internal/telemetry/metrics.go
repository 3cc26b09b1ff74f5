package telemetry

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"odwatch/internal/logging"
)

type Metrics struct {
	Registry *prometheus.Registry

	StepRuns     *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	SourceRows   prometheus.Gauge
	DiffRows     prometheus.Gauge
	Issues       *prometheus.CounterVec
	SinkPushes   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odwatch_step_runs_total",
			Help: "Pipeline steps executed, by function and outcome (ok|anomaly).",
		}, []string{"function", "outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odwatch_step_duration_seconds",
			Help:    "Time spent in a pipeline step.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"function"}),
		SourceRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odwatch_source_rows",
			Help: "Rows in the dataset loaded from the source.",
		}),
		DiffRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odwatch_diff_rows",
			Help: "Rows in the last diff produced by the run.",
		}),
		Issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odwatch_issues_total",
			Help: "Issue creation attempts, by outcome (created|skipped|failed).",
		}, []string{"outcome"}),
		SinkPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odwatch_sink_pushes_total",
			Help: "Diff publications, by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
	m.Registry.MustRegister(m.StepRuns, m.StepDuration, m.SourceRows, m.DiffRows, m.Issues, m.SinkPushes)
	return m
}

func (m *Metrics) ObserveStep(function string, anomaly bool, d time.Duration) {
	outcome := "ok"
	if anomaly {
		outcome = "anomaly"
	}
	m.StepRuns.WithLabelValues(function, outcome).Inc()
	m.StepDuration.WithLabelValues(function).Observe(d.Seconds())
}

// Expose serves /metrics on addr in the background. The returned server
// is nil when addr is empty.
func (m *Metrics) Expose(addr string) (*http.Server, error) {
	if addr == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics listener", "err", err)
		}
	}()
	return srv, nil
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
