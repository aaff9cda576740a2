package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fcst_verif"

// Metrics holds the Prometheus counters, histograms, and gauges for a verification run.
type Metrics struct {
	UnitsProcessed  *prometheus.CounterVec // labels: variable, outcome={completed,skipped,failed}
	RegionSkips     *prometheus.CounterVec // labels: variable, region
	ROCDegenerate   *prometheus.CounterVec // labels: variable, category
	RecordsEmitted  *prometheus.CounterVec // labels: sink
	InputReads      *prometheus.CounterVec // labels: kind={forecast,observation,threshold}, outcome={ok,missing,error}
	ThresholdCache  *prometheus.CounterVec // labels: result={hit,miss}
	UnitDuration    prometheus.Histogram
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UnitsProcessed,
		m.RegionSkips,
		m.ROCDegenerate,
		m.RecordsEmitted,
		m.InputReads,
		m.ThresholdCache,
		m.UnitDuration,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UnitsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Verification units (variable, init) by outcome.",
		}, []string{"variable", "outcome"}),
		RegionSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_skips_total",
			Help:      "Regions skipped inside otherwise completed units.",
		}, []string{"variable", "region"}),
		ROCDegenerate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roc_degenerate_total",
			Help:      "ROC (lead, category) combinations skipped for a single observed class.",
		}, []string{"variable", "category"}),
		RecordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Score records written by sink.",
		}, []string{"sink"}),
		InputReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_reads_total",
			Help:      "Input file reads by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ThresholdCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_cache_total",
			Help:      "Threshold cache lookups by result.",
		}, []string{"result"}),
		UnitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Duration of one (variable, init) verification unit.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a verification run is active, 0 otherwise.",
		}),
	}
}
