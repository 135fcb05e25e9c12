// Package metrics exposes Prometheus instrumentation for scoring cycles and signals.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signalscope"

// Cycle kinds used as the "kind" label of the duration histogram.
const (
	KindScoring   = "scoring"
	KindLifecycle = "lifecycle"
	KindAggregate = "aggregate"
)

// Recorder records pipeline metrics on its own registry.
type Recorder struct {
	registry         *prometheus.Registry
	cycleInstruments *prometheus.CounterVec
	signalsOpened    *prometheus.CounterVec
	signalsClosed    *prometheus.CounterVec
	cycleDuration    *prometheus.HistogramVec
	activeSignals    *prometheus.GaugeVec
}

// New creates a recorder backed by a fresh registry that also carries
// the Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the pipeline metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		cycleInstruments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycle_instruments_total",
				Help:      "Instruments handled by scoring cycles, by outcome",
			},
			[]string{"source", "outcome"},
		),
		signalsOpened: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_opened_total",
				Help:      "Signals opened",
			},
			[]string{"source"},
		),
		signalsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_closed_total",
				Help:      "Signals closed, by terminal status",
			},
			[]string{"source", "status"},
		),
		cycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of pipeline cycles in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"source", "kind"},
		),
		activeSignals: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_signals",
				Help:      "Signals currently active",
			},
			[]string{"source"},
		),
	}
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordInstrument counts one instrument outcome ("scored" or a skip reason).
func (r *Recorder) RecordInstrument(source, outcome string) {
	if r == nil {
		return
	}
	r.cycleInstruments.WithLabelValues(source, outcome).Inc()
}

// RecordInstruments counts n instruments with the same outcome.
func (r *Recorder) RecordInstruments(source, outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.cycleInstruments.WithLabelValues(source, outcome).Add(float64(n))
}

// RecordSignalOpened counts a newly opened signal.
func (r *Recorder) RecordSignalOpened(source string) {
	if r == nil {
		return
	}
	r.signalsOpened.WithLabelValues(source).Inc()
}

// RecordSignalClosed counts a signal transition to status.
func (r *Recorder) RecordSignalClosed(source, status string) {
	if r == nil {
		return
	}
	r.signalsClosed.WithLabelValues(source, status).Inc()
}

// ObserveCycle records how long a cycle of kind took.
func (r *Recorder) ObserveCycle(source, kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.cycleDuration.WithLabelValues(source, kind).Observe(d.Seconds())
}

// SetActiveSignals sets the active signal gauge for source.
func (r *Recorder) SetActiveSignals(source string, n int) {
	if r == nil {
		return
	}
	r.activeSignals.WithLabelValues(source).Set(float64(n))
}
