// Package metrics exposes prometheus instrumentation for the engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts executions and observes their latency. It satisfies
// the engine's outcome-recorder hook.
type Recorder struct {
	executions   *prometheus.CounterVec
	instructions prometheus.Counter
	flashLoans   prometheus.Counter
	duration     prometheus.Histogram

	registry *prometheus.Registry
}

// NewRecorder registers the routerd collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routerd",
			Name:      "executions_total",
			Help:      "Executions processed, by outcome.",
		}, []string{"outcome"}),
		instructions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "routerd",
			Name:      "instructions_total",
			Help:      "Instructions executed across all batches.",
		}),
		flashLoans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "routerd",
			Name:      "flash_loans_total",
			Help:      "Flash loans settled.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "routerd",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock execution time per batch.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		registry: prometheus.NewRegistry(),
	}
	r.registry.MustRegister(r.executions, r.instructions, r.flashLoans, r.duration)
	return r
}

// ExecutionFinished records one execution outcome.
func (r *Recorder) ExecutionFinished(committed bool, instructions, flashLoans int, d time.Duration) {
	outcome := "aborted"
	if committed {
		outcome = "committed"
	}
	r.executions.WithLabelValues(outcome).Inc()
	r.instructions.Add(float64(instructions))
	r.flashLoans.Add(float64(flashLoans))
	r.duration.Observe(d.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
