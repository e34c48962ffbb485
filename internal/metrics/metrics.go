// Package metrics publishes Prometheus metrics for template resolution and
// registry reload activity. Grounded on l0p7-PassCtrl's internal/metrics
// Recorder: a dedicated registry by default, a handler for /metrics, and
// observation methods that are safe to call on a nil *Recorder so callers
// never have to special-case a metrics-disabled build.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder publishes Prometheus metrics for resolve and reload activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	resolveRequests *prometheus.CounterVec
	resolveLatency  *prometheus.HistogramVec

	reloads      *prometheus.CounterVec
	registrySize prometheus.Gauge
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders (e.g. in tests) can
// coexist without conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	resolveRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cmdtmpl",
		Subsystem: "resolve",
		Name:      "requests_total",
		Help:      "Total resolve_command calls, labeled by template and outcome.",
	}, []string{"template", "outcome", "error_kind"})

	resolveLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cmdtmpl",
		Subsystem: "resolve",
		Name:      "duration_seconds",
		Help:      "Latency distribution for resolve_command calls.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
	}, []string{"template", "outcome"})

	reloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cmdtmpl",
		Subsystem: "registry",
		Name:      "reloads_total",
		Help:      "Registry reload attempts, labeled by outcome.",
	}, []string{"outcome"})

	registrySize := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cmdtmpl",
		Subsystem: "registry",
		Name:      "templates",
		Help:      "Number of templates in the currently published registry.",
	})

	reg.MustRegister(resolveRequests, resolveLatency, reloads, registrySize)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		resolveRequests: resolveRequests,
		resolveLatency:  resolveLatency,
		reloads:         reloads,
		registrySize:    registrySize,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveResolve records the outcome and latency of one resolve_command call.
// errorKind is ignored (and should be passed empty) when outcome is "success".
func (r *Recorder) ObserveResolve(template, outcome, errorKind string, duration time.Duration) {
	if r == nil {
		return
	}
	templateLabel := normalizeLabel(template)
	outcomeLabel := normalizeLabel(outcome)
	errorLabel := errorKind
	if errorLabel == "" {
		errorLabel = "none"
	}
	r.resolveRequests.WithLabelValues(templateLabel, outcomeLabel, errorLabel).Inc()
	r.resolveLatency.WithLabelValues(templateLabel, outcomeLabel).Observe(duration.Seconds())
}

// ObserveReload records a registry reload attempt and, on success, the new
// template count.
func (r *Recorder) ObserveReload(success bool, templateCount int) {
	if r == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	r.reloads.WithLabelValues(outcome).Inc()
	if success {
		r.registrySize.Set(float64(templateCount))
	}
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
