// Package metrics exposes Prometheus instruments for the stack manager.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "localai"

// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	toggles         *prometheus.CounterVec
	cascades        *prometheus.CounterVec
	storeFailures   *prometheus.CounterVec
	lifecycleOps    *prometheus.CounterVec
	lifecycleTime   *prometheus.HistogramVec
	adapterFailures *prometheus.CounterVec
	enabled         prometheus.Gauge
	cpu             *prometheus.GaugeVec
	memory          *prometheus.GaugeVec
	memoryPercent   *prometheus.GaugeVec
}

// New registers the instruments on a fresh registry together with the
// Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		toggles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "services",
			Name:      "toggles_total",
			Help:      "Service toggle requests by action and result",
		}, []string{"action", "result"}),
		cascades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "services",
			Name:      "cascaded_total",
			Help:      "Services enabled or disabled as a side effect of another toggle",
		}, []string{"direction"}),
		storeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preferences",
			Name:      "failures_total",
			Help:      "Preference store failures by operation",
		}, []string{"op"}),
		lifecycleOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Lifecycle operations by action and result",
		}, []string{"action", "result"}),
		lifecycleTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "duration_seconds",
			Help:      "Lifecycle operation duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}, []string{"action"}),
		adapterFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "failures_total",
			Help:      "Container runtime call failures by call",
		}, []string{"call"}),
		enabled: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "services",
			Name:      "enabled",
			Help:      "Number of enabled services",
		}),
		cpu: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "cpu_percent",
			Help:      "Last sampled container CPU usage",
		}, []string{"container", "service"}),
		memory: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "memory_bytes",
			Help:      "Last sampled container memory usage",
		}, []string{"container", "service"}),
		memoryPercent: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "memory_percent",
			Help:      "Last sampled container memory usage relative to its limit",
		}, []string{"container", "service"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveToggle counts a toggle request. result is ok, rejected or store-error.
func (m *Metrics) ObserveToggle(action, result string) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(action, result).Inc()
}

// ObserveCascade counts services changed by dependency propagation.
func (m *Metrics) ObserveCascade(enabled bool, n int) {
	if m == nil || n == 0 {
		return
	}
	direction := "disable"
	if enabled {
		direction = "enable"
	}
	m.cascades.WithLabelValues(direction).Add(float64(n))
}

// ObserveStoreFailure counts a failed load or save.
func (m *Metrics) ObserveStoreFailure(op string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(op).Inc()
}

// ObserveLifecycle records one lifecycle operation.
func (m *Metrics) ObserveLifecycle(action string, accepted bool, seconds float64) {
	if m == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.lifecycleOps.WithLabelValues(action, result).Inc()
	m.lifecycleTime.WithLabelValues(action).Observe(seconds)
}

// ObserveAdapterFailure counts a failed container runtime call.
func (m *Metrics) ObserveAdapterFailure(call string) {
	if m == nil {
		return
	}
	m.adapterFailures.WithLabelValues(call).Inc()
}

// SetEnabled records the size of the enabled set.
func (m *Metrics) SetEnabled(n int) {
	if m == nil {
		return
	}
	m.enabled.Set(float64(n))
}

// SetContainerStats records a container stats sample.
func (m *Metrics) SetContainerStats(container, service string, cpuPercent float64, memoryBytes uint64, memoryPercent float64) {
	if m == nil {
		return
	}
	m.cpu.WithLabelValues(container, service).Set(cpuPercent)
	m.memory.WithLabelValues(container, service).Set(float64(memoryBytes))
	m.memoryPercent.WithLabelValues(container, service).Set(memoryPercent)
}
