// Package metrics exposes Prometheus instruments for the allocation service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Table loads by result: "ok" or "error"
	TableReloads *prometheus.CounterVec

	// Units in the current snapshot and the sum of their shares
	TableUnits    prometheus.Gauge
	TableShareSum prometheus.Gauge

	// Allocation requests by outcome: "computed", "cached", "invalid_expense", "degenerate", "unavailable"
	Allocations *prometheus.CounterVec

	AllocationLatency prometheus.Histogram

	// Visits by delivery path: "queued", "direct", "failed"
	Visits *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates all instruments on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TableReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condomini_table_reloads_total",
			Help: "Unit table loads by result",
		}, []string{"result"}),

		TableUnits: factory.NewGauge(prometheus.GaugeOpts{
			Name: "condomini_table_units",
			Help: "Units in the current table snapshot",
		}),

		TableShareSum: factory.NewGauge(prometheus.GaugeOpts{
			Name: "condomini_table_share_sum",
			Help: "Sum of millesimal shares in the current table snapshot",
		}),

		Allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condomini_allocations_total",
			Help: "Allocation requests by outcome",
		}, []string{"outcome"}),

		AllocationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "condomini_allocation_duration_seconds",
			Help:    "Duration of allocation computations, cache misses only",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		Visits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condomini_visits_total",
			Help: "Recorded page visits by delivery path",
		}, []string{"path"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condomini_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "condomini_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordReload records a table load and, on success, the snapshot size.
func (m *Metrics) RecordReload(err error, units int, shareSum float64) {
	if m == nil {
		return
	}
	if err != nil {
		m.TableReloads.WithLabelValues("error").Inc()
		m.TableUnits.Set(0)
		m.TableShareSum.Set(0)
		return
	}
	m.TableReloads.WithLabelValues("ok").Inc()
	m.TableUnits.Set(float64(units))
	m.TableShareSum.Set(shareSum)
}

// IncrementAllocation records an allocation outcome.
func (m *Metrics) IncrementAllocation(outcome string) {
	if m != nil {
		m.Allocations.WithLabelValues(outcome).Inc()
	}
}

// ObserveAllocation records the duration of a computed allocation.
func (m *Metrics) ObserveAllocation(d time.Duration) {
	if m != nil {
		m.AllocationLatency.Observe(d.Seconds())
	}
}

// IncrementVisit records how a visit was delivered.
func (m *Metrics) IncrementVisit(path string) {
	if m != nil {
		m.Visits.WithLabelValues(path).Inc()
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(d.Seconds())
}
