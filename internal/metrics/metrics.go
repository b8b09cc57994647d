// Package metrics exposes Prometheus collectors for the ledger and the HTTP
// surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitbook"

type Metrics struct {
	registry *prometheus.Registry

	ledgerOps       *prometheus.CounterVec
	softDenials     *prometheus.CounterVec
	importRecords   *prometheus.CounterVec
	cascadeDeleted  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	websocketClient prometheus.Gauge
}

// New registers every collector on a fresh registry so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		softDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_claim_denials_total",
			Help:      "Mutations refused because the claimed account email did not match the caller.",
		}, []string{"op"}),
		importRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_records_total",
			Help:      "Imported records by kind and result.",
		}, []string{"kind", "result"}),
		cascadeDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_deleted_total",
			Help:      "Entities removed by cascade cleanup.",
		}, []string{"entity"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		websocketClient: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ledgerOps, m.softDenials, m.importRecords, m.cascadeDeleted,
		m.httpRequests, m.httpDuration, m.websocketClient,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LedgerOp records one finished ledger mutation.
func (m *Metrics) LedgerOp(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ledgerOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) SoftDenied(op string) {
	if m == nil {
		return
	}
	m.softDenials.WithLabelValues(op).Inc()
}

// ImportRecords adds n records of kind with the given result
// (created, skipped, upserted, rejected).
func (m *Metrics) ImportRecords(kind, result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.importRecords.WithLabelValues(kind, result).Add(float64(n))
}

func (m *Metrics) CascadeDeleted(entity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.cascadeDeleted.WithLabelValues(entity).Add(float64(n))
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) SetWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.websocketClient.Set(float64(n))
}
