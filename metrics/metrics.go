// Package metrics exposes Prometheus metrics for the signing service: a
// small fixed set of collectors for the request path plus the standard
// process and Go runtime collectors, served on a dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the request path records into. A nil
// *Metrics is valid and records nothing, so components take it without
// caring whether metrics are enabled.
type Metrics struct {
	requests    *prometheus.CounterVec
	signSeconds *prometheus.HistogramVec
	activeConns prometheus.Gauge
	storedKeys  prometheus.Gauge

	registry *prometheus.Registry
}

// New builds the collector set registered under the given namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by operation and result code (code 'ok' for successes).",
		}, []string{"op", "code"}),
		signSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sign_duration_seconds",
			Help:      "Signing latency by scheme.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"scheme"}),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Currently open protocol connections.",
		}),
		storedKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_keys",
			Help:      "Keys currently held in the key store.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.requests,
		m.signSeconds,
		m.activeConns,
		m.storedKeys,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// RecordRequest counts one handled request. An empty code is recorded as
// "ok".
func (m *Metrics) RecordRequest(op, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.requests.WithLabelValues(op, code).Inc()
}

// RecordSign observes one signing operation's latency.
func (m *Metrics) RecordSign(scheme string, d time.Duration) {
	if m == nil {
		return
	}
	m.signSeconds.WithLabelValues(scheme).Observe(d.Seconds())
}

// ConnOpened and ConnClosed track the active connection gauge.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.activeConns.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.activeConns.Dec()
}

// SetStoredKeys updates the stored key gauge.
func (m *Metrics) SetStoredKeys(n int) {
	if m == nil {
		return
	}
	m.storedKeys.Set(float64(n))
}

// MetricsServer serves the /metrics endpoint on its own listener.
type MetricsServer struct {
	srv *http.Server
}

// NewServer wires the collectors to an HTTP server on addr.
func NewServer(m *Metrics, addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
