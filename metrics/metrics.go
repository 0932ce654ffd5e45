// Package metrics exposes Prometheus counters for the decision ledger and
// serves them on a dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ProofsGenerated     *prometheus.CounterVec
	Verifications       *prometheus.CounterVec
	LedgerErrors        *prometheus.CounterVec
	RateLimitRejections prometheus.Counter
	InferenceRequests   *prometheus.CounterVec
	RateLimitIdentities prometheus.Gauge
}

// New registers all collectors under namespace on a private registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ProofsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proofs_generated_total",
			Help:      "Total number of generated proofs by whether they were stored on chain",
		}, []string{"stored_on_chain"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of verifications by outcome",
		}, []string{"outcome"}),
		LedgerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_errors_total",
			Help:      "Total number of ledger failures by operation and reason",
		}, []string{"op", "reason"}),
		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejections_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
		InferenceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Total number of inference requests by result",
		}, []string{"result"}),
		RateLimitIdentities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ratelimit_tracked_identities",
			Help:      "Number of client identities currently tracked by the in-memory rate limiter",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ProofsGenerated,
		m.Verifications,
		m.LedgerErrors,
		m.RateLimitRejections,
		m.InferenceRequests,
		m.RateLimitIdentities,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ProofGenerated(storedOnChain bool) {
	if m == nil {
		return
	}
	label := "false"
	if storedOnChain {
		label = "true"
	}
	m.ProofsGenerated.WithLabelValues(label).Inc()
}

func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LedgerError(op, reason string) {
	if m == nil {
		return
	}
	m.LedgerErrors.WithLabelValues(op, reason).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.RateLimitRejections.Inc()
}

func (m *Metrics) Inference(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.InferenceRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) SetTrackedIdentities(n int) {
	if m == nil {
		return
	}
	m.RateLimitIdentities.Set(float64(n))
}

// MetricsServer serves /metrics on its own address.
type MetricsServer struct {
	srv *http.Server
}

// NewServer creates a metrics server for m listening on addr.
func NewServer(m *Metrics, addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
