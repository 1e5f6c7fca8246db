package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "planb"

// Metrics holds the collectors exported by the provider.
type Metrics struct {
	registry *prometheus.Registry

	TokensIssued    *prometheus.CounterVec
	TokenErrors     *prometheus.CounterVec
	KeyRotations    prometheus.Counter
	SigningKeys     *prometheus.GaugeVec
	RequestDuration *prometheus.HistogramVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued by realm and grant type.",
		}, []string{"realm", "grant_type"}),
		TokenErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_errors_total",
			Help:      "Token endpoint failures by OAuth2 error code.",
		}, []string{"error"}),
		KeyRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_rotations_total",
			Help:      "Signing key rotations.",
		}),
		SigningKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signing_keys",
			Help:      "Signing keys currently held, by state.",
		}, []string{"state"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		m.TokensIssued,
		m.TokenErrors,
		m.KeyRotations,
		m.SigningKeys,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
