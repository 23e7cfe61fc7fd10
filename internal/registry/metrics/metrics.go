package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
type Metrics struct {
	IdentitiesCreated  prometheus.Counter
	IdentityUpdates    prometheus.Counter
	CredentialsIssued  *prometheus.CounterVec
	CredentialsRevoked *prometheus.CounterVec
	RequestLatency     *prometheus.HistogramVec
}

// New creates a Metrics instance with all registry metrics registered on the
// default registerer.
func New() *Metrics {
	return &Metrics{
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attestry_identities_created_total",
			Help: "Total number of identities created in the registry",
		}),
		IdentityUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attestry_identity_updates_total",
			Help: "Total number of successful identity updates",
		}),
		CredentialsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestry_credentials_issued_total",
			Help: "Total credentials issued by credential type",
		}, []string{"credential_type"}),
		CredentialsRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestry_credentials_revoked_total",
			Help: "Total credentials revoked by credential type",
		}, []string{"credential_type"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestry_http_request_duration_seconds",
			Help:    "Duration of registry HTTP requests by route and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route", "status"}),
	}
}

// IncIdentityCreated records a successful createIdentity.
func (m *Metrics) IncIdentityCreated() {
	if m != nil {
		m.IdentitiesCreated.Inc()
	}
}

// IncIdentityUpdated records a successful updateIdentity.
func (m *Metrics) IncIdentityUpdated() {
	if m != nil {
		m.IdentityUpdates.Inc()
	}
}

// IncCredentialIssued records a successful addCredential.
func (m *Metrics) IncCredentialIssued(credentialType string) {
	if m != nil {
		m.CredentialsIssued.WithLabelValues(credentialType).Inc()
	}
}

// IncCredentialRevoked records a successful revokeCredential.
func (m *Metrics) IncCredentialRevoked(credentialType string) {
	if m != nil {
		m.CredentialsRevoked.WithLabelValues(credentialType).Inc()
	}
}

// ObserveRequest records one HTTP request's latency.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(route, status).Observe(d.Seconds())
	}
}
