package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	CertificatesIssued  *prometheus.CounterVec
	CertificatesRevoked prometheus.Counter
	OperationsRecorded  *prometheus.CounterVec
	RoleChanges         *prometheus.CounterVec
	RejectedCalls       *prometheus.CounterVec
	RelayPublished      *prometheus.CounterVec
	RelayFailures       *prometheus.CounterVec
	RelayLag            *prometheus.GaugeVec
	HTTPLatency         *prometheus.HistogramVec
}

// New creates and registers all metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CertificatesIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrace_certificates_issued_total",
			Help: "Total number of certificates issued, by product type",
		}, []string{"product_type"}),
		CertificatesRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "certtrace_certificates_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		OperationsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrace_operations_recorded_total",
			Help: "Total number of traceability operations recorded, by event type",
		}, []string{"event_type"}),
		RoleChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrace_role_changes_total",
			Help: "Role grants and revocations, by role and change",
		}, []string{"role", "change"}),
		RejectedCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrace_rejected_calls_total",
			Help: "Calls rejected by the registry or ledger, by operation and error code",
		}, []string{"operation", "code"}),
		RelayPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrace_outbox_relayed_total",
			Help: "Notifications relayed from the outbox, by sink",
		}, []string{"sink"}),
		RelayFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certtrace_outbox_relay_failures_total",
			Help: "Failed relay attempts, by sink",
		}, []string{"sink"}),
		RelayLag: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "certtrace_outbox_relay_lag",
			Help: "Notifications committed but not yet relayed, by sink",
		}, []string{"sink"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certtrace_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route", "method"}),
	}
}

func (m *Metrics) IncCertificateIssued(productType string) {
	m.CertificatesIssued.WithLabelValues(productType).Inc()
}

func (m *Metrics) IncCertificateRevoked() {
	m.CertificatesRevoked.Inc()
}

func (m *Metrics) IncOperationRecorded(eventType string) {
	m.OperationsRecorded.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncRoleChange(role, change string) {
	m.RoleChanges.WithLabelValues(role, change).Inc()
}

func (m *Metrics) IncRejected(operation, code string) {
	m.RejectedCalls.WithLabelValues(operation, code).Inc()
}

// ObserveHTTP records request latency. Call with time.Now() at the start of the request.
func (m *Metrics) ObserveHTTP(route, method string, elapsed time.Duration) {
	m.HTTPLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
