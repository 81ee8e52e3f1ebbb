package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PersonsRegistered prometheus.Counter
	RequestsCreated   *prometheus.CounterVec
	RequestsAccepted  *prometheus.CounterVec
	RequestsConfirmed prometheus.Counter
	TransitionsDenied *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers all metrics on a fresh registry so that several
// instances can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PersonsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_persons_registered_total",
			Help: "Total number of persons registered",
		}),
		RequestsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_requests_created_total",
			Help: "Blood requests created, by requested blood group",
		}, []string{"blood_group"}),
		RequestsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_requests_accepted_total",
			Help: "Blood requests accepted, by donor blood group",
		}, []string{"donor_blood_group"}),
		RequestsConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_requests_confirmed_total",
			Help: "Blood requests confirmed by their requestor",
		}),
		TransitionsDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_transitions_denied_total",
			Help: "Lifecycle transitions rejected, by operation and reason",
		}, []string{"operation", "reason"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bloodlink_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncPersonsRegistered() {
	if m == nil {
		return
	}
	m.PersonsRegistered.Inc()
}

func (m *Metrics) IncRequestsCreated(bloodGroup string) {
	if m == nil {
		return
	}
	m.RequestsCreated.WithLabelValues(bloodGroup).Inc()
}

func (m *Metrics) IncRequestsAccepted(donorBloodGroup string) {
	if m == nil {
		return
	}
	m.RequestsAccepted.WithLabelValues(donorBloodGroup).Inc()
}

func (m *Metrics) IncRequestsConfirmed() {
	if m == nil {
		return
	}
	m.RequestsConfirmed.Inc()
}

func (m *Metrics) IncTransitionDenied(operation, reason string) {
	if m == nil {
		return
	}
	m.TransitionsDenied.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, http.StatusText(status)).Observe(elapsed.Seconds())
}
