package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pod_intake"

// HTTPServerMetrics owns the process registry. Request series are labelled
// by route template so application ids do not explode cardinality.
type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		service:  service,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"service", "method", "route", "status"}),
		// Classification requests wait on the model, hence the long tail.
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"service", "method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "HTTP requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.inFlight)
	return m
}

// Registry lets other collectors share the /metrics endpoint.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InFlight marks a request as started and returns the matching release.
func (m *HTTPServerMetrics) InFlight() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}

func (m *HTTPServerMetrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	route := RouteTemplate(path)
	m.requests.WithLabelValues(m.service, method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(m.service, method, route).Observe(elapsed.Seconds())
}

// RouteTemplate replaces the application id segment with {id}.
func RouteTemplate(path string) string {
	const prefix = "/v1/applications/"
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "upload" {
		return path
	}
	if _, action, found := strings.Cut(rest, "/"); found {
		return prefix + "{id}/" + action
	}
	return prefix + "{id}"
}
