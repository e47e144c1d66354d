// Package metrics exposes the Prometheus collectors of the service and the echo middleware
// that records HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Refresh rotation results.
const (
	RotationRotated  = "rotated"
	RotationConflict = "conflict"
	RotationRejected = "rejected"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	authOutcomes         *prometheus.CounterVec
	apiKeyValidations    *prometheus.CounterVec
	refreshRotations     *prometheus.CounterVec
	tenantContextMissing prometheus.Counter
}

// New creates the collectors under prefix and registers them on a fresh registry together with
// the Go runtime and process collectors.
func New(prefix string) *Metrics {
	if prefix == "" {
		prefix = "rollups"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		authOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_auth_outcomes_total",
				Help: "Authentication attempts by credential scheme and outcome",
			},
			[]string{"scheme", "outcome"},
		),
		apiKeyValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_apikey_validations_total",
				Help: "API key validations by result",
			},
			[]string{"result"},
		),
		refreshRotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_refresh_rotations_total",
				Help: "Refresh token rotations by result",
			},
			[]string{"result"},
		),
		tenantContextMissing: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_tenant_context_missing_total",
				Help: "Tenant-scoped requests that reached a handler without a tenant scope",
			},
		),
	}
	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.authOutcomes,
		m.apiKeyValidations,
		m.refreshRotations,
		m.tenantContextMissing,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordAuth counts one authentication attempt.
func (m *Metrics) RecordAuth(scheme, outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(scheme, outcome).Inc()
}

// RecordAPIKeyValidation counts one API key validation with result valid, invalid or error.
func (m *Metrics) RecordAPIKeyValidation(result string) {
	if m == nil {
		return
	}
	m.apiKeyValidations.WithLabelValues(result).Inc()
}

// RecordRotation counts one refresh attempt by rotation result.
func (m *Metrics) RecordRotation(result string) {
	if m == nil {
		return
	}
	m.refreshRotations.WithLabelValues(result).Inc()
}

// RecordTenantContextMissing counts a scoped request that had no tenant scope.
func (m *Metrics) RecordTenantContextMissing() {
	if m == nil {
		return
	}
	m.tenantContextMissing.Inc()
}

// Middleware records request count and duration labelled by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			m.httpRequestsTotal.WithLabelValues(labels...).Inc()
			m.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
