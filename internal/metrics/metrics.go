// Package metrics provides prometheus instrumentation for the Kaleidoscope client.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsService handles all metrics emitted by the Kaleidoscope client.
type MetricsService interface {
	GetRegistry() *prometheus.Registry
	IncNumRequests(path, method string, statusCode int)
	ObserveRequestDuration(path, method string, duration float64)
	IncRequestFailure(path, method, errorType string)
	IncTokenExchange(grantType, result string)
	IncFileDownload(result string)
}

type metricsService struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	numRequestsTotal *prometheus.CounterVec
	requestsDuration *prometheus.SummaryVec
	requestFailures  *prometheus.CounterVec

	// Auth Metrics
	tokenExchangesTotal *prometheus.CounterVec

	// File Download Metrics
	fileDownloadsTotal *prometheus.CounterVec
}

var _ MetricsService = (*metricsService)(nil)

// NewMetricsService creates a new metrics service with all metrics registered
// on a fresh registry.
func NewMetricsService() MetricsService {
	m := &metricsService{
		registry: prometheus.NewRegistry(),
	}

	m.numRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaleido_client_requests_total",
			Help: "Total number of HTTP requests issued by the client",
		},
		[]string{"path", "method", "status_code"},
	)
	m.requestsDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "kaleido_client_request_duration_seconds",
			Help:       "Duration of client HTTP requests",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"path", "method"},
	)
	m.requestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaleido_client_request_failures_total",
			Help: "Total number of failed client HTTP requests",
		},
		[]string{"path", "method", "error_type"},
	)
	m.tokenExchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaleido_client_token_exchanges_total",
			Help: "Total number of OAuth token exchanges, by grant type and result",
		},
		[]string{"grant_type", "result"},
	)
	m.fileDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaleido_client_file_downloads_total",
			Help: "Total number of file downloads, by result",
		},
		[]string{"result"},
	)

	m.registry.MustRegister(
		m.numRequestsTotal,
		m.requestsDuration,
		m.requestFailures,
		m.tokenExchangesTotal,
		m.fileDownloadsTotal,
	)

	return m
}

func (m *metricsService) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *metricsService) IncNumRequests(path, method string, statusCode int) {
	m.numRequestsTotal.WithLabelValues(path, method, strconv.Itoa(statusCode)).Inc()
}

func (m *metricsService) ObserveRequestDuration(path, method string, duration float64) {
	m.requestsDuration.WithLabelValues(path, method).Observe(duration)
}

func (m *metricsService) IncRequestFailure(path, method, errorType string) {
	m.requestFailures.WithLabelValues(path, method, errorType).Inc()
}

func (m *metricsService) IncTokenExchange(grantType, result string) {
	m.tokenExchangesTotal.WithLabelValues(grantType, result).Inc()
}

func (m *metricsService) IncFileDownload(result string) {
	m.fileDownloadsTotal.WithLabelValues(result).Inc()
}

// NoopMetricsService discards every observation. It is the default when a
// client is constructed without a metrics service.
type NoopMetricsService struct{}

var _ MetricsService = (*NoopMetricsService)(nil)

func (NoopMetricsService) GetRegistry() *prometheus.Registry              { return nil }
func (NoopMetricsService) IncNumRequests(string, string, int)             {}
func (NoopMetricsService) ObserveRequestDuration(string, string, float64) {}
func (NoopMetricsService) IncRequestFailure(string, string, string)       {}
func (NoopMetricsService) IncTokenExchange(string, string)                {}
func (NoopMetricsService) IncFileDownload(string)                         {}
