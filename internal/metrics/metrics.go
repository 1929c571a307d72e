// Package metrics exposes prometheus counters for ingestion and reporting.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	IncMessages(kind string)
	IncMalformed(kind string)
	IncRollsStored(state string)
	IncClockResyncs()
	IncReports(outcome string)
	ObserveReportDuration(duration time.Duration)
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	Handler() http.Handler
}

type Provider struct {
	gatherer        prometheus.Gatherer
	messagesTotal   *prometheus.CounterVec
	malformedTotal  *prometheus.CounterVec
	rollsStored     *prometheus.CounterVec
	clockResyncs    prometheus.Counter
	reportsTotal    *prometheus.CounterVec
	reportDuration  prometheus.Histogram
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func (m *Provider) IncMessages(kind string) {
	m.messagesTotal.WithLabelValues(kind).Inc()
}

func (m *Provider) IncMalformed(kind string) {
	m.malformedTotal.WithLabelValues(kind).Inc()
}

func (m *Provider) IncRollsStored(state string) {
	m.rollsStored.WithLabelValues(state).Inc()
}

func (m *Provider) IncClockResyncs() {
	m.clockResyncs.Inc()
}

func (m *Provider) IncReports(outcome string) {
	m.reportsTotal.WithLabelValues(outcome).Inc()
}

func (m *Provider) ObserveReportDuration(duration time.Duration) {
	m.reportDuration.Observe(duration.Seconds())
}

func (m *Provider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *Provider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// New registers the dice logger metrics on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Provider {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Provider{
		gatherer: reg,
		messagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dicelogger_messages_total",
			Help: "Inbound broker messages by classification",
		}, []string{"kind"}),

		malformedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dicelogger_malformed_messages_total",
			Help: "Messages dropped because the payload could not be decoded",
		}, []string{"kind"}),

		rollsStored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dicelogger_rolls_stored_total",
			Help: "Roll events written to the store",
		}, []string{"state"}),

		clockResyncs: f.NewCounter(prometheus.CounterOpts{
			Name: "dicelogger_clock_resyncs_total",
			Help: "Device clock epochs recomputed after a backward counter",
		}),

		reportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dicelogger_reports_total",
			Help: "Report generation attempts by outcome",
		}, []string{"outcome"}),

		reportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dicelogger_report_duration_seconds",
			Help:    "Duration of report generation in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dicelogger_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dicelogger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

type noopMetrics struct{}

// Noop returns a Recorder that discards everything.
func Noop() Recorder { return noopMetrics{} }

func (noopMetrics) IncMessages(string)                           {}
func (noopMetrics) IncMalformed(string)                          {}
func (noopMetrics) IncRollsStored(string)                        {}
func (noopMetrics) IncClockResyncs()                             {}
func (noopMetrics) IncReports(string)                            {}
func (noopMetrics) ObserveReportDuration(time.Duration)          {}
func (noopMetrics) IncRequestsTotal(string, int)                 {}
func (noopMetrics) ObserveRequestDuration(string, time.Duration) {}
func (noopMetrics) Handler() http.Handler                        { return http.NotFoundHandler() }
