// Package metrics provides Prometheus metrics for Rex
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Chat metrics
	ChatTurnsTotal *prometheus.CounterVec

	// Generation metrics
	GenerationAttemptsTotal *prometheus.CounterVec
	GenerationDuration      *prometheus.HistogramVec

	// Storage metrics
	StorageErrorsTotal     *prometheus.CounterVec
	GuidelineStoreDegraded prometheus.Gauge
}

// NewMetrics creates all collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rex_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rex_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.ChatTurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rex_chat_turns_total",
			Help: "Total number of chat turns by detected tone and language",
		},
		[]string{"tone", "language"},
	)

	m.GenerationAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rex_generation_attempts_total",
			Help: "Total number of upstream generation attempts",
		},
		[]string{"provider", "outcome"},
	)

	m.GenerationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rex_generation_attempt_duration_seconds",
			Help:    "Duration of single upstream generation attempts in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"provider"},
	)

	m.StorageErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rex_storage_errors_total",
			Help: "Storage failures masked at the adapter boundary",
		},
		[]string{"operation"},
	)

	m.GuidelineStoreDegraded = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "rex_guideline_store_degraded",
			Help: "1 when the last guideline read fell back to defaults because the store was unreachable",
		},
	)

	return m
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordChatTurn records a completed chat turn
func (m *Metrics) RecordChatTurn(tone, language string) {
	if m == nil {
		return
	}
	m.ChatTurnsTotal.WithLabelValues(tone, language).Inc()
}

// RecordGenerationAttempt records one upstream call
func (m *Metrics) RecordGenerationAttempt(provider, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GenerationAttemptsTotal.WithLabelValues(provider, outcome).Inc()
	m.GenerationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordStorageError records a storage failure that was converted to a
// default result
func (m *Metrics) RecordStorageError(operation string) {
	if m == nil {
		return
	}
	m.StorageErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) SetGuidelineStoreDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.GuidelineStoreDegraded.Set(1)
		return
	}
	m.GuidelineStoreDegraded.Set(0)
}
