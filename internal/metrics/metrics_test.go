package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHTTPRequest("/chat", "POST", 200, 10*time.Millisecond)
	m.RecordChatTurn("happy", "english")
	m.RecordGenerationAttempt("gemini", "retry", time.Second)
	m.RecordGenerationAttempt("gemini", "success", time.Second)
	m.RecordStorageError("append_message")
	m.SetGuidelineStoreDegraded(true)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/chat", "POST", "200")); got != 1 {
		t.Errorf("Expected 1 http request, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChatTurnsTotal.WithLabelValues("happy", "english")); got != 1 {
		t.Errorf("Expected 1 chat turn, got %v", got)
	}
	if got := testutil.ToFloat64(m.GenerationAttemptsTotal.WithLabelValues("gemini", "retry")); got != 1 {
		t.Errorf("Expected 1 retry attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.StorageErrorsTotal.WithLabelValues("append_message")); got != 1 {
		t.Errorf("Expected 1 storage error, got %v", got)
	}
	if got := testutil.ToFloat64(m.GuidelineStoreDegraded); got != 1 {
		t.Errorf("Expected degraded gauge 1, got %v", got)
	}

	m.SetGuidelineStoreDegraded(false)
	if got := testutil.ToFloat64(m.GuidelineStoreDegraded); got != 0 {
		t.Errorf("Expected degraded gauge 0, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("/chat", "POST", 200, time.Millisecond)
	m.RecordChatTurn("happy", "english")
	m.RecordGenerationAttempt("gemini", "success", time.Millisecond)
	m.RecordStorageError("x")
	m.SetGuidelineStoreDegraded(true)
}
