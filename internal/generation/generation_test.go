package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/xaenox/rex/internal/metrics"
	"go.uber.org/zap/zaptest"
)

var fastPolicy = RetryPolicy{MaxRetries: 2, Delay: time.Millisecond, AttemptTimeout: time.Second}

const okBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"  I feel that too.  "}]}}]}`

// scriptedServer replies with statuses[i] on the i-th request and okBody
// once the script runs out.
func scriptedServer(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n < len(statuses) && statuses[n] != http.StatusOK {
			w.WriteHeader(statuses[n])
			fmt.Fprint(w, `{"error":"busy"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, okBody)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestGemini(t *testing.T, baseURL string, policy RetryPolicy) (*Gemini, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	g := NewGemini(GeminiConfig{
		APIKey:          "test-key",
		BaseURL:         baseURL,
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 1024,
	}, policy, m, zaptest.NewLogger(t))
	return g, m
}

func TestGeminiRetriesTransientStatuses(t *testing.T) {
	srv, calls := scriptedServer(t, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK)
	g, m := newTestGemini(t, srv.URL, fastPolicy)

	got := g.Generate(context.Background(), "hello")
	if got != "I feel that too." {
		t.Errorf("Expected trimmed reply, got %q", got)
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Errorf("Expected exactly 3 requests, got %d", n)
	}
	if v := testutil.ToFloat64(m.GenerationAttemptsTotal.WithLabelValues("gemini", "retryable_status")); v != 2 {
		t.Errorf("Expected 2 retryable attempts recorded, got %v", v)
	}
	if v := testutil.ToFloat64(m.GenerationAttemptsTotal.WithLabelValues("gemini", "success")); v != 1 {
		t.Errorf("Expected 1 successful attempt recorded, got %v", v)
	}
}

func TestGeminiGivesUpAfterRetryBudget(t *testing.T) {
	srv, calls := scriptedServer(t, 429, 503, 504, 429)
	g, _ := newTestGemini(t, srv.URL, fastPolicy)

	if got := g.Generate(context.Background(), "hello"); got != ApologyTransient {
		t.Errorf("Expected transient apology, got %q", got)
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
}

func TestGeminiTerminalStatus(t *testing.T) {
	srv, calls := scriptedServer(t, http.StatusBadRequest)
	g, _ := newTestGemini(t, srv.URL, fastPolicy)

	if got := g.Generate(context.Background(), "hello"); got != ApologyTransient {
		t.Errorf("Expected transient apology, got %q", got)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("Expected no retry after 400, got %d requests", n)
	}
}

func TestGeminiResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"candidates": [`, ApologyUnexpected},
		{"no candidates", `{"candidates": []}`, ApologyTransient},
		{"no parts", `{"candidates":[{"content":{"parts":[]}}]}`, ApologyTransient},
		{"no text", `{"candidates":[{"content":{"parts":[{"inlineData":{}}]}}]}`, ApologyTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			g, _ := newTestGemini(t, srv.URL, fastPolicy)
			if got := g.Generate(context.Background(), "hello"); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if atomic.LoadInt32(&calls) != 1 {
				t.Errorf("Expected a single request, got %d", atomic.LoadInt32(&calls))
			}
		})
	}
}

func TestGeminiTimeoutIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		fmt.Fprint(w, okBody)
	}))
	defer srv.Close()

	policy := fastPolicy
	policy.AttemptTimeout = 100 * time.Millisecond
	g, m := newTestGemini(t, srv.URL, policy)

	if got := g.Generate(context.Background(), "hello"); got != "I feel that too." {
		t.Errorf("Expected reply after timeout retry, got %q", got)
	}
	if v := testutil.ToFloat64(m.GenerationAttemptsTotal.WithLabelValues("gemini", "timeout")); v != 1 {
		t.Errorf("Expected 1 timeout recorded, got %v", v)
	}
}

func TestGeminiRequestShape(t *testing.T) {
	var captured geminiRequest
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, okBody)
	}))
	defer srv.Close()

	g, _ := newTestGemini(t, srv.URL, fastPolicy)
	g.Generate(context.Background(), "the prompt")

	if path != "/gemini-2.0-flash:generateContent" {
		t.Errorf("Unexpected path %q", path)
	}
	if key != "test-key" {
		t.Errorf("Expected API key header, got %q", key)
	}
	if len(captured.Contents) != 1 || *captured.Contents[0].Parts[0].Text != "the prompt" {
		t.Errorf("Unexpected contents: %+v", captured.Contents)
	}
	cfg := captured.GenerationConfig
	if cfg.Temperature != 0.7 || cfg.TopP != 0.95 || cfg.TopK != 40 || cfg.MaxOutputTokens != 1024 {
		t.Errorf("Unexpected generation config: %+v", cfg)
	}
}

func TestBlankPromptIsInvalid(t *testing.T) {
	srv, calls := scriptedServer(t)
	g, _ := newTestGemini(t, srv.URL, fastPolicy)

	if got := g.Generate(context.Background(), "   "); got != ApologyInvalidInput {
		t.Errorf("Expected invalid-input apology, got %q", got)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("Expected no requests, got %d", n)
	}
}

func TestOpenAIRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit_error"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Main theek hoon."},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"}, fastPolicy, nil, zaptest.NewLogger(t))
	if got := o.Generate(context.Background(), "kaise ho"); got != "Main theek hoon." {
		t.Errorf("Expected reply, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 requests, got %d", atomic.LoadInt32(&calls))
	}
}

func TestOpenAITerminalStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"}, fastPolicy, nil, zaptest.NewLogger(t))
	if got := o.Generate(context.Background(), "hello"); got != ApologyTransient {
		t.Errorf("Expected transient apology, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected 1 request, got %d", atomic.LoadInt32(&calls))
	}
}
