// Package generation sends prompts to a hosted language model. Generate never
// fails: every error path ends in one of the fixed apology replies.
package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/xaenox/rex/internal/metrics"
	"go.uber.org/zap"
)

const (
	ApologyInvalidInput = "I need a message to respond to. Can you try again with a question or thought?"
	ApologyTransient    = "I seem to be having trouble expressing myself right now. Can we try again in a moment?"
	ApologyUnexpected   = "Something went wrong with our connection. Let's try again in a moment."
)

type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

// RetryPolicy bounds the attempts made for one prompt.
type RetryPolicy struct {
	MaxRetries     int
	Delay          time.Duration
	AttemptTimeout time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:     2,
	Delay:          time.Second,
	AttemptTimeout: 15 * time.Second,
}

// StatusError is a non-200 reply from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

var (
	// ErrNoText means the reply parsed but had no text where one was expected.
	ErrNoText = errors.New("no text in response")
	// ErrMalformed means the reply body could not be decoded at all.
	ErrMalformed = errors.New("malformed response body")
)

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// attemptFunc performs one provider call under ctx.
type attemptFunc func(ctx context.Context) (string, error)

// runner applies a RetryPolicy to a provider's attempts.
type runner struct {
	provider string
	policy   RetryPolicy
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func (r *runner) run(ctx context.Context, prompt string, attempt attemptFunc) string {
	if strings.TrimSpace(prompt) == "" {
		r.logger.Error("Invalid prompt", zap.String("provider", r.provider))
		return ApologyInvalidInput
	}

	for try := 0; try <= r.policy.MaxRetries; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				r.logger.Warn("Generation cancelled", zap.Error(ctx.Err()))
				return ApologyTransient
			case <-time.After(r.policy.Delay):
			}
		}

		text, err := r.attempt(ctx, attempt)
		if err == nil {
			return strings.TrimSpace(text)
		}

		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr) && retryableStatus(statusErr.Code):
			r.logger.Warn("Generation request throttled, retrying",
				zap.Int("status", statusErr.Code),
				zap.Int("retry", try+1),
				zap.Int("max_retries", r.policy.MaxRetries))
		case isTimeout(err) && ctx.Err() == nil:
			r.logger.Warn("Generation request timed out",
				zap.Int("retry", try+1),
				zap.Int("max_retries", r.policy.MaxRetries))
		case errors.Is(err, ErrMalformed):
			r.logger.Error("Failed to decode generation response", zap.Error(err))
			return ApologyUnexpected
		default:
			r.logger.Error("Generation request failed", zap.Error(err), zap.String("provider", r.provider))
			return ApologyTransient
		}
	}

	r.logger.Error("Generation retries exhausted", zap.String("provider", r.provider))
	return ApologyTransient
}

func (r *runner) attempt(ctx context.Context, attempt attemptFunc) (string, error) {
	attemptCtx := ctx
	if r.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := attempt(attemptCtx)
	r.metrics.RecordGenerationAttempt(r.provider, outcomeOf(err), time.Since(start))
	return text, err
}

func outcomeOf(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &statusErr) && retryableStatus(statusErr.Code):
		return "retryable_status"
	case isTimeout(err):
		return "timeout"
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrNoText):
		return "bad_response"
	default:
		return "error"
	}
}
