package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/amishk599/ajirawise/internal/model"
)

// Policy bounds how often and how patiently a transient failure is retried.
type Policy struct {
	MaxRetries int           // additional attempts after the first failure
	BaseDelay  time.Duration // delay before the first retry, doubled each time
}

// Do runs fn, retrying transient errors with exponential backoff and ±30%
// jitter. A Retry-After carried by *model.HTTPError takes precedence.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !isRetryable(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := backoffDelay(p.BaseDelay, attempt, lastErr)

		logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// RetryFetcher is a decorator that retries transient failures of the wrapped
// JobFetcher.
type RetryFetcher struct {
	inner  model.JobFetcher
	policy Policy
	logger *slog.Logger
}

// NewRetryFetcher wraps a JobFetcher with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetryFetcher(inner model.JobFetcher, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryFetcher {
	return &RetryFetcher{
		inner:  inner,
		policy: Policy{MaxRetries: maxRetries, BaseDelay: baseDelay},
		logger: logger,
	}
}

func (f *RetryFetcher) Name() string { return f.inner.Name() }

// FetchJobs attempts to fetch jobs, retrying on transient errors.
func (f *RetryFetcher) FetchJobs(ctx context.Context, category string) ([]model.JobPosting, error) {
	var jobs []model.JobPosting
	err := Do(ctx, f.policy, f.logger, f.inner.Name(), func(ctx context.Context) error {
		var err error
		jobs, err = f.inner.FetchJobs(ctx, category)
		return err
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
func backoffDelay(base time.Duration, attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: base * 2^(attempt-1)
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation, never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	// Validation errors are the caller's fault.
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return false
	}

	// Network, DNS, parse errors.
	return true
}
