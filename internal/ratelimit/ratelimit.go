package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/ajirawise/internal/model"
)

// KeyedLimiter enforces a minimum delay between calls sharing a key, such as
// requests to one job board or messages to one chat.
type KeyedLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	minDelay time.Duration
}

// NewKeyedLimiter creates a limiter that spaces calls with the same key by minDelay.
func NewKeyedLimiter(minDelay time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last call for key.
// Returns an error if the context is cancelled while waiting.
func (r *KeyedLimiter) Wait(ctx context.Context, key string) error {
	r.mu.Lock()
	last, ok := r.lastCall[key]
	now := time.Now()

	if !ok || now.Sub(last) >= r.minDelay {
		r.lastCall[key] = now
		r.mu.Unlock()
		return nil
	}

	// Reserve the next slot before releasing the lock so concurrent callers
	// queue behind each other instead of waking together.
	next := last.Add(r.minDelay)
	r.lastCall[key] = next
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	case <-time.After(time.Until(next)):
	}
	return nil
}

// RateLimitedFetcher is a decorator that waits on the limiter, keyed by the
// fetcher's name, before delegating to the wrapped JobFetcher.
type RateLimitedFetcher struct {
	inner   model.JobFetcher
	limiter *KeyedLimiter
}

// NewRateLimitedFetcher wraps a JobFetcher with per-board rate limiting.
// Fetchers for the same board should share one limiter.
func NewRateLimitedFetcher(inner model.JobFetcher, limiter *KeyedLimiter) *RateLimitedFetcher {
	return &RateLimitedFetcher{inner: inner, limiter: limiter}
}

func (f *RateLimitedFetcher) Name() string { return f.inner.Name() }

func (f *RateLimitedFetcher) FetchJobs(ctx context.Context, category string) ([]model.JobPosting, error) {
	if err := f.limiter.Wait(ctx, f.inner.Name()); err != nil {
		return nil, err
	}
	return f.inner.FetchJobs(ctx, category)
}
