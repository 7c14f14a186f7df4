package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/config"
)

// Limiter is a fixed-window counter gating outbound generation calls.
type Limiter struct {
	mu           sync.Mutex
	maxRequests  int
	window       time.Duration
	pollInterval time.Duration
	timeout      time.Duration

	requests  int
	lastReset time.Time
	now       func() time.Time
}

// NewLimiter builds a limiter from the rate limit configuration.
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	maxRequests := cfg.Requests
	if maxRequests < 1 {
		maxRequests = 60
	}
	return &Limiter{
		maxRequests:  maxRequests,
		window:       cfg.Window,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.WaitTimeout,
		lastReset:    time.Now(),
		now:          time.Now,
	}
}

// Allow consumes one slot of the current window if any is left.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastReset) >= l.window {
		l.requests = 0
		l.lastReset = now
	}

	if l.requests >= l.maxRequests {
		return false
	}
	l.requests++
	return true
}

// Wait polls Allow at a fixed interval until a slot frees up. It gives up
// with ErrRateLimited once the configured timeout has elapsed.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.Allow() {
		return nil
	}

	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: no slot within %s", ErrRateLimited, l.timeout)
		case <-ticker.C:
			if l.Allow() {
				return nil
			}
		}
	}
}
