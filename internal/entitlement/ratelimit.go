package entitlement

import (
	"sync"
	"time"

	"nexus.chat/internal/catalog"
)

const (
	DefaultRateLimitWindow   = 3 * time.Hour
	DefaultRateLimitRequests = 40
)

// RateLimiter enforces the rolling request cap on the free plan's thinking
// model. State is in-memory only; it resets with the process.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow checks and records a request in one step. Only free-plan requests to
// the rate-limited model are counted; everything else passes.
func (rl *RateLimiter) Allow(key, planID, modelID string) error {
	if planID != catalog.FreePlanID || modelID != catalog.ThinkingModelID {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	var valid []time.Time
	for _, t := range rl.requests[key] {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return ErrRateLimited
	}

	rl.requests[key] = append(valid, now)
	return nil
}
