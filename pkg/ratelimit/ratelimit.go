// Package ratelimit provides a local token-bucket budget per logical endpoint
// category ("token", "barcode", "search"). Adapters check it before issuing a
// request so a doomed call fails fast instead of burning the remote's quota.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Budget describes how many requests a category may issue per rolling window.
type Budget struct {
	Requests int
	Window   time.Duration
	Burst    int // defaults to Requests when <= 0
}

// Limiter tracks independent budgets per category. Categories without a
// configured budget are unrestricted. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	budgets map[string]Budget
}

// New builds a Limiter from per-category budgets. A nil or empty map yields a
// limiter that always allows.
func New(budgets map[string]Budget) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		budgets: budgets,
	}
}

// Allow reports whether the category has budget for one more request,
// consuming a token when it does.
func (l *Limiter) Allow(category string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[category]
	if !ok {
		budget, configured := l.budgets[category]
		if !configured || budget.Requests <= 0 || budget.Window <= 0 {
			return true
		}
		burst := budget.Burst
		if burst <= 0 {
			burst = budget.Requests
		}
		interval := budget.Window / time.Duration(budget.Requests)
		bucket = rate.NewLimiter(rate.Every(interval), burst)
		l.buckets[category] = bucket
	}
	return bucket.Allow()
}
