// Package ratelimit throttles renders and fetches so a mirror run stays
// polite to the hosts it touches.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter applies a global rate plus an independent per-host rate and an
// optional minimum delay between requests to the same host.
type Limiter struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	perDomain    map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	domainDelay  time.Duration
	lastRequest  map[string]time.Time
}

// NewLimiter creates a new rate limiter. A non-positive rate means
// unlimited.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	limit := toLimit(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter:      rate.NewLimiter(limit, burst),
		perDomain:    make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
		lastRequest:  make(map[string]time.Time),
	}
}

func toLimit(requestsPerSecond float64) rate.Limit {
	if requestsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(requestsPerSecond)
}

// Wait blocks until a request is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// WaitDomain blocks until a request to domain is allowed.
func (l *Limiter) WaitDomain(ctx context.Context, domain string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	domainLimiter, exists := l.perDomain[domain]
	if !exists {
		domainLimiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.perDomain[domain] = domainLimiter
	}

	if l.domainDelay > 0 {
		if lastReq, ok := l.lastRequest[domain]; ok {
			if wait := l.domainDelay - time.Since(lastReq); wait > 0 {
				l.mu.Unlock()
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
				l.mu.Lock()
			}
		}
		l.lastRequest[domain] = time.Now()
	}
	l.mu.Unlock()

	return domainLimiter.Wait(ctx)
}

// SetDomainDelay sets the minimum delay between requests to the same host.
func (l *Limiter) SetDomainDelay(delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.domainDelay = delay
}

// Allow checks if a request is allowed without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetRate updates the global rate limit and the rate for hosts seen later.
func (l *Limiter) SetRate(requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.defaultRate = toLimit(requestsPerSecond)
	if burst > 0 {
		l.defaultBurst = burst
	}
	l.limiter.SetLimit(l.defaultRate)
	l.limiter.SetBurst(l.defaultBurst)
}

// Unlimited reports whether the limiter never blocks.
func (l *Limiter) Unlimited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.defaultRate == rate.Inf && l.domainDelay == 0
}

// Stats returns rate limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return LimiterStats{
		DomainCount:  len(l.perDomain),
		DefaultRate:  float64(l.defaultRate),
		DefaultBurst: l.defaultBurst,
		DomainDelay:  l.domainDelay,
	}
}

// LimiterStats contains rate limiter statistics.
type LimiterStats struct {
	DomainCount  int           `json:"domain_count"`
	DefaultRate  float64       `json:"default_rate"`
	DefaultBurst int           `json:"default_burst"`
	DomainDelay  time.Duration `json:"domain_delay"`
}
