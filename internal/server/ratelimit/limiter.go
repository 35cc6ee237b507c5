// Package ratelimit implements per-client token bucket rate limiting for the
// entry endpoints.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per minute
	Remaining  int           // whole tokens left in the bucket
	ResetAt    time.Time     // when the bucket will be full again
	RetryAfter time.Duration // how long to wait before retrying (0 if allowed)
}

// Limiter manages one token bucket per key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	perMin  int
	rate    rate.Limit
	burst   int
	now     func() time.Time
	stop    chan struct{}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// staleAfter is how long an idle, full bucket is kept.
const staleAfter = 10 * time.Minute

// NewLimiter creates a limiter refilling perMin tokens per minute, holding at
// most burst tokens. Call Close to stop its cleanup goroutine.
func NewLimiter(perMin, burst int) *Limiter {
	l := newLimiter(perMin, burst, time.Now)
	go l.cleanupLoop()
	return l
}

func newLimiter(perMin, burst int, now func() time.Time) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		perMin:  perMin,
		rate:    rate.Limit(float64(perMin) / 60),
		burst:   max(burst, 1),
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Allow consumes a token from key's bucket if one is available.
func (l *Limiter) Allow(key string) Result {
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	res := Result{
		Allowed:   allowed,
		Limit:     l.perMin,
		Remaining: max(int(tokens), 0),
		ResetAt:   now.Add(l.refill(float64(l.burst) - tokens)),
	}
	if !allowed {
		res.RetryAfter = max(l.refill(1-tokens), time.Second)
	}
	return res
}

// refill returns how long it takes to earn n tokens, rounded up to the second.
func (l *Limiter) refill(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(n/float64(l.rate))) * time.Second
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	close(l.stop)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(staleAfter)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup drops buckets that are idle and full, so they'd behave as new.
func (l *Limiter) cleanup() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	threshold := now.Add(-staleAfter)
	for key, b := range l.buckets {
		if b.lastSeen.Before(threshold) && b.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
