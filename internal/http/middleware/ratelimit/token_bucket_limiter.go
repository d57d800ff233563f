package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Config stores TokenBucketLimiter settings.
type Config struct {
	Rate       float64       // tokens refilled per second
	Burst      int           // bucket size
	TTL        time.Duration // idle buckets are swept after this long, 0 keeps them
	MaxBuckets int           // 0 means unbounded
}

// TokenBucketLimiter keeps one token bucket per key: a client address on the
// public API, a delivery id on the command routes. When the table is full the
// bucket idle for the longest time makes room for the new key, so a burst of
// fresh deliveries is never refused outright.
type TokenBucketLimiter struct {
	cfg   Config
	clock Clock

	mu      sync.Mutex
	buckets map[string]*bucket
	sweptAt time.Time
}

type bucket struct {
	level  float64
	seenAt time.Time
}

// NewTokenBucketLimiter creates a limiter. A nil clock means wall time.
func NewTokenBucketLimiter(clock Clock, cfg Config) *TokenBucketLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if !(cfg.Rate > 0) {
		cfg.Rate = 1
	}
	cfg.Burst = max(cfg.Burst, 1)
	cfg.MaxBuckets = max(cfg.MaxBuckets, 0)
	return &TokenBucketLimiter{cfg: cfg, clock: clock, buckets: make(map[string]*bucket)}
}

// Allow takes one token from the key's bucket and reports whether there was one.
func (l *TokenBucketLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	b := l.refill(key, now)
	if b.level < 1 {
		return false
	}
	b.level--
	return true
}

// Delay reports how long the key has to wait for its next token.
func (l *TokenBucketLimiter) Delay(key string) time.Duration {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	level := math.Min(b.level+now.Sub(b.seenAt).Seconds()*l.cfg.Rate, float64(l.cfg.Burst))
	if level >= 1 {
		return 0
	}
	return time.Duration((1 - level) / l.cfg.Rate * float64(time.Second))
}

// refill returns the key's bucket topped up to now. Callers hold l.mu.
func (l *TokenBucketLimiter) refill(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		if l.cfg.MaxBuckets > 0 && len(l.buckets) >= l.cfg.MaxBuckets {
			l.evictStalest()
		}
		b = &bucket{level: float64(l.cfg.Burst), seenAt: now}
		l.buckets[key] = b
		return b
	}
	if elapsed := now.Sub(b.seenAt); elapsed > 0 {
		b.level = math.Min(b.level+elapsed.Seconds()*l.cfg.Rate, float64(l.cfg.Burst))
		b.seenAt = now
	}
	return b
}

func (l *TokenBucketLimiter) evictStalest() {
	var (
		stalest string
		oldest  time.Time
		found   bool
	)
	for k, b := range l.buckets {
		if !found || b.seenAt.Before(oldest) {
			stalest, oldest, found = k, b.seenAt, true
		}
	}
	if found {
		delete(l.buckets, stalest)
	}
}

// sweep drops idle buckets at most once per half TTL. Callers hold l.mu.
func (l *TokenBucketLimiter) sweep(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}
	every := max(l.cfg.TTL/2, time.Minute)
	if !l.sweptAt.IsZero() && now.Sub(l.sweptAt) < every {
		return
	}
	l.sweptAt = now

	for k, b := range l.buckets {
		if now.Sub(b.seenAt) > l.cfg.TTL {
			delete(l.buckets, k)
		}
	}
}
