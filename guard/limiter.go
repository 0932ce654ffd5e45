package guard

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxRequests = 100
)

// Limiter admits or rejects one request for an identity.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// SlidingWindowLimiter remembers the accepted request timestamps of every
// identity and admits a request only while fewer than max of them fall inside
// the trailing window. Rejected requests are not recorded.
type SlidingWindowLimiter struct {
	window time.Duration
	max    int

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time

	// Now returns the current time. Tests replace it to control the window.
	Now func() time.Time
}

type bucket struct {
	mu   sync.Mutex
	hits []time.Time
	// dead marks a bucket removed by a sweep; holders must look it up again.
	dead bool
}

// NewSlidingWindowLimiter creates an in-memory limiter. Non-positive arguments
// select DefaultWindow and DefaultMaxRequests.
func NewSlidingWindowLimiter(window time.Duration, max int) *SlidingWindowLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	return &SlidingWindowLimiter{
		window:  window,
		max:     max,
		buckets: make(map[string]*bucket),
		Now:     time.Now,
	}
}

func (l *SlidingWindowLimiter) Window() time.Duration { return l.window }
func (l *SlidingWindowLimiter) Max() int              { return l.max }

// Allow records and admits the request when the identity is under its limit.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) bool {
	now := l.Now()
	l.maybeSweep(now)

	for {
		b := l.bucket(key)

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		b.evict(now.Add(-l.window))
		if len(b.hits) >= l.max {
			b.mu.Unlock()
			return false
		}
		b.hits = append(b.hits, now)
		b.mu.Unlock()
		return true
	}
}

// Len returns the number of identities currently tracked.
func (l *SlidingWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *SlidingWindowLimiter) bucket(key string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{}
		l.buckets[key] = b
	}
	return b
}

// maybeSweep drops identities without hits inside the window, at most once per window.
func (l *SlidingWindowLimiter) maybeSweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now

	cutoff := now.Add(-l.window)
	for key, b := range l.buckets {
		b.mu.Lock()
		b.evict(cutoff)
		if len(b.hits) == 0 {
			b.dead = true
			delete(l.buckets, key)
		}
		b.mu.Unlock()
	}
}

// evict drops hits at or before cutoff. Hits are kept in ascending order.
func (b *bucket) evict(cutoff time.Time) {
	i := 0
	for ; i < len(b.hits); i++ {
		if b.hits[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		b.hits = append(b.hits[:0], b.hits[i:]...)
	}
}
