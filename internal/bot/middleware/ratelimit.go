package middleware

import (
	"sync"
	"time"
)

// Limit is a number of requests allowed per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

type hits struct {
	window time.Duration
	times  []time.Time
}

// RateLimiter is the per-user, per-command cooldown. Each command names a
// bucket; unknown buckets use the fallback limit.
// It uses a sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string]*hits
	limits   map[string]Limit
	fallback Limit
	now      func() time.Time
}

func NewRateLimiter(limits map[string]Limit, fallback Limit) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string]*hits),
		limits:   limits,
		fallback: fallback,
		now:      time.Now,
	}
}

func (rl *RateLimiter) limit(bucket string) Limit {
	if l, ok := rl.limits[bucket]; ok {
		return l
	}
	return rl.fallback
}

// Allow records a request of userID in bucket. When the limit is reached
// it returns false and how long until the oldest request leaves the window.
func (rl *RateLimiter) Allow(bucket, userID string) (bool, time.Duration) {
	l := rl.limit(bucket)
	if l.Requests <= 0 {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := bucket + ":" + userID
	h, ok := rl.requests[key]
	if !ok {
		h = &hits{window: l.Window}
		rl.requests[key] = h
	}
	h.times = recent(h.times, now.Add(-l.Window))

	if len(h.times) >= l.Requests {
		return false, h.times[0].Add(l.Window).Sub(now)
	}
	h.times = append(h.times, now)
	return true, 0
}

// Cleanup drops users whose requests all left their window.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, h := range rl.requests {
		h.times = recent(h.times, now.Add(-h.window))
		if len(h.times) == 0 {
			delete(rl.requests, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked user and bucket pairs.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

func recent(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
