package api

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterSweepEvery = 512

// IPLimiter is a token bucket per client IP. Buckets idle for longer than
// the window are evicted on a sweep every limiterSweepEvery calls.
type IPLimiter struct {
	limit  rate.Limit
	burst  int
	window time.Duration

	mu    sync.Mutex
	byIP  map[string]*bucket
	calls uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPLimiter allows max requests per window for each IP, refilled evenly.
// It returns nil, which allows everything, when max or window is not positive.
func NewIPLimiter(max int, window time.Duration) *IPLimiter {
	if max <= 0 || window <= 0 {
		return nil
	}
	return &IPLimiter{
		limit:  rate.Every(window / time.Duration(max)),
		burst:  max,
		window: window,
		byIP:   make(map[string]*bucket),
	}
}

func (l *IPLimiter) Allow(ip string, now time.Time) bool {
	if l == nil {
		return true
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byIP[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.calls++
	if l.calls%limiterSweepEvery == 0 {
		cutoff := now.Add(-l.window)
		for k, v := range l.byIP {
			if v.lastSeen.Before(cutoff) {
				delete(l.byIP, k)
			}
		}
	}
	return allowed
}

// Len returns the number of tracked IPs.
func (l *IPLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byIP)
}
