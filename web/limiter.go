package web

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// loginLimiter throttles login attempts per client address.
type loginLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

// newLoginLimiter allows perMinute attempts with burst. A non positive rate
// disables throttling.
func newLoginLimiter(perMinute, burst int) *loginLimiter {
	if burst <= 0 {
		burst = 1
	}
	l := &loginLimiter{visitors: make(map[string]*visitor), burst: burst, limit: rate.Inf}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return l
}

func (l *loginLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[addr]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[addr] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Sweep forgets addresses idle for longer than idle.
func (l *loginLimiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for addr, v := range l.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(l.visitors, addr)
			n++
		}
	}
	return n
}
