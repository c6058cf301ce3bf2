package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// rateLimiter throttles vote submissions per client key. Votes are
// read-modify-write against shared counters, so a runaway client
// would otherwise amplify the accepted update races.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{clients: make(map[string]*rate.Limiter)}
}

func (l *rateLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.clients[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(5), 10)
		l.clients[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
