package middleware

import (
	"net/http"
	"sync"
	"time"
)

const (
	defaultBurst  = 10
	idleEviction  = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

// clientLimiter tracks a token bucket per client IP. Buckets refill
// continuously at rate tokens per second up to burst. Idle buckets are swept
// inline during Take, so the limiter owns no background goroutine.
type clientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*tokenBucket
	rate      float64
	burst     float64
	lastSweep time.Time
	now       func() time.Time
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

func newClientLimiter(rate float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = defaultBurst
	}
	return &clientLimiter{
		clients: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   float64(burst),
		now:     time.Now,
	}
}

// Take spends one token for the client, reporting whether one was available.
func (l *clientLimiter) Take(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.clients[client]
	if !ok {
		b = &tokenBucket{tokens: l.burst, seen: now}
		l.clients[client] = b
	}
	b.tokens += now.Sub(b.seen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *clientLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-idleEviction)
	for client, b := range l.clients {
		if b.seen.Before(cutoff) {
			delete(l.clients, client)
		}
	}
}

// RateLimit caps each client IP to rate requests per second with the given
// burst headroom, answering 429 once the bucket runs dry.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := newClientLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// RealIP runs earlier in the chain and rewrites RemoteAddr from
			// the proxy headers.
			if !limiter.Take(r.RemoteAddr) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
