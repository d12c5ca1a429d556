package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Rejection names why a relay start was refused. The values double as the
// reason label of the rejection metric.
type Rejection string

const (
	RejectRateLimited Rejection = "rate_limited"
	RejectBusy        Rejection = "busy"
)

// clientIdleTTL is how long an unused client bucket is kept.
const clientIdleTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RelayLimiter admits relay starts. Each client gets a token bucket refilled
// at requestsPerMinute, and a weighted semaphore caps the relays running at
// once across all clients.
type RelayLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientBucket

	slots  *semaphore.Weighted
	active atomic.Int64
	now    func() time.Time
}

// NewRelayLimiter creates a limiter. A non-positive requestsPerMinute turns
// off per-client limiting; a non-positive maxConcurrent removes the cap.
func NewRelayLimiter(requestsPerMinute, burst, maxConcurrent int) *RelayLimiter {
	l := &RelayLimiter{
		limit:   rate.Inf,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
	if requestsPerMinute > 0 {
		l.limit = rate.Limit(float64(requestsPerMinute) / 60)
		l.burst = burst
		if l.burst <= 0 {
			l.burst = 1
		}
	}
	if maxConcurrent > 0 {
		l.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return l
}

// Acquire reserves a relay start for client. On success the returned release
// must be called when the relay ends; it is safe to call more than once.
func (l *RelayLimiter) Acquire(client string) (release func(), rejected Rejection) {
	if !l.allow(client) {
		return nil, RejectRateLimited
	}
	if l.slots != nil && !l.slots.TryAcquire(1) {
		return nil, RejectBusy
	}

	l.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.active.Add(-1)
			if l.slots != nil {
				l.slots.Release(1)
			}
		})
	}, ""
}

func (l *RelayLimiter) allow(client string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.clients {
		if now.Sub(b.lastSeen) > clientIdleTTL {
			delete(l.clients, key)
		}
	}

	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Stats returns the number of tracked clients and relays currently running.
func (l *RelayLimiter) Stats() (clients int, active int) {
	l.mu.Lock()
	clients = len(l.clients)
	l.mu.Unlock()
	return clients, int(l.active.Load())
}
