// Package ratelimit throttles requests per client key, either in process or
// shared across instances through Redis.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

const (
	defaultMaxKeys = 10_000
	defaultIdleTTL = 5 * time.Minute
)

// Local keeps one token bucket per key. Idle buckets expire and the key set
// is bounded, so a flood of distinct clients cannot grow memory unbounded.
type Local struct {
	mu        sync.Mutex
	buckets   *expirable.LRU[string, *rate.Limiter]
	perSecond rate.Limit
	burst     int
}

var _ Limiter = (*Local)(nil)

func NewLocal(perSecond float64, burst int) *Local {
	return &Local{
		buckets:   expirable.NewLRU[string, *rate.Limiter](defaultMaxKeys, nil, defaultIdleTTL),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
	}
}

func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.perSecond, l.burst)
	}
	// Re-adding refreshes the idle TTL.
	l.buckets.Add(key, lim)
	l.mu.Unlock()

	if lim.Allow() {
		return Decision{Allowed: true}, nil
	}
	return Decision{RetryAfter: l.refill()}, nil
}

func (l *Local) refill() time.Duration {
	if l.perSecond <= 0 {
		return time.Second
	}
	return time.Duration(math.Ceil(float64(time.Second) / float64(l.perSecond)))
}

// Len reports how many client buckets are tracked.
func (l *Local) Len() int {
	return l.buckets.Len()
}
