// Package ratelimit keeps one token bucket per client key.
package ratelimit

import (
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	// DefaultLimit is the number of requests a client may make per window.
	DefaultLimit = 60

	// DefaultWindow is the refill window.
	DefaultWindow = time.Minute

	// DefaultMaxKeys bounds the number of clients tracked at once.
	DefaultMaxKeys = 10000
)

// Config configures a Registry.
type Config struct {
	Limit   int
	Window  time.Duration
	MaxKeys int

	// Now overrides the clock.
	Now func() time.Time
}

// Registry hands out a limiter per key. Least recently seen keys are evicted
// once MaxKeys is reached, which resets their bucket.
type Registry struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	every    rate.Limit
	burst    int
	now      func() time.Time
}

// New creates a Registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cache, err := lru.New[string, *rate.Limiter](cfg.MaxKeys)
	if err != nil {
		return nil, err
	}

	return &Registry{
		limiters: cache,
		every:    rate.Every(cfg.Window / time.Duration(cfg.Limit)),
		burst:    cfg.Limit,
		now:      cfg.Now,
	}, nil
}

// Allow takes one token for key. When the bucket is empty it returns false and
// how long the client should wait before retrying.
func (r *Registry) Allow(key string) (bool, time.Duration) {
	lim := r.limiter(key)
	now := r.now()

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RetryAfterSeconds rounds a delay up to whole seconds, minimum one.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// Len reports how many keys are currently tracked.
func (r *Registry) Len() int {
	return r.limiters.Len()
}

func (r *Registry) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lim, ok := r.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(r.every, r.burst)
	r.limiters.Add(key, lim)
	return lim
}
