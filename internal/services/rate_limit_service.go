package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int           // requests allowed per window
	Window   time.Duration // refill window
	Burst    int           // extra requests allowed at once
	IdleTTL  time.Duration // limiters unused this long are dropped
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

type keyLimiter struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	last    time.Time
}

// RateLimitService keeps one token bucket per key (client IP). Order
// creation and retry are throttled with it since each call creates a gateway
// order.
type RateLimitService struct {
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	limiters sync.Map // map[string]*keyLimiter
	now      func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(cfg RateLimitConfig) *RateLimitService {
	if cfg.Requests <= 0 {
		cfg.Requests = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}

	return &RateLimitService{
		limit:   rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		now:     time.Now,
	}
}

// Allow consumes a token for key or returns a RateLimitError
func (s *RateLimitService) Allow(key string) error {
	v, _ := s.limiters.LoadOrStore(key, &keyLimiter{limiter: rate.NewLimiter(s.limit, s.burst)})
	kl := v.(*keyLimiter)

	now := s.now()
	kl.mu.Lock()
	kl.last = now
	kl.mu.Unlock()

	reservation := kl.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return &RateLimitError{Message: "Too many requests"}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &RateLimitError{
			Message:    "Too many requests, please try again later",
			RetryAfter: delay,
		}
	}
	return nil
}

// Cleanup drops limiters idle for longer than the configured TTL
func (s *RateLimitService) Cleanup() int {
	cutoff := s.now().Add(-s.idleTTL)
	removed := 0
	s.limiters.Range(func(key, val any) bool {
		kl := val.(*keyLimiter)
		kl.mu.Lock()
		idle := kl.last.Before(cutoff)
		kl.mu.Unlock()
		if idle {
			s.limiters.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done
func (s *RateLimitService) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
