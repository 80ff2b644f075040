package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"estately/internal/pkg/errors"
)

const (
	LimitWebhook = "webhook"
	LimitAPIRead = "api_read"
)

const defaultLimit = 100

type RateLimiter struct {
	store  *sync.Map // map[string]*Bucket
	limits map[string]int
	now    func() time.Time
}

type Bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
	lastAccess time.Time
}

// NewRateLimiter builds a limiter allowing limits[kind] requests per minute
// per caller. Kinds without an entry get defaultLimit.
func NewRateLimiter(limits map[string]int) *RateLimiter {
	return &RateLimiter{
		store:  &sync.Map{},
		limits: limits,
		now:    time.Now,
	}
}

// Cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	now := rl.now()
	rl.store.Range(func(key, value interface{}) bool {
		bucket := value.(*Bucket)
		bucket.mu.Lock()
		if now.Sub(bucket.lastAccess) > maxIdle {
			rl.store.Delete(key)
		}
		bucket.mu.Unlock()
		return true
	})
}

// CleanupLoop runs Cleanup every interval until stop is closed.
func (rl *RateLimiter) CleanupLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(interval)
		case <-stop:
			return
		}
	}
}

func (rl *RateLimiter) limit(kind string) int {
	if l, ok := rl.limits[kind]; ok && l > 0 {
		return l
	}
	return defaultLimit
}

func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &Bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	bucket := val.(*Bucket)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now

	// Rate is limit / 60 seconds
	elapsed := now.Sub(bucket.lastRefill)
	refillTokens := int(elapsed.Seconds() * float64(limit) / 60.0)

	if refillTokens > 0 {
		if bucket.tokens+refillTokens > limit {
			bucket.tokens = limit
		} else {
			bucket.tokens += refillTokens
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}

	return false
}

// RateLimit keys callers by user id when authenticated, else by remote IP.
func (rl *RateLimiter) RateLimit(kind string) Middleware {
	limit := rl.limit(kind)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var key string
			if claims, ok := ClaimsFrom(r); ok {
				key = fmt.Sprintf("user:%s:%s", claims.UserID, kind)
			} else {
				key = fmt.Sprintf("ip:%s:%s", remoteIP(r), kind)
			}

			if !rl.Allow(key, limit) {
				w.Header().Set("Retry-After", "60")
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
