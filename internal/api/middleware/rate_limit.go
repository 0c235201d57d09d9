package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/utils"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per user, falling back to client IP.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(perSec float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(perSec),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
		buckets: map[string]*bucket{},
	}
}

func (r *RateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.buckets[key]
	if !ok {
		r.sweep(now)
		b = &bucket{lim: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops buckets idle longer than r.idle; called on insert only.
func (r *RateLimiter) sweep(now time.Time) {
	for k, b := range r.buckets {
		if now.Sub(b.seen) > r.idle {
			delete(r.buckets, k)
		}
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if v, ok := c.Get("user_id"); ok {
			if s, ok := v.(string); ok && s != "" {
				key = "user:" + s
			}
		}

		if !r.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiError{
				Code:    utils.CodeRateLimited,
				Message: "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
