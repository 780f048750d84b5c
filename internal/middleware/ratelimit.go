package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/securequery/agent-api/internal/handler"
)

// RateLimiter enforces a per-user query budget. Limiters are kept in an
// expiring cache so idle users do not accumulate.
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter caps each user at perMinute requests, allowing short
// bursts up to the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 15*time.Minute),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}
}

func (rl *RateLimiter) limiterFor(userID string) *rate.Limiter {
	if cached, ok := rl.limiters.Get(userID); ok {
		return cached.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.SetDefault(userID, limiter)
	return limiter
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := UserIDFromContext(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.limiterFor(key).Allow() {
			c.Header("Retry-After", "60")
			c.JSON(http.StatusTooManyRequests, handler.NewErrorResponse("query rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}
