package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"speedquant/internal/config"
	"speedquant/internal/errors"
)

// RateLimit applies a process-wide token bucket to every request. Returns a
// pass-through handler when limiting is disabled.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.Burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			writeError(c, errors.NewAppError(errors.ErrCodeRateLimit, "rate limit exceeded", nil))
			return
		}
		c.Next()
	}
}
