package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"vox-agent-backend/internal/config"
	"vox-agent-backend/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware limits requests per client IP using in-process token
// buckets. Health checks are exempt.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	limiters := struct {
		sync.Mutex
		byIP map[string]*rate.Limiter
	}{byIP: make(map[string]*rate.Limiter)}

	perSecond := float64(cfg.RateLimitReqs) / float64(cfg.RateLimitWindow)

	return func(c *gin.Context) {
		if c.FullPath() == "/health" {
			c.Next()
			return
		}

		ip := c.ClientIP()
		limiters.Lock()
		limiter, ok := limiters.byIP[ip]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(perSecond), cfg.RateLimitReqs)
			limiters.byIP[ip] = limiter
		}
		limiters.Unlock()

		if !limiter.Allow() {
			c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RateLimitReqs))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(
				time.Now().Add(time.Duration(cfg.RateLimitWindow)*time.Second).Unix(), 10))

			utils.RespondWithError(c, http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"Too many requests. Please try again later.",
				gin.H{
					"retry_after": cfg.RateLimitWindow,
					"limit":       cfg.RateLimitReqs,
				})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RateLimitReqs))
		c.Next()
	}
}
