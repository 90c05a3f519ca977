package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterTTL             = 10 * time.Minute
	limiterCleanupInterval = time.Minute
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit 按用户限流（令牌桶），超出返回 429；需放在 Identity 之后
func RateLimit(cfg config.RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mu          sync.Mutex
		limiters    = make(map[string]*userLimiter)
		lastCleanup time.Time
	)

	return func(c *gin.Context) {
		now := time.Now()
		key := UserID(c)
		if key == "" {
			key = c.ClientIP()
		}

		mu.Lock()
		l, ok := limiters[key]
		if !ok {
			l = &userLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			limiters[key] = l
		}
		l.lastSeen = now

		if now.Sub(lastCleanup) > limiterCleanupInterval {
			for k, v := range limiters {
				if now.Sub(v.lastSeen) > limiterTTL {
					delete(limiters, k)
				}
			}
			lastCleanup = now
		}
		mu.Unlock()

		if !l.limiter.AllowN(now, 1) {
			logger.Warn("请求过于频繁",
				zap.String("key", key),
				zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "too many requests"})
			return
		}
		c.Next()
	}
}
