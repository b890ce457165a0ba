package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackvento/portal-api/pkg/config"
	appErrors "github.com/hackvento/portal-api/pkg/errors"
	"github.com/hackvento/portal-api/pkg/response"
)

// RateLimit returns a Redis-backed fixed-window limiter keyed by client IP.
// A Redis outage fails open: registration availability wins over throttling.
func RateLimit(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := int64(cfg.PerMinute)
	if limit <= 0 {
		limit = 30
	}

	return func(c *gin.Context) {
		if !cfg.Enabled || client == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:register:%s:%d", c.ClientIP(), time.Now().Unix()/60)
		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(c.Request.Context(), key, time.Minute).Err(); err != nil {
				logger.Warn("rate limit window expiry failed", zap.String("key", key), zap.Error(err))
			}
		}
		if count > limit {
			response.Error(c, appErrors.New("RATE_LIMITED", http.StatusTooManyRequests, "too many registration attempts, slow down"))
			c.Abort()
			return
		}
		c.Next()
	}
}
