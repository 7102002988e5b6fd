package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gopherchat/gopherchat/internal/common"
	"github.com/gopherchat/gopherchat/internal/store/redisstore"
)

// RateLimit caps requests per client IP over a fixed window. Redis being down
// fails open: chat availability beats throttling accuracy here.
func RateLimit(rds *redisstore.Store, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:chat:" + c.ClientIP()
		allowed, err := rds.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable, failing open", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			common.Fail(c, http.StatusTooManyRequests, "too many requests, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
