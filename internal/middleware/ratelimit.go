package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
)

// RateLimit throttles requests per client IP with the given limiter. Every
// response carries the X-RateLimit-* headers; once the limit is reached the
// request is answered with 429 and Retry-After.
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := GetLoggerFromCtx(c.Request.Context())
		key := c.ClientIP()

		lctx, err := l.Get(c.Request.Context(), key)
		if err != nil {
			logger.Error("Rate limit store unavailable", slog.String("client", key), slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error during rate limit check"})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			if wait := lctx.Reset - nowUnix(); wait > 0 {
				c.Header("Retry-After", strconv.FormatInt(wait, 10))
			}
			logger.Warn("Rate limit exceeded", slog.String("client", key), slog.Int64("limit", lctx.Limit))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}

		c.Next()
	}
}

func nowUnix() int64 { return time.Now().Unix() }
