package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter caps requests per client IP in a fixed window; a client over
// the limit is blocked for blockDuration. Redis errors fail open.
func RateLimiter(rdb redis.UniversalClient, limit int, window, blockDuration time.Duration, keyPrefix string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := keyPrefix + ":ip:" + c.ClientIP()
		blockKey := key + ":blocked"

		if ttl, err := rdb.TTL(ctx, blockKey).Result(); err == nil && ttl > 0 {
			tooMany(c, ttl)
			return
		}

		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		ttl := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		count := incr.Val()

		// A counter without a TTL would never reset; this also repairs one
		// left behind by an earlier failed EXPIRE.
		if ttl.Val() < 0 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				logger.Warn("rate limiter expire failed", zap.String("key", key), zap.Error(err))
			}
		}

		if count > int64(limit) {
			if err := rdb.Set(ctx, blockKey, "1", blockDuration).Err(); err != nil {
				logger.Warn("rate limiter block failed", zap.String("key", blockKey), zap.Error(err))
			}
			logger.Warn("client blocked", zap.String("ip", c.ClientIP()), zap.Int64("count", count))
			tooMany(c, blockDuration)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}

func tooMany(c *gin.Context, retry time.Duration) {
	c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"ok":          false,
		"stage":       "rate_limit",
		"reason":      "TOO_MANY_REQUESTS",
		"retry_after": int(retry.Seconds()),
	})
}
