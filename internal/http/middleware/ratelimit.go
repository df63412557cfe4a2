package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig config for Redis-based RPS limiter.
type RateLimitConfig struct {
	Redis          *redis.Client
	RPS            int           // requests per window per tenant; <= 0 disables
	Burst          int           // extra requests allowed on top of RPS
	KeyPrefix      string        // e.g. "rl:tenant:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
}

// RateLimitMiddleware applies a fixed-window per-tenant limit.
// It expects tenant_id in echo.Context (set by PublicKeyMiddleware).
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:tenant:"
	}
	max := int64(cfg.RPS + cfg.Burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, ok := TenantIDFromCtx(c)
			if !ok || cfg.RPS <= 0 || cfg.Redis == nil {
				// no tenant, no limit configured or redis missing (dev): allow
				return next(c)
			}

			now := time.Now()
			key := windowKey(cfg.KeyPrefix, tenantID, now, cfg.Window)

			ctx := c.Request().Context()
			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window*2)
			if _, err := pipe.Exec(ctx); err != nil {
				// fail open: losing redis must not stop lead intake
				c.Logger().Warnf("rate limit: %v", err)
				return next(c)
			}

			if cnt.Val() > max {
				if cfg.RetryAfterHint {
					c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(now, cfg.Window)))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}
			return next(c)
		}
	}
}

// windowKey is rl:tenant:{id}:{window index}.
func windowKey(prefix, tenantID string, now time.Time, window time.Duration) string {
	return prefix + tenantID + ":" + strconv.FormatInt(now.UnixNano()/int64(window), 10)
}

func retryAfterSeconds(now time.Time, window time.Duration) int {
	remain := window - time.Duration(now.UnixNano()%int64(window))
	secs := int((remain + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
