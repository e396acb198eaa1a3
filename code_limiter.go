package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errCodeRateLimited        = errors.New("code requests rate limited")
	errCodeLimiterUnavailable = errors.New("code limiter unavailable")
)

// codeRequestLimiter caps code requests per source IP in fixed windows.
// It is an extra guard on top of the single-outstanding-code invariant,
// covering requests spread across many email addresses.
type codeRequestLimiter struct {
	redis  redis.UniversalClient
	config CodeConfig
	window time.Duration
}

func newCodeRequestLimiter(redisClient redis.UniversalClient, cfg CodeConfig) *codeRequestLimiter {
	return &codeRequestLimiter{
		redis:  redisClient,
		config: cfg,
		window: cfg.TTL,
	}
}

func (l *codeRequestLimiter) CheckRequest(ctx context.Context, ip string) error {
	if !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	return l.enforceFixedWindow(ctx, l.config.RedisPrefix+":ipreq:"+ip)
}

func (l *codeRequestLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errCodeLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", errCodeLimiterUnavailable, err)
		}
	}

	if count > int64(l.config.IPThrottleMax) {
		return errCodeRateLimited
	}

	return nil
}
