package serviceability

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/rate-engine/ratecard"
)

const cacheNamespace = "serviceability"

// CachedChecker keeps answers of another Checker in Redis for a TTL.
// Errors from the wrapped checker are never cached. A Redis failure falls
// through to the wrapped checker.
type CachedChecker struct {
	next   Checker
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedChecker(next Checker, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CachedChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedChecker{next: next, client: client, ttl: ttl, logger: logger}
}

func cacheKey(carrier ratecard.Carrier, pincode string) string {
	return cacheNamespace + ":" + string(carrier) + ":" + pincode
}

func (c *CachedChecker) Check(ctx context.Context, carrier ratecard.Carrier, pincode string) (bool, error) {
	key := cacheKey(carrier, pincode)

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("serviceability cache read failed", zap.String("key", key), zap.Error(err))
	}

	ok, err := c.next.Check(ctx, carrier, pincode)
	if err != nil {
		return false, err
	}

	v := "0"
	if ok {
		v = "1"
	}
	if err := c.client.Set(ctx, key, v, c.ttl).Err(); err != nil {
		c.logger.Warn("serviceability cache write failed", zap.String("key", key), zap.Error(err))
	}
	return ok, nil
}

// Invalidate drops the cached answer for one carrier and pincode.
func (c *CachedChecker) Invalidate(ctx context.Context, carrier ratecard.Carrier, pincode string) error {
	return c.client.Del(ctx, cacheKey(carrier, pincode)).Err()
}
