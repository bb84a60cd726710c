package redisadapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding-window counter over a sorted set per key.
type RateLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	if prefix == "" {
		prefix = "rate_limit"
	}
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

// Allow records the attempt and reports whether it fits in the window. The
// attempt is counted even when rejected, so a client hammering the endpoint
// stays throttled.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	now := l.now()
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	windowStart := now.Add(-window).UnixNano()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	count := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, pkgerrors.Wrap(err, "rate limit pipeline")
	}
	return count.Val() < int64(limit), nil
}
