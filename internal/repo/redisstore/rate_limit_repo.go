package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/doorlink/doorlink/internal/domain"
	"github.com/doorlink/doorlink/pkg/logger"
)

const rateLimitKeyPrefix = "ratelimit:"

type RateLimitRepository interface {
	// Check counts an attempt for the caller and reports whether the
	// window limit has been exceeded. Remaining attempts and the window
	// reset time are reported regardless of outcome.
	Check(ctx context.Context, caller string) (domain.RateLimitResult, error)
	// Reset clears the caller's window, used after a verified success.
	Reset(ctx context.Context, caller string) error
}

type rateLimitRepository struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewRateLimitRepository(client *redis.Client, maxAttempts int, window time.Duration) RateLimitRepository {
	return &rateLimitRepository{client: client, max: maxAttempts, window: window}
}

func (r *rateLimitRepository) Check(ctx context.Context, caller string) (domain.RateLimitResult, error) {
	key := rateLimitKeyPrefix + caller

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, r.window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		// Door access takes priority over the abuse guard when Redis is
		// down: fail open.
		logger.WarnContext(ctx, "Rate limit check failed, allowing attempt", "error", err)
		return domain.RateLimitResult{
			Limited:   false,
			Remaining: r.max,
			ResetAt:   time.Now().Add(r.window),
		}, nil
	}

	count := int(incr.Val())
	remaining := r.max - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := time.Now().Add(r.window)
	if d := ttl.Val(); d > 0 {
		resetAt = time.Now().Add(d)
	}

	return domain.RateLimitResult{
		Limited:   count > r.max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (r *rateLimitRepository) Reset(ctx context.Context, caller string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Del(ctx, rateLimitKeyPrefix+caller).Err()
}
