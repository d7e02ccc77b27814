package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/restopos/backend/internal/domain/ledger"
	"go.uber.org/zap"
)

// RedisLocker serializes mutations per product across processes using Redis.
// Used when several POS terminals run their own ledger instance against a
// shared database; a single-node deployment uses KeyedMutex instead.
type RedisLocker struct {
	client      *redislock.Client
	logger      *zap.Logger
	ttl         time.Duration
	waitTimeout time.Duration
}

// NewRedisLocker creates a RedisLocker on the given Redis client
func NewRedisLocker(client redis.UniversalClient, ttl, waitTimeout time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	return &RedisLocker{
		client:      redislock.New(client),
		logger:      logger,
		ttl:         ttl,
		waitTimeout: waitTimeout,
	}
}

// Acquire obtains the distributed lock for a product, retrying with backoff
// until the wait budget is exhausted
func (l *RedisLocker) Acquire(ctx context.Context, productID uuid.UUID) (func(), error) {
	key := "ledger:product:" + productID.String()

	acquireCtx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	lock, err := l.client.Obtain(acquireCtx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.ExponentialBackoff(10*time.Millisecond, 250*time.Millisecond),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ledger.NewLockTimeoutError(productID, l.waitTimeout)
		}
		return nil, err
	}

	return func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil {
			// The TTL reclaims the lock if release fails.
			l.logger.Warn("failed to release product lock",
				zap.String("product_id", productID.String()),
				zap.Error(releaseErr),
			)
		}
	}, nil
}
