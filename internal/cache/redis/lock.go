package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/drlab-io/drlab/internal/pkg/crypto"
	"github.com/drlab-io/drlab/internal/repository"
)

// releaseScript deletes a lock key only if this process owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL only if this process owns the lock.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock implements repository.DistributedLock using Redis SET NX with a
// per-instance ownership token, so one instance cannot release a lock
// another instance holds.
type Lock struct {
	client *goredis.Client
	token  string
}

// NewLock creates a Redis-backed distributed lock.
func NewLock(client *goredis.Client) (*Lock, error) {
	token, err := crypto.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}
	return &Lock{
		client: client,
		token:  token,
	}, nil
}

// Acquire attempts to acquire a lock.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := l.client.SetNX(ctx, key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return acquired, nil
}

// AcquireWithRetry attempts to acquire a lock with retries.
func (l *Lock) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for i := 0; i <= maxRetries; i++ {
		acquired, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		// Don't sleep on the last attempt.
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return false, nil
}

// Release releases a lock held by this instance.
func (l *Lock) Release(ctx context.Context, key string) (bool, error) {
	released, err := releaseScript.Run(ctx, l.client, []string{key}, l.token).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return released == 1, nil
}

// Extend extends the TTL of a lock held by this instance.
func (l *Lock) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	extended, err := extendScript.Run(ctx, l.client, []string{key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to extend lock %s: %w", key, err)
	}
	return extended == 1, nil
}

// IsHeld checks if the lock is currently held by any instance.
func (l *Lock) IsHeld(ctx context.Context, key string) (bool, error) {
	err := l.client.Get(ctx, key).Err()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check lock %s: %w", key, err)
	}
	return true, nil
}

// Ensure Lock implements repository.DistributedLock.
var _ repository.DistributedLock = (*Lock)(nil)
