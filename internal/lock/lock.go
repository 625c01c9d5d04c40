// Package lock serializes ledger writes per account across API replicas.
// Correctness never depends on it: the conditional balance update is the
// authority, the lock only cuts down on contended debits.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is held elsewhere for the whole wait.
var ErrNotAcquired = errors.New("account lock not acquired")

const redisKeyPrefix = "ledger:lock:account"

// AccountLocker acquires an exclusive hold on an account id.
type AccountLocker interface {
	Lock(ctx context.Context, accountID string) (release func(), err error)
}

// Nop never blocks.
type Nop struct{}

func (Nop) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock with token-checked release.
type RedisLocker struct {
	redis redis.Cmdable
	ttl   time.Duration
	retry time.Duration
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{redis: client, ttl: ttl, retry: 25 * time.Millisecond}
}

// Lock polls until the key is free, ctx is done, or one ttl has elapsed.
func (l *RedisLocker) Lock(ctx context.Context, accountID string) (func(), error) {
	key := redisKey(accountID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire account lock: %w", err)
		}
		if ok {
			return func() {
				// The unit's context may already be done; release on a fresh one.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.redis, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func redisKey(accountID string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, accountID)
}
