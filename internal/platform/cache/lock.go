package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sitebooks/sitebooks/internal/shared"
)

// ErrLockHeld is returned when another holder owns the key.
var ErrLockHeld = shared.Classify(shared.ErrConflict, "platform/cache: lock held")

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks stored in Redis.
type Locker struct {
	client *redis.Client
	prefix string
}

// NewLocker constructs a Locker. Keys are namespaced with prefix.
func NewLocker(client *redis.Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Acquire obtains the lock for key or returns ErrLockHeld. The returned
// release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	full := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("platform/cache: acquire %s: %w", full, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{full}, token).Err()
	}, nil
}
