package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("staff calendar lock not acquired")

// Locker serializes writers touching one staff member's calendar. It is an
// optimization in front of the storage-level exclusion constraint, not the
// correctness mechanism: losing the lock early only means the second writer
// fails fast instead of at commit.
type Locker interface {
	WithStaffLock(ctx context.Context, tenantID, staffID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisStaffLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStaffLocker creates a locker keyed per (tenant, staff).
func NewRedisStaffLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisStaffLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisStaffLocker) WithStaffLock(ctx context.Context, tenantID, staffID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:staff:%s:%s", tenantID, staffID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		// Redis down: skip the fast-fail path. The exclusion constraint
		// still guards correctness.
		return fn(ctx)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// Release only the token we own; another writer may have taken the key over
// after a TTL expiry.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisStaffLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release staff lock: %w", err)
	}
	return nil
}
