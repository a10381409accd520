package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("appointment lock not acquired")
)

// Guard marks an appointment as having a reschedule in flight. The lock is
// held from validation until the attempt commits, rolls back or is cancelled.
type Guard interface {
	Acquire(ctx context.Context, appointmentID uuid.UUID) (release func(), err error)
}

type redisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard creates a guard that uses a per appointment Redis key, so
// replicas sharing the Redis instance also see each other's attempts.
func NewRedisGuard(client *redis.Client, ttl time.Duration) Guard {
	return &redisGuard{
		client: client,
		ttl:    ttl,
	}
}

func lockKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:appointment:%s", id.String())
}

func (g *redisGuard) Acquire(ctx context.Context, appointmentID uuid.UUID) (func(), error) {
	key := lockKey(appointmentID)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire appointment lock: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	release := func() {
		// The caller's context may already be done by the time the attempt finishes.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = g.release(ctx, key, token)
	}
	return release, nil
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (g *redisGuard) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, g.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release appointment lock: %w", err)
	}
	return nil
}
