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
	// ErrLockNotAcquired means another request is mutating the same
	// professional's calendar right now.
	ErrLockNotAcquired = errors.New("booking lock not acquired")
)

// Locker serializes appointment and block mutations per professional.
type Locker interface {
	WithProfessionalLock(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context) error) error
}

type professionalLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfessionalLocker creates a locker backed by a per-professional redis key.
func NewProfessionalLocker(client *redis.Client, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &professionalLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *professionalLocker) WithProfessionalLock(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:professional:%s", professionalID.String())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire booking lock: %w", err)
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

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *professionalLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}
