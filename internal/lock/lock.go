// Package lock provides short-lived distributed mutual exclusion on top of Redis.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/logx"
)

const defaultReleaseTimeout = 2 * time.Second

// Token is the fencing value stored under a held lock. Only its holder can release the lock.
type Token string

// releaseScript deletes the key only when it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Manager acquires and releases named locks with a time-to-live.
type Manager struct {
	client         redis.UniversalClient
	logger         logx.Logger
	releaseTimeout time.Duration
}

// NewManager creates a new Manager.
func NewManager(client redis.UniversalClient, logger logx.Logger) *Manager {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Manager{
		client:         client,
		logger:         logger,
		releaseTimeout: defaultReleaseTimeout,
	}
}

// DriverReserveKey returns the lock key guarding capacity changes of one driver.
func DriverReserveKey(driverID string) string {
	return "driver:reserve:" + driverID
}

// Acquire makes a single attempt to take the lock. It never waits for a busy lock.
// A store failure is reported as an error wrapping apperr.ErrUnavailable and the lock is not held.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (Token, bool, error) {
	if ttl <= 0 {
		return "", false, fmt.Errorf("lock ttl %s: %w", ttl, apperr.ErrInvalid)
	}

	token := Token(uuid.NewString())
	ok, err := m.client.SetNX(ctx, key, string(token), ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %q: %w: %w", key, apperr.ErrUnavailable, err)
	}
	if !ok {
		m.logger.Debug("lock busy", logx.String("key", key))
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lock if it is still held with token.
// It returns false when the lock expired or now belongs to someone else.
func (m *Manager) Release(ctx context.Context, key string, token Token) (bool, error) {
	n, err := releaseScript.Run(ctx, m.client, []string{key}, string(token)).Int()
	if err != nil {
		return false, fmt.Errorf("release lock %q: %w: %w", key, apperr.ErrUnavailable, err)
	}
	if n == 0 {
		m.logger.Warn("lock lost before release", logx.String("key", key))
		return false, nil
	}
	return true, nil
}

// WithLock runs fn while holding the lock. It returns false without running fn when the lock is busy.
// The lock is released after fn returns, fails or panics.
func (m *Manager) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	token, ok, err := m.Acquire(ctx, key, ttl)
	if err != nil || !ok {
		return false, err
	}

	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.releaseTimeout)
		defer cancel()
		if _, err := m.Release(relCtx, key, token); err != nil {
			m.logger.Error("lock release failed", logx.String("key", key), logx.Err(err))
		}
	}()

	return true, fn(ctx)
}
