// Package cache holds the advisory Redis projections used by the dispatcher.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"service-dispatcher/internal/apperr"
)

const scanBatch = 100

// NewClient creates a Redis client and checks the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// UpdateFunc computes the next value of a key from its current one.
// found is false on a miss. Returning write=false leaves the key untouched.
type UpdateFunc func(current []byte, found bool) (next []byte, write bool, err error)

type updateError struct{ err error }

func (e updateError) Error() string { return e.err.Error() }
func (e updateError) Unwrap() error { return e.err }

// CompareAndSet applies fn to key under WATCH and writes the result in MULTI/EXEC.
// A write that races another client is retried up to maxRetries times,
// after that apperr.ErrTooMuchContention is returned.
func CompareAndSet(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration, maxRetries int, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		found := true
		switch {
		case errors.Is(err, redis.Nil):
			found = false
		case err != nil:
			return err
		}

		next, write, err := fn(current, found)
		if err != nil {
			return updateError{err: err}
		}
		if !write {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var ue updateError
		if errors.As(err, &ue) {
			return ue.err
		}
		return fmt.Errorf("compare and set %q: %w: %w", key, apperr.ErrUnavailable, err)
	}
	return fmt.Errorf("compare and set %q after %d attempts: %w", key, maxRetries, apperr.ErrTooMuchContention)
}

// DeletePattern removes every key matching pattern, scanning in batches.
func DeletePattern(ctx context.Context, client redis.UniversalClient, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %q: %w: %w", pattern, apperr.ErrUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("delete %q: %w: %w", pattern, apperr.ErrUnavailable, err)
			}
			deleted += int(n)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}
