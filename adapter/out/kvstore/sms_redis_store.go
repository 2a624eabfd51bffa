package kvstore

import (
	"context"
	"errors"
	"fmt"

	"smsfilter/core/port/out"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared store backed by Redis. Keys are namespaced by prefix
// so several app groups can share one Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, out.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Update runs fn inside WATCH/MULTI. If another writer touches the key between
// the read and the write, the transaction is aborted and redis.TxFailedErr is
// returned; nothing is written in that case.
func (s *RedisStore) Update(ctx context.Context, key string, fn out.UpdateFunc) error {
	k := s.key(key)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		if err == redis.Nil {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return &updateFnError{err: err}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}, k)

	if err == nil || errors.Is(err, redis.TxFailedErr) {
		return err
	}
	var fnErr *updateFnError
	if errors.As(err, &fnErr) {
		return fnErr.err
	}
	return unavailable("update", err)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", out.ErrStoreUnavailable, op, err)
}

// updateFnError marks errors returned by an UpdateFunc so they are not
// mistaken for transport failures.
type updateFnError struct{ err error }

func (e *updateFnError) Error() string { return e.err.Error() }
func (e *updateFnError) Unwrap() error { return e.err }
