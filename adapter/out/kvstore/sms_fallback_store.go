package kvstore

import (
	"context"
	"errors"
	"time"

	"smsfilter/core/port/out"
	"smsfilter/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// FallbackStore routes operations to the shared store through a circuit
// breaker and falls back to a process-local store when the shared store is
// unreachable. Missing keys and Update conflicts are answered by the shared
// store and never trigger the fallback.
type FallbackStore struct {
	primary out.KeyValueStore
	local   out.KeyValueStore
	cb      *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// FallbackConfig tunes the breaker in front of the shared store.
type FallbackConfig struct {
	Name    string
	Timeout time.Duration // open state duration before half-open
}

// NewFallbackStore wraps primary with a breaker; local is used on failure.
func NewFallbackStore(primary, local out.KeyValueStore, cfg FallbackConfig, log zerolog.Logger) *FallbackStore {
	if cfg.Name == "" {
		cfg.Name = "shared-store"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &FallbackStore{
		primary: primary,
		local:   local,
		log:     log.With().Str("component", "store").Logger(),
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, out.ErrStoreUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return s
}

func (s *FallbackStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.cb.Execute(func() (interface{}, error) {
		return s.primary.Get(ctx, key)
	})
	if err == nil {
		return v.([]byte), nil
	}
	if !s.shouldFallback(err) {
		return nil, err
	}
	s.fellBack("get", key, err)
	return s.local.Get(ctx, key)
}

func (s *FallbackStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.primary.Set(ctx, key, value)
	})
	if err == nil || !s.shouldFallback(err) {
		return err
	}
	s.fellBack("set", key, err)
	return s.local.Set(ctx, key, value)
}

func (s *FallbackStore) Delete(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.primary.Delete(ctx, key)
	})
	if err == nil || !s.shouldFallback(err) {
		return err
	}
	s.fellBack("delete", key, err)
	return s.local.Delete(ctx, key)
}

func (s *FallbackStore) Update(ctx context.Context, key string, fn out.UpdateFunc) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.primary.Update(ctx, key, fn)
	})
	if err == nil || !s.shouldFallback(err) {
		return err
	}
	s.fellBack("update", key, err)
	return s.local.Update(ctx, key, fn)
}

// Ping reports the shared store only; the local store is always assumed usable.
func (s *FallbackStore) Ping(ctx context.Context) error {
	return s.primary.Ping(ctx)
}

func (s *FallbackStore) Close() error {
	return errors.Join(s.primary.Close(), s.local.Close())
}

// State exposes the breaker state for health reporting.
func (s *FallbackStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *FallbackStore) shouldFallback(err error) bool {
	return errors.Is(err, out.ErrStoreUnavailable) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (s *FallbackStore) fellBack(op, key string, err error) {
	metrics.RecordStoreError(op)
	metrics.RecordStoreFallback(op)
	s.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("shared store unavailable, using local store")
}
