package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"smsfilter/core/port/out"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "local.db")
	s, err := OpenSQLStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenSQLStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func openRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func openRedisStore(t *testing.T) *RedisStore {
	s, _ := openRedis(t)
	return s
}

func TestStores_Contract(t *testing.T) {
	stores := map[string]func(t *testing.T) out.KeyValueStore{
		"memory": func(t *testing.T) out.KeyValueStore { return NewMemoryStore() },
		"sqlite": func(t *testing.T) out.KeyValueStore { return openSQLite(t) },
		"redis":  func(t *testing.T) out.KeyValueStore { return openRedisStore(t) },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, out.ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}

			if err := s.Set(ctx, "k", []byte("v1")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set(ctx, "k", []byte("v2")); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			got, err := s.Get(ctx, "k")
			if err != nil || string(got) != "v2" {
				t.Errorf("Get(k) = %q, %v, want v2", got, err)
			}

			err = s.Update(ctx, "k", func(cur []byte) ([]byte, error) {
				return append(cur, '!'), nil
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			got, _ = s.Get(ctx, "k")
			if string(got) != "v2!" {
				t.Errorf("after Update Get(k) = %q, want v2!", got)
			}

			err = s.Update(ctx, "fresh", func(cur []byte) ([]byte, error) {
				if cur != nil && len(cur) != 0 {
					t.Errorf("Update(fresh) current = %q, want empty", cur)
				}
				return []byte("new"), nil
			})
			if err != nil {
				t.Fatalf("Update(fresh) error = %v", err)
			}

			boom := errors.New("boom")
			if err := s.Update(ctx, "k", func([]byte) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
				t.Errorf("Update() fn error = %v, want boom", err)
			}
			got, _ = s.Get(ctx, "k")
			if string(got) != "v2!" {
				t.Errorf("failed Update changed value to %q", got)
			}

			if err := s.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := s.Get(ctx, "k"); !errors.Is(err, out.ErrNotFound) {
				t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
			}
			if err := s.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr := openRedis(t)

	if err := s.Set(ctx, "rules", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := mr.Get("test:rules")
	if err != nil || got != "v" {
		t.Errorf("raw Get(test:rules) = %q, %v, want v", got, err)
	}
	if mr.Exists("rules") {
		t.Errorf("unprefixed key rules written")
	}
}

func TestRedisStore_UpdateConflict(t *testing.T) {
	ctx := context.Background()
	s, mr := openRedis(t)
	if err := s.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	calls := 0
	err := s.Update(ctx, "k", func(cur []byte) ([]byte, error) {
		calls++
		if err := other.Set(ctx, "test:k", "other", 0).Err(); err != nil {
			t.Fatalf("concurrent Set() error = %v", err)
		}
		return append(cur, '!'), nil
	})
	if !errors.Is(err, redis.TxFailedErr) {
		t.Fatalf("Update() error = %v, want redis.TxFailedErr", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "other" {
		t.Errorf("Get(k) = %q, %v, want other (conflicting write kept)", got, err)
	}
}

func TestRedisStore_Unreachable(t *testing.T) {
	ctx := context.Background()
	s, mr := openRedis(t)
	mr.Close()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, out.ErrStoreUnavailable) {
		t.Errorf("Get() error = %v, want ErrStoreUnavailable", err)
	}
	err := s.Update(ctx, "k", func(cur []byte) ([]byte, error) { return cur, nil })
	if !errors.Is(err, out.ErrStoreUnavailable) {
		t.Errorf("Update() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"local.db", "local.db?_pragma=busy_timeout(2000)"},
		{"file:local.db?mode=rwc", "file:local.db?mode=rwc&_pragma=busy_timeout(2000)"},
		{"local.db?_pragma=busy_timeout(500)", "local.db?_pragma=busy_timeout(500)"},
	}

	for _, tt := range tests {
		if got := sqliteDSN(tt.dsn); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestOpenSQLStore_BusyTimeout(t *testing.T) {
	s := openSQLite(t)

	var ms int
	if err := s.db.GetContext(context.Background(), &ms, `PRAGMA busy_timeout`); err != nil {
		t.Fatalf("PRAGMA busy_timeout error = %v", err)
	}
	if ms != 2000 {
		t.Errorf("busy_timeout = %d, want 2000", ms)
	}
}

func TestMemoryStore_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
				return append(cur, 'x'), nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, "counter")
	if len(got) != 50 {
		t.Errorf("len(counter) = %d, want 50", len(got))
	}
}

// brokenStore fails every call as an unreachable backend would.
type brokenStore struct {
	calls int
}

func (b *brokenStore) fail(op string) error {
	b.calls++
	return fmt.Errorf("%w: %s: connection refused", out.ErrStoreUnavailable, op)
}

func (b *brokenStore) Get(context.Context, string) ([]byte, error) { return nil, b.fail("get") }
func (b *brokenStore) Set(context.Context, string, []byte) error   { return b.fail("set") }
func (b *brokenStore) Delete(context.Context, string) error        { return b.fail("delete") }
func (b *brokenStore) Update(context.Context, string, out.UpdateFunc) error {
	return b.fail("update")
}
func (b *brokenStore) Ping(context.Context) error { return b.fail("ping") }
func (b *brokenStore) Close() error               { return nil }

func TestFallbackStore_UsesLocalWhenPrimaryDown(t *testing.T) {
	ctx := context.Background()
	primary := &brokenStore{}
	local := NewMemoryStore()
	s := NewFallbackStore(primary, local, FallbackConfig{}, zerolog.Nop())

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("Get() = %q, %v, want v from local", got, err)
	}
	if err := s.Update(ctx, "k", func(cur []byte) ([]byte, error) { return append(cur, '2'), nil }); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = local.Get(ctx, "k")
	if string(got) != "v2" {
		t.Errorf("local value = %q, want v2", got)
	}

	// three consecutive failures open the breaker
	callsBefore := primary.calls
	_, _ = s.Get(ctx, "k")
	if primary.calls != callsBefore {
		t.Errorf("primary called while breaker open")
	}
	if s.Ping(ctx) == nil {
		t.Errorf("Ping() = nil, want primary error")
	}
}

func TestFallbackStore_NotFoundDoesNotFallBack(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore()
	local := NewMemoryStore()
	_ = local.Set(ctx, "k", []byte("stale"))
	s := NewFallbackStore(primary, local, FallbackConfig{}, zerolog.Nop())

	if _, err := s.Get(ctx, "k"); !errors.Is(err, out.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound from primary", err)
	}

	boom := errors.New("boom")
	if err := s.Update(ctx, "k", func([]byte) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("Update() error = %v, want boom", err)
	}
	got, _ := local.Get(ctx, "k")
	if string(got) != "stale" {
		t.Errorf("local touched: %q", got)
	}
}
