package out

import (
	"context"
	"errors"
)

// Keys shared by the filter invocation and the foreground process.
const (
	KeyFilterRules           = "filterRules"
	KeyLastClassification    = "lastClassification"
	KeyClassificationHistory = "classificationHistory"
	KeySavedMessages         = "savedMessages"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrStoreUnavailable wraps transport failures of a backend.
	ErrStoreUnavailable = errors.New("kvstore: store unavailable")
)

// UpdateFunc receives the current value (nil when absent) and returns the
// value to write.
type UpdateFunc func(current []byte) ([]byte, error)

// KeyValueStore is the persisted store reachable by both processes.
// Every write replaces the whole value of a key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Update performs a read-modify-write that concurrent readers of the same
	// key observe as a single write.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	Ping(ctx context.Context) error
	Close() error
}
