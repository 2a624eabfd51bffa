// Package persistence implements the domain repositories on top of the
// key-value store port.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"smsfilter/core/port/out"

	"github.com/goccy/go-json"
)

// Common persistence errors
var (
	ErrCorrupt = errors.New("stored value is corrupt")
)

// readJSON loads key into v. found is false when the key is absent or its
// value cannot be decoded; only store failures are returned as errors.
func readJSON(ctx context.Context, store out.KeyValueStore, key string, v any) (found bool, err error) {
	data, err := store.Get(ctx, key)
	if errors.Is(err, out.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func writeJSON(ctx context.Context, store out.KeyValueStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, data)
}
