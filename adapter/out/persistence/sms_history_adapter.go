package persistence

import (
	"context"
	"errors"
	"fmt"

	"smsfilter/core/domain"
	"smsfilter/core/port/out"
	"smsfilter/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// =============================================================================
// Classification History Adapter
// =============================================================================

// HistoryAdapter implements domain.ClassificationHistoryRepository as a JSON
// array under one key, capped at domain.HistoryCapacity.
type HistoryAdapter struct {
	store    out.KeyValueStore
	capacity int
	log      zerolog.Logger
}

// NewHistoryAdapter creates a new HistoryAdapter.
func NewHistoryAdapter(store out.KeyValueStore, log zerolog.Logger) *HistoryAdapter {
	return &HistoryAdapter{
		store:    store,
		capacity: domain.HistoryCapacity,
		log:      log.With().Str("component", "history").Logger(),
	}
}

// Append pushes c to the back of the log in a single atomic update and trims
// the oldest entries beyond capacity. The latest record is also written to its
// own key.
func (a *HistoryAdapter) Append(ctx context.Context, c *domain.Classification) error {
	var size int
	err := a.store.Update(ctx, out.KeyClassificationHistory, func(current []byte) ([]byte, error) {
		history := a.decode(current)
		history = append(history, *c)
		if over := len(history) - a.capacity; over > 0 {
			history = history[over:]
		}
		size = len(history)
		return json.Marshal(history)
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	metrics.SetHistorySize(size)

	if err := writeJSON(ctx, a.store, out.KeyLastClassification, c); err != nil {
		return fmt.Errorf("write last classification: %w", err)
	}
	return nil
}

// LoadAll returns the log in insertion order. A missing or corrupt log is empty.
func (a *HistoryAdapter) LoadAll(ctx context.Context) ([]domain.Classification, error) {
	var history []domain.Classification
	found, err := readJSON(ctx, a.store, out.KeyClassificationHistory, &history)
	if errors.Is(err, ErrCorrupt) {
		a.log.Warn().Err(err).Msg("classification history unreadable, treating as empty")
		return []domain.Classification{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !found || history == nil {
		return []domain.Classification{}, nil
	}
	return history, nil
}

// LoadLatest returns the most recent classification, or nil when none exists.
func (a *HistoryAdapter) LoadLatest(ctx context.Context) (*domain.Classification, error) {
	var last domain.Classification
	found, err := readJSON(ctx, a.store, out.KeyLastClassification, &last)
	if errors.Is(err, ErrCorrupt) {
		a.log.Warn().Err(err).Msg("last classification unreadable")
	} else if err != nil {
		return nil, err
	}
	if found {
		return &last, nil
	}

	history, err := a.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (a *HistoryAdapter) decode(data []byte) []domain.Classification {
	if len(data) == 0 {
		return nil
	}
	var history []domain.Classification
	if err := json.Unmarshal(data, &history); err != nil {
		a.log.Warn().Err(err).Msg("classification history corrupt, starting a new log")
		return nil
	}
	return history
}
