package persistence

import (
	"context"
	"errors"

	"smsfilter/core/domain"
	"smsfilter/core/port/out"

	"github.com/rs/zerolog"
)

// RulesAdapter implements domain.FilterRulesRepository.
type RulesAdapter struct {
	store out.KeyValueStore
	log   zerolog.Logger
}

// NewRulesAdapter creates a new RulesAdapter.
func NewRulesAdapter(store out.KeyValueStore, log zerolog.Logger) *RulesAdapter {
	return &RulesAdapter{
		store: store,
		log:   log.With().Str("component", "rules_store").Logger(),
	}
}

// Load returns (nil, nil) when no rules are stored or the stored value is
// corrupt. Only store failures are errors.
func (a *RulesAdapter) Load(ctx context.Context) (*domain.FilterRules, error) {
	var rules domain.FilterRules
	found, err := readJSON(ctx, a.store, out.KeyFilterRules, &rules)
	if errors.Is(err, ErrCorrupt) {
		a.log.Warn().Err(err).Msg("filter rules unreadable, using default policy")
		return nil, nil
	}
	if err != nil || !found {
		return nil, err
	}
	return &rules, nil
}

// Save replaces the stored rules.
func (a *RulesAdapter) Save(ctx context.Context, rules *domain.FilterRules) error {
	return writeJSON(ctx, a.store, out.KeyFilterRules, rules)
}
