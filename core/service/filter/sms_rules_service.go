package filter

import (
	"context"
	"sort"
	"sync"

	"smsfilter/core/domain"

	"github.com/rs/zerolog"
)

// CandidateMinCount is how often a signature must appear before it is proposed
// as a rule candidate.
const CandidateMinCount = 3

// =============================================================================
// Rules Service
// =============================================================================

// RulesService owns the rule table on the settings side. Every mutation is a
// load-modify-save of the whole table; the resolver only ever sees snapshots.
type RulesService struct {
	repo domain.FilterRulesRepository
	log  zerolog.Logger

	mu sync.Mutex
}

// NewRulesService creates a rules service.
func NewRulesService(repo domain.FilterRulesRepository, log zerolog.Logger) *RulesService {
	return &RulesService{
		repo: repo,
		log:  log.With().Str("component", "rules").Logger(),
	}
}

// Load returns the stored rules, or DefaultFilterRules when nothing usable is stored.
func (s *RulesService) Load(ctx context.Context) (*domain.FilterRules, error) {
	rules, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		return domain.DefaultFilterRules(), nil
	}
	if rules.SignatureRules == nil {
		rules.SignatureRules = make(map[string]domain.FilterRule)
	}
	if rules.CategoryRules == nil {
		rules.CategoryRules = make(map[domain.Category]domain.FilterRule)
	}
	return rules, nil
}

// Save replaces the stored rules.
func (s *RulesService) Save(ctx context.Context, rules *domain.FilterRules) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Save(ctx, rules.Clone())
}

// UpdateSignatureRule sets an enabled rule for signature.
func (s *RulesService) UpdateSignatureRule(ctx context.Context, signature string, action domain.FilterAction) (*domain.FilterRules, error) {
	return s.mutate(ctx, func(r *domain.FilterRules) {
		r.SignatureRules[signature] = domain.FilterRule{Action: action, Enabled: true}
	})
}

// RemoveSignatureRule deletes the rule for signature.
func (s *RulesService) RemoveSignatureRule(ctx context.Context, signature string) (*domain.FilterRules, error) {
	return s.mutate(ctx, func(r *domain.FilterRules) {
		delete(r.SignatureRules, signature)
	})
}

// UpdateCategoryRule sets an enabled rule for category.
func (s *RulesService) UpdateCategoryRule(ctx context.Context, category domain.Category, action domain.FilterAction) (*domain.FilterRules, error) {
	return s.mutate(ctx, func(r *domain.FilterRules) {
		r.CategoryRules[category] = domain.FilterRule{Action: action, Enabled: true}
	})
}

// RemoveCategoryRule deletes the rule for category.
func (s *RulesService) RemoveCategoryRule(ctx context.Context, category domain.Category) (*domain.FilterRules, error) {
	return s.mutate(ctx, func(r *domain.FilterRules) {
		delete(r.CategoryRules, category)
	})
}

// SetAutoFilterPromotion writes an explicit promotion category rule. Turning
// it off writes an allow rule, since removing the rule would fall back to the
// default policy, which suppresses promotions.
func (s *RulesService) SetAutoFilterPromotion(ctx context.Context, enabled bool) (*domain.FilterRules, error) {
	action := domain.FilterActionAllow
	if enabled {
		action = domain.FilterActionSuppress
	}
	return s.UpdateCategoryRule(ctx, domain.CategoryPromotion, action)
}

// AutoFilterPromotion reports whether promotions are currently suppressed.
func (s *RulesService) AutoFilterPromotion(ctx context.Context) (bool, error) {
	rules, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	res := ResolveWithSource("", domain.CategoryPromotion, rules)
	return res.Action == domain.FilterActionSuppress, nil
}

// Stats summarises the stored rules.
func (s *RulesService) Stats(ctx context.Context) (domain.FilterRulesStats, error) {
	rules, err := s.Load(ctx)
	if err != nil {
		return domain.FilterRulesStats{}, err
	}
	return rules.Stats(), nil
}

// SuppressedCategories lists categories with an enabled suppress rule, in
// declaration order.
func (s *RulesService) SuppressedCategories(ctx context.Context) ([]domain.Category, error) {
	rules, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Category
	for _, c := range domain.AllCategories() {
		if rule, ok := rules.CategoryRules[c]; ok && rule.Enabled && rule.Action == domain.FilterActionSuppress {
			out = append(out, c)
		}
	}
	return out, nil
}

// CreateRulesFromMessages proposes signatures seen at least CandidateMinCount
// times that have no rule yet. Nothing is written; the user decides.
func (s *RulesService) CreateRulesFromMessages(ctx context.Context, messages []domain.Message) ([]domain.SignatureCandidate, error) {
	rules, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := range messages {
		if sig := messages[i].Signature; sig != "" {
			counts[sig]++
		}
	}

	var candidates []domain.SignatureCandidate
	for sig, n := range counts {
		if n < CandidateMinCount {
			continue
		}
		if _, exists := rules.SignatureRules[sig]; exists {
			continue
		}
		candidates = append(candidates, domain.SignatureCandidate{Signature: sig, Count: n})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Count != candidates[j].Count {
			return candidates[i].Count > candidates[j].Count
		}
		return candidates[i].Signature < candidates[j].Signature
	})

	s.log.Debug().
		Int("signatures", len(counts)).
		Int("candidates", len(candidates)).
		Msg("signature candidates computed")

	return candidates, nil
}

func (s *RulesService) mutate(ctx context.Context, fn func(*domain.FilterRules)) (*domain.FilterRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	next := rules.Clone()
	fn(next)

	if err := s.repo.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}
