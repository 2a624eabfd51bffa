package filter

import (
	"context"
	"fmt"
	"time"

	"smsfilter/core/domain"
	"smsfilter/core/service/classification"
	"smsfilter/pkg/metrics"

	"github.com/rs/zerolog"
)

// DefaultDeadline bounds one filter request when no deadline is configured.
const DefaultDeadline = 500 * time.Millisecond

// =============================================================================
// Filter Service (per-message invocation)
// =============================================================================

// Service answers one filter request: extract signature, classify, record the
// classification in the shared history, resolve the action.
//
// Handle always returns a decision. Store failures only skip persistence, and
// any failure to decide answers allow.
type Service struct {
	extractor  *classification.SignatureExtractor
	classifier *classification.Classifier
	rulesRepo  domain.FilterRulesRepository
	history    domain.ClassificationHistoryRepository

	deadline time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// ServiceDeps holds dependencies for creating a Service.
type ServiceDeps struct {
	Extractor  *classification.SignatureExtractor
	Classifier *classification.Classifier
	RulesRepo  domain.FilterRulesRepository
	History    domain.ClassificationHistoryRepository
	Deadline   time.Duration
	Now        func() time.Time
}

// NewService creates a filter service. Nil extractor/classifier select the defaults.
func NewService(deps *ServiceDeps, log zerolog.Logger) *Service {
	s := &Service{
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		rulesRepo:  deps.RulesRepo,
		history:    deps.History,
		deadline:   deps.Deadline,
		now:        deps.Now,
		log:        log.With().Str("component", "filter").Logger(),
	}
	if s.extractor == nil {
		s.extractor = classification.NewSignatureExtractor()
	}
	if s.classifier == nil {
		s.classifier = classification.NewClassifier(nil)
	}
	if s.deadline <= 0 {
		s.deadline = DefaultDeadline
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Capabilities answers the host capability query.
func (s *Service) Capabilities() domain.FilterCapabilities {
	return domain.DefaultFilterCapabilities()
}

// Handle decides on one message.
func (s *Service) Handle(ctx context.Context, msg domain.RawMessage) (decision *domain.FilterDecision) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("filter request panicked, answering allow")
			decision = domain.AllowDecision()
		}
		metrics.RecordFilterDecision(string(decision.Action), decision.Source, string(decision.Category), time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	signature, _ := s.extractor.Extract(msg.Content)
	category := s.classifier.Classify(msg.Sender, msg.Content)

	s.log.Debug().
		Str("sender", msg.Sender).
		Int("content_len", len([]rune(msg.Content))).
		Str("signature", signature).
		Str("category", string(category)).
		Msg("message classified")

	record := &domain.Classification{
		Sender:    msg.Sender,
		Content:   msg.Content,
		Signature: signature,
		Category:  category,
		Timestamp: s.now(),
	}
	if err := s.record(ctx, record); err != nil {
		s.log.Warn().Err(err).Msg("classification not persisted")
	}

	rules := s.loadRules(ctx)
	res := ResolveWithSource(signature, category, rules)

	decision = &domain.FilterDecision{
		Action:    res.Action,
		SubAction: domain.SubActionNone,
		Category:  category,
		Signature: signature,
		Source:    res.Source,
	}
	if res.Action == domain.FilterActionSuppress {
		decision.SubAction = domain.SubActionFor(category)
	}

	s.log.Info().
		Str("action", string(decision.Action)).
		Str("sub_action", string(decision.SubAction)).
		Str("source", decision.Source).
		Str("category", string(category)).
		Msg("filter decision")

	return decision
}

func (s *Service) record(ctx context.Context, c *domain.Classification) error {
	if s.history == nil {
		return nil
	}
	if err := s.history.Append(ctx, c); err != nil {
		return fmt.Errorf("append classification: %w", err)
	}
	return nil
}

// loadRules returns nil when rules are missing or unreadable; the resolver
// then applies the default policy.
func (s *Service) loadRules(ctx context.Context) *domain.FilterRules {
	if s.rulesRepo == nil {
		return nil
	}
	rules, err := s.rulesRepo.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("filter rules unavailable, using default policy")
		return nil
	}
	return rules
}
