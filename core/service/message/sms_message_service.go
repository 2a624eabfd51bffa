// Package message owns the foreground working set of messages.
package message

import (
	"context"
	"sort"
	"sync"

	"smsfilter/core/domain"
	"smsfilter/core/service/classification"
	syncer "smsfilter/core/service/sync"
	"smsfilter/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// Message Service
// =============================================================================

// Service holds the working set in memory and persists it after every
// mutation. The set is always sorted newest first.
type Service struct {
	repo       domain.MessageRepository
	engine     *syncer.Engine
	classifier *classification.Classifier
	log        zerolog.Logger

	mu       sync.Mutex
	messages []domain.Message
}

// NewService creates a message service. A nil classifier selects the default.
func NewService(repo domain.MessageRepository, engine *syncer.Engine, classifier *classification.Classifier, log zerolog.Logger) *Service {
	if classifier == nil {
		classifier = classification.NewClassifier(nil)
	}
	return &Service{
		repo:       repo,
		engine:     engine,
		classifier: classifier,
		log:        log.With().Str("component", "messages").Logger(),
	}
}

// SignatureGroup is one bucket of GroupBySignature.
type SignatureGroup struct {
	Signature string           `json:"signature"`
	Messages  []domain.Message `json:"messages"`
}

// CategoryGroup is one bucket of GroupByCategory.
type CategoryGroup struct {
	Category    domain.Category  `json:"category"`
	DisplayName string           `json:"displayName"`
	Messages    []domain.Message `json:"messages"`
}

// Load replaces the working set with the persisted one.
func (s *Service) Load(ctx context.Context) error {
	messages, err := s.repo.Load(ctx)
	if err != nil {
		return apperr.StoreUnavailable("load messages", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = messages
	syncer.SortNewestFirst(s.messages)
	s.log.Info().Int("count", len(messages)).Msg("working set loaded")
	return nil
}

// Messages returns a copy of the working set.
func (s *Service) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.messages)
}

// Get returns one message by ID.
func (s *Service) Get(id string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.messages[i].Clone(), nil
	}
	return domain.Message{}, apperr.NotFound("message")
}

// Import merges messages into the working set by dedup key and classifies
// the result. It returns how many messages were new.
func (s *Service) Import(ctx context.Context, incoming []domain.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.messages)+len(incoming))
	for i := range s.messages {
		seen[s.messages[i].DedupKey()] = struct{}{}
	}

	merged := cloneAll(s.messages)
	added := 0
	for _, m := range incoming {
		key := m.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		m = m.Clone()
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		merged = append(merged, m)
		added++
	}

	s.messages = s.engine.ReclassifyAll(merged)
	s.persist(ctx)

	s.log.Info().Int("incoming", len(incoming)).Int("added", added).Msg("messages imported")
	return added
}

// SetCategory records a user-confirmed category.
func (s *Service) SetCategory(ctx context.Context, id string, category domain.Category) error {
	if !category.IsValid() {
		return apperr.InvalidInput("category", "unknown category")
	}
	return s.update(ctx, id, func(m *domain.Message) {
		m.Category = domain.CategoryPtr(category)
	})
}

// ApplyAICategory accepts the classifier suggestion as the user category.
func (s *Service) ApplyAICategory(ctx context.Context, id string) error {
	return s.update(ctx, id, func(m *domain.Message) {
		if m.AISuggestedCategory == nil {
			m.AISuggestedCategory = domain.CategoryPtr(s.classifier.Classify(m.Sender, m.Content))
		}
		m.Category = domain.CategoryPtr(*m.AISuggestedCategory)
	})
}

// ApplyAllAICategories accepts every suggestion and returns how many
// categories changed.
func (s *Service) ApplyAllAICategories(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	suggestions := s.classifier.ClassifyBatch(s.messages)

	changed := 0
	for i := range s.messages {
		m := &s.messages[i]
		suggested := suggestions[m.ID]
		if m.AISuggestedCategory != nil {
			suggested = *m.AISuggestedCategory
		}
		m.AISuggestedCategory = domain.CategoryPtr(suggested)
		if m.Category == nil || *m.Category != suggested {
			m.Category = domain.CategoryPtr(suggested)
			changed++
		}
	}
	if changed > 0 {
		s.persist(ctx)
	}
	return changed
}

// GroupBySignature buckets messages by signature, unsigned ones under
// domain.UnknownSignature. Larger groups come first.
func (s *Service) GroupBySignature() []SignatureGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int)
	var groups []SignatureGroup
	for i := range s.messages {
		sig := s.messages[i].Signature
		if sig == "" {
			sig = domain.UnknownSignature
		}
		n, ok := index[sig]
		if !ok {
			n = len(groups)
			index[sig] = n
			groups = append(groups, SignatureGroup{Signature: sig})
		}
		groups[n].Messages = append(groups[n].Messages, s.messages[i].Clone())
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Messages) > len(groups[j].Messages)
	})
	return groups
}

// GroupByCategory returns one group per category in declaration order, empty
// groups included.
func (s *Service) GroupByCategory() []CategoryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := domain.AllCategories()
	pos := make(map[domain.Category]int, len(all))
	groups := make([]CategoryGroup, len(all))
	for i, c := range all {
		pos[c] = i
		groups[i] = CategoryGroup{Category: c, DisplayName: c.DisplayName(), Messages: []domain.Message{}}
	}

	for i := range s.messages {
		c := domain.EffectiveCategory(&s.messages[i])
		n, ok := pos[c]
		if !ok {
			n = pos[domain.CategoryOther]
		}
		groups[n].Messages = append(groups[n].Messages, s.messages[i].Clone())
	}
	return groups
}

// Stats counts messages per effective category, all categories included.
func (s *Service) Stats() []domain.CategoryStat {
	groups := s.GroupByCategory()
	stats := make([]domain.CategoryStat, len(groups))
	for i, g := range groups {
		stats[i] = domain.CategoryStat{Category: g.Category, DisplayName: g.DisplayName, Count: len(g.Messages)}
	}
	return stats
}

// Delete removes one message.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.DeleteMany(ctx, []string{id}) == 0 {
		return apperr.NotFound("message")
	}
	return nil
}

// DeleteMany removes the given IDs and returns how many were removed.
func (s *Service) DeleteMany(ctx context.Context, ids []string) int {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return s.deleteWhere(ctx, func(m *domain.Message) bool {
		_, ok := set[m.ID]
		return ok
	})
}

// DeleteBySignature removes every message with the signature.
// domain.UnknownSignature matches unsigned messages.
func (s *Service) DeleteBySignature(ctx context.Context, signature string) int {
	return s.deleteWhere(ctx, func(m *domain.Message) bool {
		if signature == domain.UnknownSignature {
			return m.Signature == ""
		}
		return m.Signature == signature
	})
}

// DeleteByCategory removes every message whose effective category matches.
func (s *Service) DeleteByCategory(ctx context.Context, category domain.Category) int {
	return s.deleteWhere(ctx, func(m *domain.Message) bool {
		return domain.EffectiveCategory(m) == category
	})
}

// DeleteAll empties the working set.
func (s *Service) DeleteAll(ctx context.Context) int {
	return s.deleteWhere(ctx, func(*domain.Message) bool { return true })
}

// SyncAndReclassify pulls the shared history into the working set. The pass
// either completes or leaves the working set untouched.
func (s *Service) SyncAndReclassify(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, added, err := s.engine.SyncAndReclassify(ctx, s.messages)
	if err != nil {
		s.log.Warn().Err(err).Msg("sync skipped")
		return 0, apperr.StoreUnavailable("sync history", err)
	}
	s.messages = result
	s.persist(ctx)
	return added, nil
}

func (s *Service) update(ctx context.Context, id string, fn func(*domain.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return apperr.NotFound("message")
	}
	fn(&s.messages[i])
	s.persist(ctx)
	return nil
}

func (s *Service) deleteWhere(ctx context.Context, match func(*domain.Message) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.messages[:0:0]
	for i := range s.messages {
		if !match(&s.messages[i]) {
			kept = append(kept, s.messages[i])
		}
	}
	removed := len(s.messages) - len(kept)
	if removed == 0 {
		return 0
	}
	s.messages = kept
	s.persist(ctx)
	s.log.Info().Int("removed", removed).Msg("messages deleted")
	return removed
}

// persist saves the working set; a failed save is logged and the in-memory
// state is kept. Callers hold mu.
func (s *Service) persist(ctx context.Context) {
	syncer.SortNewestFirst(s.messages)
	if err := s.repo.Save(ctx, s.messages); err != nil {
		s.log.Warn().Err(err).Int("count", len(s.messages)).Msg("working set not persisted")
	}
}

func (s *Service) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(messages []domain.Message) []domain.Message {
	out := make([]domain.Message, len(messages))
	for i := range messages {
		out[i] = messages[i].Clone()
	}
	return out
}
