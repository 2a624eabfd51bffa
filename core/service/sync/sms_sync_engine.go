// Package syncer merges the shared classification history into the
// foreground working set and reclassifies it.
package syncer

import (
	"context"
	"fmt"
	"sort"

	"smsfilter/core/domain"
	"smsfilter/core/service/classification"
	"smsfilter/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// Sync Engine
// =============================================================================

// Engine is stateless apart from its collaborators; the caller owns the
// working set and serialises passes.
type Engine struct {
	history    domain.ClassificationHistoryRepository
	extractor  *classification.SignatureExtractor
	classifier *classification.Classifier

	newID func() string
	log   zerolog.Logger
}

// NewEngine creates a sync engine. Nil extractor/classifier select the defaults.
func NewEngine(
	history domain.ClassificationHistoryRepository,
	extractor *classification.SignatureExtractor,
	classifier *classification.Classifier,
	log zerolog.Logger,
) *Engine {
	if extractor == nil {
		extractor = classification.NewSignatureExtractor()
	}
	if classifier == nil {
		classifier = classification.NewClassifier(nil)
	}
	return &Engine{
		history:    history,
		extractor:  extractor,
		classifier: classifier,
		newID:      uuid.NewString,
		log:        log.With().Str("component", "sync").Logger(),
	}
}

// SyncFromHistory returns messages for history records not present in known.
// Records are matched by dedup key, so duplicates inside the history itself
// are materialised once. The recorded category is trusted as both the user
// category and the AI suggestion.
func (e *Engine) SyncFromHistory(ctx context.Context, known []domain.Message) ([]domain.Message, error) {
	records, err := e.history.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	seen := make(map[string]struct{}, len(known)+len(records))
	for i := range known {
		seen[known[i].DedupKey()] = struct{}{}
	}

	var added []domain.Message
	for i := range records {
		rec := &records[i]
		key := rec.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		added = append(added, domain.Message{
			ID:                  e.newID(),
			Sender:              rec.Sender,
			Content:             rec.Content,
			Timestamp:           rec.Timestamp,
			Signature:           rec.Signature,
			Category:            domain.CategoryPtr(rec.Category),
			AISuggestedCategory: domain.CategoryPtr(rec.Category),
		})
	}

	metrics.AddSyncMerged(len(added))
	e.log.Info().
		Int("history", len(records)).
		Int("known", len(known)).
		Int("added", len(added)).
		Msg("history synced")

	return added, nil
}

// ReclassifyAll recomputes signature and AI suggestion for every message and
// fills Category only where it is unset. The result is sorted newest first.
// Running it twice gives the same result as running it once.
func (e *Engine) ReclassifyAll(messages []domain.Message) []domain.Message {
	result := make([]domain.Message, len(messages))
	for i := range messages {
		m := messages[i].Clone()

		signature, _ := e.extractor.Extract(m.Content)
		m.Signature = signature

		category := e.classifier.Classify(m.Sender, m.Content)
		m.AISuggestedCategory = domain.CategoryPtr(category)
		if m.Category == nil {
			m.Category = domain.CategoryPtr(category)
		}
		result[i] = m
	}

	SortNewestFirst(result)
	metrics.AddReclassified(len(result))
	return result
}

// SyncAndReclassify merges new history records into known and reclassifies
// the union. On a history read failure nothing is returned and known is left
// as it was.
func (e *Engine) SyncAndReclassify(ctx context.Context, known []domain.Message) ([]domain.Message, int, error) {
	added, err := e.SyncFromHistory(ctx, known)
	if err != nil {
		return nil, 0, err
	}

	union := make([]domain.Message, 0, len(known)+len(added))
	union = append(union, known...)
	union = append(union, added...)

	return e.ReclassifyAll(union), len(added), nil
}

// SortNewestFirst orders messages by timestamp descending. Equal timestamps
// keep their relative order.
func SortNewestFirst(messages []domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})
}
