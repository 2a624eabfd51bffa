package classification

import (
	"strings"

	"smsfilter/core/domain"
)

// =============================================================================
// Keyword Score Classifier
// =============================================================================

// CategoryScore is the score of one category for one message.
type CategoryScore struct {
	Category domain.Category `json:"category"`
	Score    float64         `json:"score"`
	Signals  []string        `json:"signals,omitempty"` // matched keywords and structural signals
}

// Classifier scores messages against a lexicon. It is stateless and safe for
// concurrent use.
type Classifier struct {
	entries []compiledEntry
}

type compiledEntry struct {
	LexiconEntry
	lowered []string
}

// NewClassifier creates a classifier over lexicon. A nil lexicon selects
// DefaultLexicon.
func NewClassifier(lexicon Lexicon) *Classifier {
	if lexicon == nil {
		lexicon = DefaultLexicon
	}
	c := &Classifier{entries: make([]compiledEntry, 0, len(lexicon))}
	for _, e := range lexicon {
		lowered := make([]string, len(e.Keywords))
		for i, kw := range e.Keywords {
			lowered[i] = strings.ToLower(kw)
		}
		c.entries = append(c.entries, compiledEntry{LexiconEntry: e, lowered: lowered})
	}
	return c
}

// Scores returns the score of every lexicon category in lexicon order.
func (c *Classifier) Scores(sender, content string) []CategoryScore {
	senderLower := strings.ToLower(sender)
	contentLower := strings.ToLower(content)

	scores := make([]CategoryScore, 0, len(c.entries))
	for _, e := range c.entries {
		s := CategoryScore{Category: e.Category}

		for i, kw := range e.lowered {
			if strings.Contains(contentLower, kw) {
				s.Score += ContentKeywordWeight
				s.Signals = append(s.Signals, e.Keywords[i])
			}
		}
		for i, kw := range e.lowered {
			if strings.Contains(senderLower, kw) {
				s.Score += SenderKeywordWeight
				s.Signals = append(s.Signals, "sender:"+e.Keywords[i])
			}
		}

		if e.Pattern != nil && e.Pattern.MatchString(content) {
			s.Score += e.Bonus
			s.Signals = append(s.Signals, e.Signal)
		}

		scores = append(scores, s)
	}
	return scores
}

// Classify returns the winning category, or other when nothing scores.
// Ties go to the category that comes first in lexicon order.
func (c *Classifier) Classify(sender, content string) domain.Category {
	best := domain.CategoryOther
	bestScore := 0.0
	for _, s := range c.Scores(sender, content) {
		if s.Score > bestScore {
			best = s.Category
			bestScore = s.Score
		}
	}
	return best
}

// Confidence returns the keyword match ratio of category in [0, 1]. Structural
// bonuses are not counted. Categories without a lexicon entry return 0.
func (c *Classifier) Confidence(sender, content string, category domain.Category) float64 {
	var entry *compiledEntry
	for i := range c.entries {
		if c.entries[i].Category == category {
			entry = &c.entries[i]
			break
		}
	}
	if entry == nil || len(entry.lowered) == 0 {
		return 0
	}

	senderLower := strings.ToLower(sender)
	contentLower := strings.ToLower(content)

	score := 0.0
	for _, kw := range entry.lowered {
		if strings.Contains(contentLower, kw) {
			score += ContentKeywordWeight
		}
		if strings.Contains(senderLower, kw) {
			score += SenderKeywordWeight
		}
	}

	confidence := score / float64(len(entry.lowered))
	if confidence > 1.0 {
		return 1.0
	}
	return confidence
}

// ClassifyBatch classifies every message, keyed by message ID.
func (c *Classifier) ClassifyBatch(messages []domain.Message) map[string]domain.Category {
	results := make(map[string]domain.Category, len(messages))
	for i := range messages {
		results[messages[i].ID] = c.Classify(messages[i].Sender, messages[i].Content)
	}
	return results
}
