package domain

import (
	"context"
	"time"
)

// HistoryCapacity bounds the classification history log. Oldest records are
// evicted first once it is exceeded.
const HistoryCapacity = 1000

// Classification is the durable record of one filter decision.
type Classification struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Signature string    `json:"signature,omitempty"`
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// DedupKey returns the cross-process identity of the classified message.
func (c *Classification) DedupKey() string {
	return DedupKey(c.Sender, c.Content, c.Timestamp)
}

// ClassificationHistoryRepository is the append-only, bounded decision log
// shared between the filter invocation and the foreground process.
type ClassificationHistoryRepository interface {
	Append(ctx context.Context, c *Classification) error
	LoadAll(ctx context.Context) ([]Classification, error)
	LoadLatest(ctx context.Context) (*Classification, error)
}
