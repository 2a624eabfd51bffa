package domain

import (
	"context"
	"strconv"
	"time"
)

// =============================================================================
// Message
// =============================================================================

// UnknownSignature is the grouping key for messages without a signature.
const UnknownSignature = "未知签名"

// RawMessage is the input unit handed to the filter by the host.
type RawMessage struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Message is an entry of the foreground working set.
//
// ID is process-local. Two processes recognise the same message by DedupKey.
type Message struct {
	ID                  string    `json:"id"`
	Sender              string    `json:"sender"`
	Content             string    `json:"content"`
	Timestamp           time.Time `json:"timestamp"`
	Signature           string    `json:"signature,omitempty"`
	Category            *Category `json:"category,omitempty"`            // user-confirmed
	AISuggestedCategory *Category `json:"aiSuggestedCategory,omitempty"` // classifier output
}

// DedupKey returns the cross-process identity of the message.
func (m *Message) DedupKey() string {
	return DedupKey(m.Sender, m.Content, m.Timestamp)
}

// DedupKey builds sender-content-unixSeconds.
func DedupKey(sender, content string, ts time.Time) string {
	return sender + "-" + content + "-" + strconv.FormatInt(ts.Unix(), 10)
}

// EffectiveCategory resolves the category used for grouping and filtering:
// the user category, else the AI suggestion, else other.
func EffectiveCategory(m *Message) Category {
	if m.Category != nil {
		return *m.Category
	}
	if m.AISuggestedCategory != nil {
		return *m.AISuggestedCategory
	}
	return CategoryOther
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	if m.Category != nil {
		m.Category = CategoryPtr(*m.Category)
	}
	if m.AISuggestedCategory != nil {
		m.AISuggestedCategory = CategoryPtr(*m.AISuggestedCategory)
	}
	return m
}

// CategoryStat is the per-category message count.
type CategoryStat struct {
	Category    Category `json:"category"`
	DisplayName string   `json:"displayName"`
	Count       int      `json:"count"`
}

// MessageRepository persists the foreground working set.
type MessageRepository interface {
	Load(ctx context.Context) ([]Message, error)
	Save(ctx context.Context, messages []Message) error
}
