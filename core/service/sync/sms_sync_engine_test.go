package syncer

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"smsfilter/core/domain"

	"github.com/rs/zerolog"
)

type fakeHistory struct {
	records []domain.Classification
	err     error
}

func (f *fakeHistory) Append(_ context.Context, c *domain.Classification) error {
	f.records = append(f.records, *c)
	return nil
}

func (f *fakeHistory) LoadAll(context.Context) ([]domain.Classification, error) {
	return f.records, f.err
}

func (f *fakeHistory) LoadLatest(context.Context) (*domain.Classification, error) {
	if len(f.records) == 0 {
		return nil, f.err
	}
	return &f.records[len(f.records)-1], f.err
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(h *fakeHistory) *Engine {
	e := NewEngine(h, nil, nil, zerolog.Nop())
	n := 0
	e.newID = func() string {
		n++
		return "id-" + string(rune('a'+n-1))
	}
	return e
}

func TestSyncFromHistory_DedupAgainstKnownAndWithinHistory(t *testing.T) {
	bank := domain.Classification{
		Sender:    "95588",
		Content:   "【工商银行】您的账户支出100元",
		Signature: "工商银行",
		Category:  domain.CategoryFinance,
		Timestamp: base,
	}
	h := &fakeHistory{records: []domain.Classification{bank, bank}}
	e := newTestEngine(h)

	added, err := e.SyncFromHistory(context.Background(), nil)
	if err != nil {
		t.Fatalf("SyncFromHistory() error = %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("len(added) = %d, want 1", len(added))
	}
	m := added[0]
	if m.Category == nil || *m.Category != domain.CategoryFinance {
		t.Errorf("Category = %v, want finance", m.Category)
	}
	if m.AISuggestedCategory == nil || *m.AISuggestedCategory != domain.CategoryFinance {
		t.Errorf("AISuggestedCategory = %v, want finance", m.AISuggestedCategory)
	}
	if m.Signature != "工商银行" || m.ID == "" {
		t.Errorf("message = %+v", m)
	}

	// second sync with the merged message known adds nothing
	again, err := e.SyncFromHistory(context.Background(), added)
	if err != nil || len(again) != 0 {
		t.Errorf("second SyncFromHistory() = %d messages, %v, want 0", len(again), err)
	}
}

func TestSyncFromHistory_SubSecondTimestampsCollide(t *testing.T) {
	rec := domain.Classification{Sender: "10086", Content: "余额提醒", Category: domain.CategoryNotification, Timestamp: base}
	known := []domain.Message{{ID: "x", Sender: "10086", Content: "余额提醒", Timestamp: base.Add(300 * time.Millisecond)}}

	added, err := newTestEngine(&fakeHistory{records: []domain.Classification{rec}}).SyncFromHistory(context.Background(), known)
	if err != nil || len(added) != 0 {
		t.Errorf("SyncFromHistory() = %d, %v, want 0 (same second)", len(added), err)
	}
}

func TestSyncFromHistory_StoreError(t *testing.T) {
	boom := errors.New("down")
	_, err := newTestEngine(&fakeHistory{err: boom}).SyncFromHistory(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Errorf("SyncFromHistory() error = %v, want %v", err, boom)
	}
}

func TestReclassifyAll(t *testing.T) {
	user := domain.CategoryWork
	messages := []domain.Message{
		{ID: "1", Sender: "10690", Content: "【淘宝】双11大促，全场5折优惠", Timestamp: base},
		{ID: "2", Sender: "alice", Content: "明天会议改到下午", Timestamp: base.Add(time.Hour), Category: &user},
		{ID: "3", Sender: "106", Content: "【某某】您的验证码是123456", Timestamp: base.Add(-time.Hour)},
	}
	e := newTestEngine(&fakeHistory{})

	got := e.ReclassifyAll(messages)

	wantOrder := []string{"2", "1", "3"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("order[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	for _, m := range got {
		if m.AISuggestedCategory == nil {
			t.Errorf("message %s has nil AISuggestedCategory", m.ID)
		}
	}
	if *got[0].Category != domain.CategoryWork {
		t.Errorf("user category clobbered: %v", *got[0].Category)
	}
	if *got[1].Category != domain.CategoryPromotion || got[1].Signature != "淘宝" {
		t.Errorf("promotion message = %+v", got[1])
	}
	if *got[2].AISuggestedCategory != domain.CategoryVerification {
		t.Errorf("verification message suggestion = %v", *got[2].AISuggestedCategory)
	}
	if messages[0].Category != nil {
		t.Error("input slice mutated")
	}

	twice := e.ReclassifyAll(got)
	if !reflect.DeepEqual(got, twice) {
		t.Error("ReclassifyAll is not idempotent")
	}
}

func TestSyncAndReclassify(t *testing.T) {
	h := &fakeHistory{records: []domain.Classification{
		{Sender: "10690", Content: "【淘宝】限时秒杀优惠券", Signature: "淘宝", Category: domain.CategoryPromotion, Timestamp: base.Add(2 * time.Hour)},
	}}
	known := []domain.Message{{ID: "k", Sender: "95588", Content: "您的账户收入500元", Timestamp: base}}
	e := newTestEngine(h)

	got, added, err := e.SyncAndReclassify(context.Background(), known)
	if err != nil {
		t.Fatalf("SyncAndReclassify() error = %v", err)
	}
	if added != 1 || len(got) != 2 {
		t.Fatalf("added = %d, len = %d, want 1, 2", added, len(got))
	}
	if got[0].Sender != "10690" {
		t.Errorf("newest first violated: %s", got[0].Sender)
	}

	again, added, err := e.SyncAndReclassify(context.Background(), got)
	if err != nil || added != 0 || !reflect.DeepEqual(again, got) {
		t.Errorf("second pass changed state: added = %d, err = %v", added, err)
	}

	h.err = errors.New("down")
	if res, _, err := e.SyncAndReclassify(context.Background(), got); err == nil || res != nil {
		t.Errorf("SyncAndReclassify() with store down = %v, %v", res, err)
	}
}
