package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"smsfilter/adapter/out/kvstore"
	"smsfilter/adapter/out/persistence"
	"smsfilter/core/domain"
	syncer "smsfilter/core/service/sync"
	"smsfilter/pkg/apperr"

	"github.com/rs/zerolog"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc     *Service
	repo    *persistence.MessageAdapter
	history *persistence.HistoryAdapter
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	store := kvstore.NewMemoryStore()
	log := zerolog.Nop()
	history := persistence.NewHistoryAdapter(store, log)
	repo := persistence.NewMessageAdapter(store, nil, log)
	engine := syncer.NewEngine(history, nil, nil, log)
	return &testEnv{
		svc:     NewService(repo, engine, nil, log),
		repo:    repo,
		history: history,
	}
}

func sample() []domain.Message {
	return []domain.Message{
		{Sender: "95588", Content: "【工商银行】您的账户支出100元", Timestamp: t0},
		{Sender: "10690", Content: "【淘宝】限时优惠，满减活动", Timestamp: t0.Add(time.Hour)},
		{Sender: "10690", Content: "【淘宝】红包到账", Timestamp: t0.Add(2 * time.Hour)},
		{Sender: "friend", Content: "晚上一起吃饭吗", Timestamp: t0.Add(-time.Hour)},
	}
}

func TestService_ImportMergesByDedupKey(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	if added := env.svc.Import(ctx, sample()); added != 4 {
		t.Fatalf("Import() added = %d, want 4", added)
	}
	if added := env.svc.Import(ctx, sample()); added != 0 {
		t.Errorf("re-Import() added = %d, want 0", added)
	}

	msgs := env.svc.Messages()
	if len(msgs) != 4 {
		t.Fatalf("len(Messages()) = %d, want 4", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.After(msgs[i-1].Timestamp) {
			t.Errorf("messages not sorted newest first at %d", i)
		}
	}
	for _, m := range msgs {
		if m.ID == "" || m.AISuggestedCategory == nil {
			t.Errorf("imported message not processed: %+v", m)
		}
	}

	saved, err := env.repo.Load(ctx)
	if err != nil || len(saved) != 4 {
		t.Errorf("persisted = %d, %v, want 4", len(saved), err)
	}
}

func TestService_CategoryAssignment(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.svc.Import(ctx, sample())
	id := env.svc.Messages()[0].ID

	if err := env.svc.SetCategory(ctx, id, domain.CategoryWork); err != nil {
		t.Fatalf("SetCategory() error = %v", err)
	}
	m, _ := env.svc.Get(id)
	if *m.Category != domain.CategoryWork {
		t.Errorf("Category = %v, want work", *m.Category)
	}

	if err := env.svc.ApplyAICategory(ctx, id); err != nil {
		t.Fatalf("ApplyAICategory() error = %v", err)
	}
	m, _ = env.svc.Get(id)
	if *m.Category != *m.AISuggestedCategory {
		t.Errorf("Category = %v, want suggestion %v", *m.Category, *m.AISuggestedCategory)
	}

	if err := env.svc.SetCategory(ctx, "missing", domain.CategoryWork); !hasCode(err, apperr.CodeNotFound) {
		t.Errorf("SetCategory(missing) error = %v, want NOT_FOUND", err)
	}
	if err := env.svc.SetCategory(ctx, id, domain.Category("bogus")); !hasCode(err, apperr.CodeInvalidInput) {
		t.Errorf("SetCategory(bogus) error = %v, want INVALID_INPUT", err)
	}
}

func TestService_Grouping(t *testing.T) {
	env := newEnv(t)
	env.svc.Import(context.Background(), sample())

	sigs := env.svc.GroupBySignature()
	if len(sigs) != 3 {
		t.Fatalf("len(GroupBySignature()) = %d, want 3", len(sigs))
	}
	if sigs[0].Signature != "淘宝" || len(sigs[0].Messages) != 2 {
		t.Errorf("largest group = %s (%d), want 淘宝 (2)", sigs[0].Signature, len(sigs[0].Messages))
	}
	var unknown bool
	for _, g := range sigs {
		if g.Signature == domain.UnknownSignature {
			unknown = true
		}
	}
	if !unknown {
		t.Error("unsigned message not grouped under unknown signature")
	}

	cats := env.svc.GroupByCategory()
	if len(cats) != len(domain.AllCategories()) {
		t.Fatalf("len(GroupByCategory()) = %d, want %d", len(cats), len(domain.AllCategories()))
	}
	if cats[len(cats)-1].Category != domain.CategoryOther {
		t.Errorf("last group = %s, want other", cats[len(cats)-1].Category)
	}

	total := 0
	for _, st := range env.svc.Stats() {
		total += st.Count
	}
	if total != 4 {
		t.Errorf("Stats() total = %d, want 4", total)
	}
}

func TestService_Deletes(t *testing.T) {
	tests := []struct {
		name    string
		run     func(ctx context.Context, s *Service) int
		removed int
	}{
		{
			name:    "by signature",
			run:     func(ctx context.Context, s *Service) int { return s.DeleteBySignature(ctx, "淘宝") },
			removed: 2,
		},
		{
			name:    "unknown signature",
			run:     func(ctx context.Context, s *Service) int { return s.DeleteBySignature(ctx, domain.UnknownSignature) },
			removed: 1,
		},
		{
			name:    "by category",
			run:     func(ctx context.Context, s *Service) int { return s.DeleteByCategory(ctx, domain.CategoryPromotion) },
			removed: 2,
		},
		{
			name:    "all",
			run:     func(ctx context.Context, s *Service) int { return s.DeleteAll(ctx) },
			removed: 4,
		},
		{
			name: "many",
			run: func(ctx context.Context, s *Service) int {
				msgs := s.Messages()
				return s.DeleteMany(ctx, []string{msgs[0].ID, msgs[1].ID, "missing"})
			},
			removed: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			ctx := context.Background()
			env.svc.Import(ctx, sample())

			if got := tt.run(ctx, env.svc); got != tt.removed {
				t.Errorf("removed = %d, want %d", got, tt.removed)
			}
			if got := len(env.svc.Messages()); got != 4-tt.removed {
				t.Errorf("remaining = %d, want %d", got, 4-tt.removed)
			}
		})
	}
}

func TestService_DeleteMissing(t *testing.T) {
	env := newEnv(t)
	if err := env.svc.Delete(context.Background(), "nope"); !hasCode(err, apperr.CodeNotFound) {
		t.Errorf("Delete(nope) error = %v, want NOT_FOUND", err)
	}
}

func TestService_SyncAndReclassify(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rec := &domain.Classification{
		Sender:    "95588",
		Content:   "【工商银行】您的账户支出100元",
		Signature: "工商银行",
		Category:  domain.CategoryFinance,
		Timestamp: t0,
	}
	_ = env.history.Append(ctx, rec)
	_ = env.history.Append(ctx, rec)

	added, err := env.svc.SyncAndReclassify(ctx)
	if err != nil || added != 1 {
		t.Fatalf("SyncAndReclassify() = %d, %v, want 1", added, err)
	}
	added, err = env.svc.SyncAndReclassify(ctx)
	if err != nil || added != 0 {
		t.Errorf("second SyncAndReclassify() = %d, %v, want 0", added, err)
	}

	// an imported copy of the same message is not duplicated
	if n := env.svc.Import(ctx, []domain.Message{{Sender: rec.Sender, Content: rec.Content, Timestamp: t0}}); n != 0 {
		t.Errorf("Import() of synced message added %d", n)
	}
	msgs := env.svc.Messages()
	if len(msgs) != 1 || *msgs[0].Category != domain.CategoryFinance {
		t.Errorf("working set = %+v", msgs)
	}
}

func TestService_LoadRestoresPersistedSet(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.svc.Import(ctx, sample())

	fresh := NewService(env.repo, syncer.NewEngine(env.history, nil, nil, zerolog.Nop()), nil, zerolog.Nop())
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(fresh.Messages()) != 4 {
		t.Errorf("len(Messages()) after Load = %d, want 4", len(fresh.Messages()))
	}
}

func hasCode(err error, code string) bool {
	var appErr *apperr.AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
