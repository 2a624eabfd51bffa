package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"smsfilter/adapter/out/kvstore"
	"smsfilter/core/domain"
	"smsfilter/core/port/out"

	"github.com/rs/zerolog"
)

// downStore fails every call as an unreachable backend would.
type downStore struct{}

func (downStore) err() error { return fmt.Errorf("%w: connection refused", out.ErrStoreUnavailable) }

func (d downStore) Get(context.Context, string) ([]byte, error)          { return nil, d.err() }
func (d downStore) Set(context.Context, string, []byte) error            { return d.err() }
func (d downStore) Delete(context.Context, string) error                 { return d.err() }
func (d downStore) Update(context.Context, string, out.UpdateFunc) error { return d.err() }
func (d downStore) Ping(context.Context) error                           { return d.err() }
func (downStore) Close() error                                           { return nil }

func record(i int) *domain.Classification {
	return &domain.Classification{
		Sender:    "10086",
		Content:   fmt.Sprintf("message %d", i),
		Category:  domain.CategoryNotification,
		Timestamp: time.Unix(1700000000+int64(i), 0).UTC(),
	}
}

func TestHistoryAdapter_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	a := NewHistoryAdapter(kvstore.NewMemoryStore(), zerolog.Nop())

	latest, err := a.LoadLatest(ctx)
	if err != nil || latest != nil {
		t.Fatalf("LoadLatest() on empty = %v, %v, want nil, nil", latest, err)
	}

	for i := 0; i < 3; i++ {
		if err := a.Append(ctx, record(i)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	all, err := a.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(LoadAll()) = %d, want 3", len(all))
	}
	for i, c := range all {
		if c.Content != record(i).Content {
			t.Errorf("LoadAll()[%d].Content = %q, want %q", i, c.Content, record(i).Content)
		}
	}

	latest, err = a.LoadLatest(ctx)
	if err != nil || latest == nil || latest.Content != "message 2" {
		t.Errorf("LoadLatest() = %+v, %v, want message 2", latest, err)
	}
}

func TestHistoryAdapter_CapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	a := NewHistoryAdapter(kvstore.NewMemoryStore(), zerolog.Nop())

	for i := 0; i <= domain.HistoryCapacity; i++ {
		if err := a.Append(ctx, record(i)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	all, _ := a.LoadAll(ctx)
	if len(all) != domain.HistoryCapacity {
		t.Fatalf("len(history) = %d, want %d", len(all), domain.HistoryCapacity)
	}
	if all[0].Content != "message 1" {
		t.Errorf("oldest = %q, want message 1", all[0].Content)
	}
	want := fmt.Sprintf("message %d", domain.HistoryCapacity)
	if all[len(all)-1].Content != want {
		t.Errorf("newest = %q, want %q", all[len(all)-1].Content, want)
	}
}

func TestHistoryAdapter_CorruptValues(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	_ = store.Set(ctx, out.KeyClassificationHistory, []byte("{not json"))
	_ = store.Set(ctx, out.KeyLastClassification, []byte("garbage"))
	a := NewHistoryAdapter(store, zerolog.Nop())

	all, err := a.LoadAll(ctx)
	if err != nil || len(all) != 0 {
		t.Errorf("LoadAll() on corrupt = %v, %v, want empty, nil", all, err)
	}
	latest, err := a.LoadLatest(ctx)
	if err != nil || latest != nil {
		t.Errorf("LoadLatest() on corrupt = %v, %v, want nil, nil", latest, err)
	}

	if err := a.Append(ctx, record(7)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	all, _ = a.LoadAll(ctx)
	if len(all) != 1 || all[0].Content != "message 7" {
		t.Errorf("history after append on corrupt = %+v", all)
	}
}

func TestHistoryAdapter_LatestFallsBackToHistory(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	a := NewHistoryAdapter(store, zerolog.Nop())
	_ = a.Append(ctx, record(1))
	_ = a.Append(ctx, record(2))
	_ = store.Delete(ctx, out.KeyLastClassification)

	latest, err := a.LoadLatest(ctx)
	if err != nil || latest == nil || latest.Content != "message 2" {
		t.Errorf("LoadLatest() = %+v, %v, want message 2", latest, err)
	}
}

func TestHistoryAdapter_StoreDown(t *testing.T) {
	a := NewHistoryAdapter(downStore{}, zerolog.Nop())
	if err := a.Append(context.Background(), record(1)); err == nil {
		t.Error("Append() error = nil, want store error")
	}
	if _, err := a.LoadAll(context.Background()); err == nil {
		t.Error("LoadAll() error = nil, want store error")
	}
}

func TestRulesAdapter_Load(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		wantNil  bool
		wantSig  domain.FilterAction
		checkSig bool
	}{
		{name: "missing", wantNil: true},
		{name: "corrupt", stored: "[1,2", wantNil: true},
		{name: "unknown action", stored: `{"signatureRules":{"x":{"action":"maybe","enabled":true}}}`, wantNil: true},
		{
			name:     "legacy filter action",
			stored:   `{"signatureRules":{"京东":{"action":"filter","enabled":true}},"categoryRules":{}}`,
			wantSig:  domain.FilterActionSuppress,
			checkSig: true,
		},
		{
			name:     "allow",
			stored:   `{"signatureRules":{"京东":{"action":"allow","enabled":false}},"categoryRules":{}}`,
			wantSig:  domain.FilterActionAllow,
			checkSig: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := kvstore.NewMemoryStore()
			if tt.stored != "" {
				_ = store.Set(ctx, out.KeyFilterRules, []byte(tt.stored))
			}
			rules, err := NewRulesAdapter(store, zerolog.Nop()).Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if (rules == nil) != tt.wantNil {
				t.Fatalf("Load() = %+v, wantNil %v", rules, tt.wantNil)
			}
			if tt.checkSig && rules.SignatureRules["京东"].Action != tt.wantSig {
				t.Errorf("signature action = %q, want %q", rules.SignatureRules["京东"].Action, tt.wantSig)
			}
		})
	}
}

func TestRulesAdapter_SaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewRulesAdapter(kvstore.NewMemoryStore(), zerolog.Nop())

	rules := domain.DefaultFilterRules()
	rules.SignatureRules["招商银行"] = domain.FilterRule{Action: domain.FilterActionAllow, Enabled: true}
	if err := a.Save(ctx, rules); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := a.Load(ctx)
	if err != nil || got == nil {
		t.Fatalf("Load() = %v, %v", got, err)
	}
	if got.CategoryRules[domain.CategoryPromotion].Action != domain.FilterActionSuppress {
		t.Errorf("promotion rule = %+v, want suppress", got.CategoryRules[domain.CategoryPromotion])
	}
	if !got.SignatureRules["招商银行"].Enabled {
		t.Errorf("signature rule lost: %+v", got.SignatureRules)
	}
}

func TestRulesAdapter_StoreDown(t *testing.T) {
	if _, err := NewRulesAdapter(downStore{}, zerolog.Nop()).Load(context.Background()); err == nil {
		t.Error("Load() error = nil, want store error")
	}
}

func TestMessageAdapter_MirrorsAndFallsBack(t *testing.T) {
	ctx := context.Background()
	shared := kvstore.NewMemoryStore()
	local := kvstore.NewMemoryStore()
	a := NewMessageAdapter(shared, local, zerolog.Nop())

	msgs := []domain.Message{{
		ID:        "1",
		Sender:    "95588",
		Content:   "【工商银行】您的账户支出100元",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Signature: "工商银行",
	}}
	if err := a.Save(ctx, msgs); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := local.Get(ctx, out.KeySavedMessages); err != nil {
		t.Errorf("local mirror missing: %v", err)
	}

	// shared unreachable: local copy is served
	down := NewMessageAdapter(downStore{}, local, zerolog.Nop())
	got, err := down.Load(ctx)
	if err != nil || len(got) != 1 || got[0].Signature != "工商银行" {
		t.Errorf("Load() with shared down = %+v, %v", got, err)
	}
	if err := down.Save(ctx, msgs); err != nil {
		t.Errorf("Save() with shared down error = %v, want nil", err)
	}

	both := NewMessageAdapter(downStore{}, downStore{}, zerolog.Nop())
	if err := both.Save(ctx, msgs); err == nil {
		t.Error("Save() with both stores down error = nil")
	}
	if _, err := both.Load(ctx); err == nil {
		t.Error("Load() with both stores down error = nil")
	}
}

func TestMessageAdapter_EmptyStore(t *testing.T) {
	a := NewMessageAdapter(kvstore.NewMemoryStore(), nil, zerolog.Nop())
	got, err := a.Load(context.Background())
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("Load() = %v, %v, want empty slice", got, err)
	}
}
