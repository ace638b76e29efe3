package memory_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tradekit/agentmemory/memory"
	"github.com/tradekit/agentmemory/memory/embedder/hashed"
	"github.com/tradekit/agentmemory/memory/embedder/mock"
	"github.com/tradekit/agentmemory/memory/store/sqlite"
)

func newTestManager(t *testing.T, cfg *memory.Config) *memory.Manager {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if cfg == nil {
		cfg = memory.DefaultConfig()
	}
	embedder, err := hashed.New(cfg.EmbeddingDim)
	if err != nil {
		t.Fatalf("create embedder: %v", err)
	}

	mgr, err := memory.NewManager(store, embedder, cfg)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	return mgr
}

func TestManagerAddAndRetrieve(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, nil)

	id := mgr.Add(ctx, "BTC breakout", "buy", nil)
	if id == 0 {
		t.Fatal("Add returned 0, want a real id")
	}

	got := mgr.Retrieve(ctx, "BTC breakout", 1, nil)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Record.ID != id {
		t.Errorf("got id %d, want %d", got[0].Record.ID, id)
	}
	if got[0].Record.Recommendation != "buy" {
		t.Errorf("recommendation = %q, want buy", got[0].Record.Recommendation)
	}
	// Near-identical text in vector mode scores close to 1.0. The stored
	// embedding also covers the recommendation text, so it is high rather
	// than exactly 1.
	if got[0].Similarity < 0.8 {
		t.Errorf("similarity = %v, want close to 1.0", got[0].Similarity)
	}
}

func TestManagerRetrieveEmptyStore(t *testing.T) {
	mgr := newTestManager(t, nil)

	got := mgr.Retrieve(context.Background(), "anything at all", 5, nil)
	if len(got) != 0 {
		t.Errorf("retrieve on empty store returned %d results, want 0", len(got))
	}
}

func TestManagerRetrieveDefaultMatches(t *testing.T) {
	ctx := context.Background()
	cfg := memory.DefaultConfig()
	cfg.DefaultMatches = 2
	mgr := newTestManager(t, cfg)

	for i := 0; i < 5; i++ {
		mgr.Add(ctx, "ETH range-bound on low volume", "hold", nil)
	}

	// n <= 0 resolves to the configured default.
	if got := mgr.Retrieve(ctx, "ETH range-bound", 0, nil); len(got) != 2 {
		t.Errorf("n=0: got %d results, want configured default 2", len(got))
	}
	if got := mgr.Retrieve(ctx, "ETH range-bound", 4, nil); len(got) != 4 {
		t.Errorf("n=4: got %d results, want 4", len(got))
	}
}

func TestManagerTextFallbackRanking(t *testing.T) {
	ctx := context.Background()
	cfg := memory.DefaultConfig()
	cfg.EnableVector = false
	mgr := newTestManager(t, cfg)

	mgr.Add(ctx, "BTC breakout above resistance on high volume", "buy", nil)
	mgr.Add(ctx, "ETH consolidating in a tight range", "hold", nil)

	got := mgr.Retrieve(ctx, "BTC breakout above resistance", 2, nil)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if !strings.HasPrefix(got[0].Record.Situation, "BTC") {
		t.Errorf("text fallback ranked %q first, want the BTC situation", got[0].Record.Situation)
	}
	if got[0].Similarity <= got[1].Similarity {
		t.Errorf("similarity ordering violated: %v <= %v", got[0].Similarity, got[1].Similarity)
	}
	if len(got[0].Record.Embedding) != 0 {
		t.Error("vector mode off must store no embedding")
	}
}

func TestManagerTimeframePenalty(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, nil)

	for _, tf := range []string{"1h", "4h", "1d"} {
		mgr.Add(ctx, "BTC testing resistance", "wait for confirmation", &memory.AddOptions{
			Metadata: &memory.Metadata{Market: "crypto", Symbol: "BTCUSDT", Timeframe: tf},
		})
	}

	got := mgr.Retrieve(ctx, "BTC testing resistance", 3, &memory.Metadata{Timeframe: "4h"})
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if got[0].Record.Timeframe != "4h" {
		t.Errorf("same-timeframe record should rank first, got %q", got[0].Record.Timeframe)
	}
	if gap := got[0].Score - got[1].Score; gap < 0.14 {
		t.Errorf("score gap = %v, want at least the mismatch penalty", gap)
	}
}

func TestManagerRecordOutcome(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, nil)

	id := mgr.Add(ctx, "SOL oversold bounce setup", "buy the dip", nil)
	if id == 0 {
		t.Fatal("Add failed")
	}

	returns := 4.2
	mgr.RecordOutcome(ctx, id, "bounced as expected", &returns)

	got := mgr.Retrieve(ctx, "SOL oversold bounce setup", 1, nil)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	rec := got[0].Record
	if rec.Result != "bounced as expected" {
		t.Errorf("result = %q", rec.Result)
	}
	if rec.Returns == nil || *rec.Returns != 4.2 {
		t.Errorf("returns = %v, want 4.2", rec.Returns)
	}
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		t.Error("UpdatedAt should be refreshed by the outcome update")
	}
}

func TestManagerRecordOutcomeUnknownID(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, nil)

	id := mgr.Add(ctx, "BTC breakout", "buy", nil)

	// Must not panic, error, or change existing state.
	mgr.RecordOutcome(ctx, id+999, "phantom", nil)

	got := mgr.Retrieve(ctx, "BTC breakout", 1, nil)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Record.Result != "" || got[0].Record.Returns != nil {
		t.Error("outcome update for an unknown id must leave other records unchanged")
	}
	if stats := mgr.Statistics(ctx); stats.Count != 1 {
		t.Errorf("stats count = %d, want 1", stats.Count)
	}
}

func TestManagerStatistics(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, nil)

	win, loss := 5.0, -2.0
	mgr.Add(ctx, "a", "buy", &memory.AddOptions{Result: "won", Returns: &win})
	mgr.Add(ctx, "b", "sell", &memory.AddOptions{Result: "lost", Returns: &loss})
	mgr.Add(ctx, "c", "hold", nil)

	stats := mgr.Statistics(ctx)
	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.AverageReturns != 1.5 {
		t.Errorf("AverageReturns = %v, want 1.5", stats.AverageReturns)
	}
	if stats.PositiveCount != 1 {
		t.Errorf("PositiveCount = %d, want 1", stats.PositiveCount)
	}
	if stats.SuccessRate != 33.33 {
		t.Errorf("SuccessRate = %v, want 33.33", stats.SuccessRate)
	}
}

func TestManagerStatisticsEmptyStore(t *testing.T) {
	mgr := newTestManager(t, nil)

	stats := mgr.Statistics(context.Background())
	if stats.Count != 0 || stats.SuccessRate != 0 || stats.AverageReturns != 0 {
		t.Errorf("empty store stats = %+v, want all zero", stats)
	}
}

func TestManagerWithMockEmbedder(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	mgr, err := memory.NewManager(store, mock.New(64), &memory.Config{
		EnableVector: true,
		EmbeddingDim: 64,
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}

	id := mgr.Add(ctx, "BTC breakout", "buy", nil)
	if id == 0 {
		t.Fatal("Add failed")
	}
	// Mock embeddings are deterministic per text, so the stored record is
	// retrievable; similarity values carry no semantic meaning.
	if got := mgr.Retrieve(ctx, "BTC breakout", 1, nil); len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	cfg := memory.DefaultConfig()
	cfg.WeightSim = cfg.WeightSim / 0 // +Inf
	embedder, _ := hashed.New(cfg.EmbeddingDim)
	if _, err := memory.NewManager(store, embedder, cfg); err == nil {
		t.Error("NewManager accepted a non-finite weight")
	}
}

func TestFormatForPrompt(t *testing.T) {
	mgr := newTestManager(t, nil)

	if got := mgr.FormatForPrompt(nil); got != "No prior experience available." {
		t.Errorf("empty sentinel = %q", got)
	}

	returns := 3.5
	created := time.Date(2026, 7, 15, 9, 30, 0, 0, time.UTC)
	records := []memory.ScoredRecord{
		{Record: &memory.Record{
			Recommendation: "buy with tight stop",
			Result:         "stopped out",
			Returns:        &returns,
			CreatedAt:      created,
		}},
		{Record: &memory.Record{Recommendation: "hold"}},
	}

	got := mgr.FormatForPrompt(records)
	if !strings.HasPrefix(got, "Prior experience (most relevant first):") {
		t.Errorf("missing header: %q", got)
	}
	if !strings.Contains(got, "1. buy with tight stop (at 2026-07-15T09:30:00Z, returns=3.5%)") {
		t.Errorf("first entry malformed:\n%s", got)
	}
	if !strings.Contains(got, "   outcome: stopped out") {
		t.Errorf("missing outcome line:\n%s", got)
	}
	if !strings.Contains(got, "2. hold") {
		t.Errorf("second entry malformed:\n%s", got)
	}
}
