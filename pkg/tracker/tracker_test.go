package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/tokenledger/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func event(provider, model, session string, ts time.Time, in, out uint64) models.UsageEvent {
	return models.UsageEvent{
		Provider:  provider,
		Model:     model,
		SessionID: session,
		Timestamp: ts,
		Usage:     models.TokenUsage{InputTokens: in, OutputTokens: out},
	}
}

func TestRecordAndQuery(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	ev := event("anthropic", "claude-sonnet-4", "s1", ts, 100, 50)
	ev.Usage.CacheReadTokens = 7
	if err := tr.Record(ctx, ev); err != nil {
		t.Fatal(err)
	}

	evs, err := tr.Query(ctx, QueryOpts{Month: "2026-03"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if !evs[0].Timestamp.Equal(ts) {
		t.Errorf("expected %v, got %v", ts, evs[0].Timestamp)
	}
	if evs[0].Usage != ev.Usage {
		t.Errorf("expected %+v, got %+v", ev.Usage, evs[0].Usage)
	}
}

func TestRecordBatchDeduplicates(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	batch := []models.UsageEvent{
		event("anthropic", "claude-sonnet-4", "s1", ts, 100, 50),
		event("anthropic", "claude-sonnet-4", "s1", ts.Add(time.Minute), 10, 5),
	}
	n, err := tr.RecordBatch(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 new events, got %d", n)
	}

	n, err = tr.RecordBatch(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected re-import to add 0, got %d", n)
	}
}

func TestQueryFilters(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	march := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)

	_, err := tr.RecordBatch(ctx, []models.UsageEvent{
		event("anthropic", "claude-sonnet-4", "s1", march, 1, 1),
		event("openai", "gpt-4o", "s2", march, 1, 1),
		event("openai", "gpt-4o", "s3", april, 1, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	evs, err := tr.Query(ctx, QueryOpts{Month: "2026-03", Provider: "openai"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].SessionID != "s2" {
		t.Errorf("expected only s2, got %+v", evs)
	}

	evs, err = tr.Query(ctx, QueryOpts{Since: april})
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].SessionID != "s3" {
		t.Errorf("expected only s3, got %+v", evs)
	}
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := tr.RecordBatch(ctx, []models.UsageEvent{
		event("anthropic", "claude-sonnet-4", "s1", ts, 100, 50),
		event("anthropic", "claude-sonnet-4", "s1", ts.Add(time.Second), 100, 50),
		event("anthropic", "claude-sonnet-4", "s2", ts.Add(2*time.Second), 100, 50),
		event("openai", "gpt-4o", "s3", ts, 10, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	summaries, err := tr.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	s := summaries[0]
	if s.Provider != "anthropic" || s.EventCount != 3 || s.SessionCount != 2 || s.TotalTokens != 450 {
		t.Errorf("unexpected summary %+v", s)
	}

	months, err := tr.Months(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 1 || months[0] != "2026-03" {
		t.Errorf("expected [2026-03], got %v", months)
	}
}
