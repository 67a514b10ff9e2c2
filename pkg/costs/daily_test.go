package costs

import (
	"math"
	"testing"
	"time"

	"github.com/pario-ai/tokenledger/pkg/models"
)

func TestBuildDailyReport(t *testing.T) {
	day1 := event("anthropic", "sonnet", "a", models.TokenUsage{InputTokens: 500_000})
	day2 := event("anthropic", "sonnet", "b", models.TokenUsage{InputTokens: 500_000})
	day2.Timestamp = day2.Timestamp.Add(24 * time.Hour)

	report, err := BuildDailyReport([]models.UsageEvent{day2, day1}, testBook(), OnUnpricedError)
	if err != nil {
		t.Fatal(err)
	}
	if report.Month != "2026-02" {
		t.Errorf("expected 2026-02, got %s", report.Month)
	}
	if len(report.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(report.Days))
	}
	if report.Days[0].Day != "2026-02-03" || report.Days[1].Day != "2026-02-04" {
		t.Errorf("expected ascending days, got %s, %s", report.Days[0].Day, report.Days[1].Day)
	}
	if math.Abs(report.Totals.SubscriptionAllocatedUSD-100) > 0.01 {
		t.Errorf("expected month allocation 100, got %v", report.Totals.SubscriptionAllocatedUSD)
	}
}

func TestBuildDailyReportEmpty(t *testing.T) {
	if _, err := BuildDailyReport(nil, testBook(), OnUnpricedSkip); err != ErrNoEvents {
		t.Errorf("expected ErrNoEvents, got %v", err)
	}
}

func TestTopRows(t *testing.T) {
	rows := []models.NamedMetric{
		{Name: "b", Tokens: 10},
		{Name: "a", Tokens: 10},
		{Name: "c", Tokens: 99},
	}
	got := TopRows(rows, 2)
	if len(got) != 2 || got[0].Name != "c" || got[1].Name != "a" {
		t.Errorf("unexpected order: %+v", got)
	}
	if rows[0].Name != "b" {
		t.Error("TopRows must not reorder its input")
	}
	if len(TopRows(rows, 0)) != 3 {
		t.Error("expected n=0 to keep all rows")
	}
}
