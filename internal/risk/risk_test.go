package risk

import (
	"context"
	"testing"
	"time"

	"tokokasbon/backend/internal/cache"
	"tokokasbon/backend/internal/domain"
)

func history(onTime int, late int) []domain.PaymentHistoryEntry {
	entries := make([]domain.PaymentHistoryEntry, 0, onTime+late)
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < onTime; i++ {
		entries = append(entries, domain.PaymentHistoryEntry{Date: date.AddDate(0, 0, i), OnTime: true})
	}
	for i := 0; i < late; i++ {
		entries = append(entries, domain.PaymentHistoryEntry{Date: date.AddDate(0, 1, i), OnTime: false})
	}
	return entries
}

func TestClassifyTiers(t *testing.T) {
	cases := []struct {
		name   string
		onTime int
		late   int
		want   string
	}{
		{"no history defaults low", 0, 0, domain.RiskLow},
		{"nine of ten on time", 9, 1, domain.RiskLow},
		{"exactly 0.85 is low", 17, 3, domain.RiskLow},
		{"just under 0.85 is medium", 84, 16, domain.RiskMedium},
		{"exactly 0.60 is medium", 3, 2, domain.RiskMedium},
		{"just under 0.60 is high", 59, 41, domain.RiskHigh},
		{"mostly late", 1, 9, domain.RiskHigh},
	}
	for _, tc := range cases {
		if got := Classify(history(tc.onTime, tc.late)); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestEscalate(t *testing.T) {
	if got := Escalate(domain.RiskLow); got != domain.RiskMedium {
		t.Fatalf("expected low to escalate to medium, got %s", got)
	}
	if got := Escalate(domain.RiskMedium); got != domain.RiskHigh {
		t.Fatalf("expected medium to escalate to high, got %s", got)
	}
	if got := Escalate(domain.RiskHigh); got != domain.RiskHigh {
		t.Fatalf("expected high to stay high, got %s", got)
	}
}

func TestEvaluateEscalatesOnHighOutstanding(t *testing.T) {
	engine := NewEngine(cache.NoopRiskCache{}, time.Minute, 2.0)
	ctx := context.Background()

	// 9/10 on time is low, but outstanding is 3x the average loan size.
	level := engine.Evaluate(ctx, "cust-1", history(9, 1), 300000, 100000)
	if level != domain.RiskMedium {
		t.Fatalf("expected escalation to medium, got %s", level)
	}

	// Outstanding exactly at the multiple does not escalate.
	level = engine.Evaluate(ctx, "cust-1", history(9, 1), 200000, 100000)
	if level != domain.RiskLow {
		t.Fatalf("expected low without escalation, got %s", level)
	}

	// No loans on record: no escalation basis.
	level = engine.Evaluate(ctx, "cust-2", nil, 500000, 0)
	if level != domain.RiskLow {
		t.Fatalf("expected low for empty history, got %s", level)
	}
}
