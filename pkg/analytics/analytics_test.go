package analytics

import "testing"

func TestRatioZeroTotal(t *testing.T) {
	if r := ratio(0, 0); r != 0.0 {
		t.Fatalf("expected 0.0 for zero total, got %v", r)
	}
}

func TestRatioRoundsToThreeDecimals(t *testing.T) {
	r := ratio(1, 3)
	if r != 0.333 {
		t.Fatalf("expected 0.333, got %v", r)
	}
}

func TestBuildStatsEmptyTenant(t *testing.T) {
	stats := buildStats(rawStats{})

	if stats.TotalTickets != 0 {
		t.Fatalf("expected 0 total tickets, got %d", stats.TotalTickets)
	}
	if len(stats.ByStatus) != 0 {
		t.Fatalf("expected empty by_status map, got %v", stats.ByStatus)
	}
	if stats.UrgencyHighRatio != 0.0 || stats.NegativeSentimentRatio != 0.0 {
		t.Fatalf("expected zero ratios for empty tenant, got %+v", stats)
	}
	if stats.HourlyTrend == nil || stats.TopKeywords == nil || stats.AtRiskCustomers == nil {
		t.Fatal("expected empty slices, not nil, for JSON encoding stability")
	}
}

func TestBuildStatsComputesRatios(t *testing.T) {
	rs := rawStats{
		Total:           10,
		UrgencyCounts:   map[string]int{"high": 3, "low": 7},
		SentimentCounts: map[string]int{"negative": 2, "neutral": 8},
	}

	stats := buildStats(rs)
	if stats.UrgencyHighRatio != 0.3 {
		t.Fatalf("expected urgency_high_ratio 0.3, got %v", stats.UrgencyHighRatio)
	}
	if stats.NegativeSentimentRatio != 0.2 {
		t.Fatalf("expected negative_sentiment_ratio 0.2, got %v", stats.NegativeSentimentRatio)
	}
}
