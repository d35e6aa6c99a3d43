package match

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func source(amount float64, currency, date, vendor string, t *testing.T) *domain.SourceTransaction {
	return &domain.SourceTransaction{
		Amount:   amount,
		Currency: currency,
		Date:     day(t, date),
		Vendor:   vendor,
	}
}

func target(id string, amount float64, currency, date, vendor string, t *testing.T) *domain.TargetTransaction {
	return &domain.TargetTransaction{
		ID:       id,
		Amount:   amount,
		Currency: currency,
		Date:     day(t, date),
		Vendor:   vendor,
	}
}

func newTestEngine() *Engine {
	return NewEngine(domain.MatchingConfig{}, nil, nil)
}

func TestExactMatchScoresFull(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	src := source(42.50, "USD", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 42.50, "USD", "2024-03-15", "Starbucks", t)

	r, err := engine.CalculateMatchScore(ctx, src, tgt, nil)
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	if r.Score != 100 {
		t.Errorf("expected score 100, got %v", r.Score)
	}
	if r.Confidence != domain.ConfidenceHigh {
		t.Errorf("expected HIGH confidence, got %s", r.Confidence)
	}
	if !r.IsMatch {
		t.Error("expected IsMatch true")
	}
	if r.TargetID != "tx-1" {
		t.Errorf("expected target id tx-1, got %s", r.TargetID)
	}
	if len(r.AppliedCaps) != 0 {
		t.Errorf("expected no caps, got %v", r.AppliedCaps)
	}
}

func TestLargeAmountDiffCapsConfidence(t *testing.T) {
	engine := newTestEngine()

	src := source(100, "USD", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 200, "USD", "2024-03-15", "Starbucks", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, nil)
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	// Date and vendor agree perfectly, but amounts are off by 100%.
	if r.Details.Amount.Score != 0 {
		t.Errorf("expected amount score 0, got %v", r.Details.Amount.Score)
	}
	if r.Score != 60 {
		t.Errorf("expected capped score 60, got %v", r.Score)
	}
	found := false
	for _, c := range r.AppliedCaps {
		if c == 60 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected cap 60 in appliedCaps, got %v", r.AppliedCaps)
	}
}

func TestDateBeyondToleranceScoresZero(t *testing.T) {
	engine := newTestEngine()

	src := source(42.50, "USD", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 42.50, "USD", "2024-03-25", "Starbucks", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, nil)
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	if r.Details.Date.Score != 0 {
		t.Errorf("expected date score 0, got %v", r.Details.Date.Score)
	}
	if r.Details.Date.IsMatch {
		t.Error("expected date non-match beyond tolerance")
	}
	if r.Details.Date.DaysDiff != 10 {
		t.Errorf("expected 10 days diff, got %d", r.Details.Date.DaysDiff)
	}
}

func TestDateDecayLadder(t *testing.T) {
	engine := newTestEngine()

	cases := []struct {
		date string
		want float64
	}{
		{"2024-03-15", 30},
		{"2024-03-16", 25},
		{"2024-03-17", 20},
		{"2024-03-18", 15},
	}
	for _, tc := range cases {
		src := source(10, "USD", "2024-03-15", "Acme", t)
		tgt := target("tx-1", 10, "USD", tc.date, "Acme", t)
		r, err := engine.CalculateMatchScore(context.Background(), src, tgt, nil)
		if err != nil {
			t.Fatalf("scoring failed: %v", err)
		}
		if r.Details.Date.Score != tc.want {
			t.Errorf("date %s: expected date score %v, got %v", tc.date, tc.want, r.Details.Date.Score)
		}
	}
}

func TestGetConfidenceLevel(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.Confidence
	}{
		{100, domain.ConfidenceHigh},
		{90, domain.ConfidenceHigh},
		{89, domain.ConfidenceMedium},
		{55, domain.ConfidenceMedium},
		{54, domain.ConfidenceLow},
		{0, domain.ConfidenceLow},
	}
	for _, tc := range cases {
		if got := GetConfidenceLevel(tc.score); got != tc.want {
			t.Errorf("score %v: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestCrossCurrencyWithoutRatesIsCapped(t *testing.T) {
	engine := newTestEngine()

	src := source(100, "EUR", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 110, "USD", "2024-03-15", "Starbucks", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, nil)
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	if !r.IsCrossCurrency {
		t.Error("expected cross-currency pair")
	}
	if r.Details.Amount.Score != 0 {
		t.Errorf("expected amount score 0, got %v", r.Details.Amount.Score)
	}
	if r.Score != 50 {
		t.Errorf("expected capped score 50, got %v", r.Score)
	}
	if r.IsMatch {
		t.Error("expected no match at score 50")
	}
	if !strings.Contains(r.Details.Amount.Reason, "no exchange rate") {
		t.Errorf("expected reason to mention missing rate, got %q", r.Details.Amount.Reason)
	}
}

func TestCrossCurrencyWithExactRate(t *testing.T) {
	rates := domain.RateLookupFunc(func(ctx context.Context, asOf time.Time, from, to string) (*domain.RateQuote, error) {
		return &domain.RateQuote{
			Rate:         1.10,
			Date:         asOf,
			FromCurrency: from,
			ToCurrency:   to,
			IsExact:      true,
		}, nil
	})
	engine := NewEngine(domain.MatchingConfig{}, rates, nil)

	src := source(100, "EUR", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 110, "USD", "2024-03-15", "Starbucks", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, nil)
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	if r.Score != 100 {
		t.Errorf("expected score 100, got %v", r.Score)
	}
	c := r.Details.Conversion
	if c == nil {
		t.Fatal("expected conversion detail")
	}
	if c.ConvertedAmount != 110.00 {
		t.Errorf("expected converted amount 110.00, got %v", c.ConvertedAmount)
	}
	if !c.IsExactRate {
		t.Error("expected exact rate")
	}
}

func TestCrossCurrencyStaleRateDiscountsScore(t *testing.T) {
	rates := domain.RateLookupFunc(func(ctx context.Context, asOf time.Time, from, to string) (*domain.RateQuote, error) {
		return &domain.RateQuote{
			Rate:         1.10,
			Date:         asOf.AddDate(0, 0, -5),
			FromCurrency: from,
			ToCurrency:   to,
			IsExact:      false,
		}, nil
	})
	engine := NewEngine(domain.MatchingConfig{}, rates, nil)

	src := source(100, "EUR", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 110, "USD", "2024-03-15", "Starbucks", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, nil)
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	// 5-day-old rate is quality 70: amount 40 * 0.70 = 28, plus 30 + 30.
	if r.Details.Amount.Score != 28 {
		t.Errorf("expected discounted amount score 28, got %v", r.Details.Amount.Score)
	}
	if r.Score != 88 {
		t.Errorf("expected score 88, got %v", r.Score)
	}
	if r.Details.Conversion == nil || r.Details.Conversion.RateDaysDiff != 5 {
		t.Errorf("expected rate days diff 5, got %+v", r.Details.Conversion)
	}
}

func TestPerCallRateLookupOverride(t *testing.T) {
	engine := newTestEngine()
	rates := domain.RateLookupFunc(func(ctx context.Context, asOf time.Time, from, to string) (*domain.RateQuote, error) {
		return &domain.RateQuote{Rate: 1.10, Date: asOf, IsExact: true, FromCurrency: from, ToCurrency: to}, nil
	})

	src := source(100, "EUR", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 110, "USD", "2024-03-15", "Starbucks", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, &domain.MatchOptions{Rates: rates})
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}
	if r.Score != 100 {
		t.Errorf("expected score 100 with per-call rates, got %v", r.Score)
	}
}

func TestRequireVendorMatch(t *testing.T) {
	engine := newTestEngine()

	src := source(42.50, "USD", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 42.50, "USD", "2024-03-15", "Netflix", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, &domain.MatchOptions{RequireVendorMatch: true})
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	if r.IsMatch {
		t.Error("expected IsMatch false when required vendor match is missing")
	}
	found := false
	for _, reason := range r.Reasons {
		if reason == "Vendor match required but not found" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected required-vendor failure reason, got %v", r.Reasons)
	}
}

func TestRequireDateMatch(t *testing.T) {
	engine := newTestEngine()

	src := source(42.50, "USD", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 42.50, "USD", "2024-03-25", "Starbucks", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, &domain.MatchOptions{RequireDateMatch: true})
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	if r.IsMatch {
		t.Error("expected IsMatch false when required date match is missing")
	}
	found := false
	for _, reason := range r.Reasons {
		if reason == "Date match required but not found" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected required-date failure reason, got %v", r.Reasons)
	}
}

func TestInvalidWeights(t *testing.T) {
	engine := newTestEngine()
	src := source(10, "USD", "2024-03-15", "Acme", t)
	tgt := target("tx-1", 10, "USD", "2024-03-15", "Acme", t)

	cases := []domain.ScoreWeights{
		{Amount: -10, Date: 30, Vendor: 30},
		{Amount: 0, Date: 0, Vendor: 0},
	}
	for _, w := range cases {
		weights := w
		_, err := engine.CalculateMatchScore(context.Background(), src, tgt, &domain.MatchOptions{Weights: &weights})
		if err == nil {
			t.Errorf("expected error for weights %+v", w)
		}
	}
}

func TestWeightsRescaledToHundred(t *testing.T) {
	engine := newTestEngine()
	src := source(10, "USD", "2024-03-15", "Acme", t)
	tgt := target("tx-1", 10, "USD", "2024-03-15", "Acme", t)

	weights := domain.ScoreWeights{Amount: 80, Date: 60, Vendor: 60}
	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, &domain.MatchOptions{Weights: &weights})
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}
	if r.Score != 100 {
		t.Errorf("expected rescaled perfect score 100, got %v", r.Score)
	}
	if r.Details.Amount.Weight != 40 {
		t.Errorf("expected effective amount weight 40, got %v", r.Details.Amount.Weight)
	}
}

func TestBatchScoresSortedDescending(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	src := source(42.50, "USD", "2024-03-15", "Starbucks", t)
	targets := []*domain.TargetTransaction{
		target("far", 42.50, "USD", "2024-03-25", "Netflix", t),
		target("exact", 42.50, "USD", "2024-03-15", "Starbucks", t),
		target("close", 43.00, "USD", "2024-03-16", "Starbucks", t),
	}

	results, err := engine.CalculateMatchScores(ctx, src, targets, nil)
	if err != nil {
		t.Fatalf("batch scoring failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].TargetID != "exact" {
		t.Errorf("expected exact target first, got %s", results[0].TargetID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at index %d: %v > %v", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestBatchEmptyTargets(t *testing.T) {
	engine := newTestEngine()
	src := source(10, "USD", "2024-03-15", "Acme", t)

	results, err := engine.CalculateMatchScores(context.Background(), src, nil, nil)
	if err != nil {
		t.Fatalf("batch scoring failed: %v", err)
	}
	if results == nil {
		t.Fatal("expected non-nil empty result slice")
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestFindBestMatch(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()
	src := source(42.50, "USD", "2024-03-15", "Starbucks", t)

	best, err := engine.FindBestMatch(ctx, src, []*domain.TargetTransaction{
		target("miss", 500, "USD", "2024-01-01", "Netflix", t),
		target("hit", 42.50, "USD", "2024-03-16", "Starbucks", t),
	}, nil)
	if err != nil {
		t.Fatalf("find best failed: %v", err)
	}
	if best == nil || best.TargetID != "hit" {
		t.Fatalf("expected best match hit, got %+v", best)
	}

	best, err = engine.FindBestMatch(ctx, src, nil, nil)
	if err != nil {
		t.Fatalf("find best on empty failed: %v", err)
	}
	if best != nil {
		t.Errorf("expected nil best match for empty targets, got %+v", best)
	}
}

func TestCustomMinMatchScore(t *testing.T) {
	engine := newTestEngine()
	src := source(100, "USD", "2024-03-15", "Starbucks", t)
	tgt := target("tx-1", 104, "USD", "2024-03-16", "Starbucks", t)

	r, err := engine.CalculateMatchScore(context.Background(), src, tgt, nil)
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}
	// 25 (within 5%) + 25 (1 day) + 30 (vendor) = 80
	if r.Score != 80 {
		t.Fatalf("expected score 80, got %v", r.Score)
	}
	if !r.IsMatch {
		t.Error("expected match at default threshold")
	}

	r, err = engine.CalculateMatchScore(context.Background(), src, tgt, &domain.MatchOptions{MinMatchScore: 85})
	if err != nil {
		t.Fatalf("scoring failed: %v", err)
	}
	if r.IsMatch {
		t.Error("expected no match with raised threshold")
	}
}
