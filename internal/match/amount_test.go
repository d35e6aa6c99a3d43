package match

import (
	"strings"
	"testing"
)

func TestPercentDiff(t *testing.T) {
	cases := []struct {
		a, b, want float64
	}{
		{100, 100, 0},
		{100, 102, 2},
		{100, 90, 10},
		{0, 0, 0},
		{50, 100, 100},
	}
	for _, tc := range cases {
		got := PercentDiff(tc.a, tc.b)
		if roundTo(got, 6) != tc.want {
			t.Errorf("PercentDiff(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPercentDiffZeroSource(t *testing.T) {
	// Zero source with a non-zero target is a huge relative difference,
	// never a division failure.
	got := PercentDiff(0, 10)
	if got <= 100 {
		t.Errorf("expected very large diff, got %v", got)
	}
}

func TestCompareAmountsTiers(t *testing.T) {
	cases := []struct {
		source, target float64
		wantScore      float64
		wantMatch      bool
	}{
		{100, 100, 40, true},   // exact
		{100, 101.5, 35, true}, // within 2%
		{100, 104, 25, true},   // within 5%
		{100, 109, 15, true},   // within 10%
		{100, 150, 0, false},   // beyond 10%
	}
	for _, tc := range cases {
		d := CompareAmounts(tc.source, tc.target, AmountOptions{})
		if d.Score != tc.wantScore {
			t.Errorf("%v vs %v: expected score %v, got %v", tc.source, tc.target, tc.wantScore, d.Score)
		}
		if d.IsMatch != tc.wantMatch {
			t.Errorf("%v vs %v: expected match %v, got %v", tc.source, tc.target, tc.wantMatch, d.IsMatch)
		}
	}
}

func TestCompareAmountsLargeDiffCap(t *testing.T) {
	d := CompareAmounts(100, 150, AmountOptions{})
	if d.ConfidenceCap != 60 {
		t.Errorf("expected confidence cap 60, got %v", d.ConfidenceCap)
	}
	if !strings.Contains(d.Reason, "exceeds 10%") {
		t.Errorf("expected threshold reason, got %q", d.Reason)
	}
}

func TestCompareAmountsExactTolerance(t *testing.T) {
	d := CompareAmounts(100, 101, AmountOptions{ExactTolerance: 2})
	if d.Score != 40 {
		t.Errorf("expected full score inside tolerance, got %v", d.Score)
	}
	if !d.IsMatch {
		t.Error("expected match inside tolerance")
	}
}

func TestCompareAmountsScaledWeight(t *testing.T) {
	d := CompareAmounts(100, 104, AmountOptions{Weight: 80})
	// Tier 25/40 scaled onto an 80-point weight.
	if d.Score != 50 {
		t.Errorf("expected score 50 on 80-point weight, got %v", d.Score)
	}
	if d.Weight != 80 {
		t.Errorf("expected weight 80, got %v", d.Weight)
	}
}
