package match

import (
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2024-03-15", "2024-03-15", 0},
		{"2024-03-15", "2024-03-16", 1},
		{"2024-03-16", "2024-03-15", 1},
		{"2024-02-28", "2024-03-01", 2}, // leap year
		{"2024-12-31", "2025-01-01", 1},
	}
	for _, tc := range cases {
		got := DaysBetween(day(t, tc.a), day(t, tc.b))
		if got != tc.want {
			t.Errorf("DaysBetween(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 3, 16, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 1 {
		t.Errorf("expected 1 day across midnight, got %d", got)
	}
}

func TestCompareDatesLadder(t *testing.T) {
	base := day(t, "2024-03-15")
	cases := []struct {
		other     string
		wantScore float64
		wantMatch bool
	}{
		{"2024-03-15", 30, true},
		{"2024-03-16", 25, true},
		{"2024-03-13", 20, true},
		{"2024-03-18", 15, true},
		{"2024-03-19", 0, false},
	}
	for _, tc := range cases {
		d := CompareDates(base, day(t, tc.other), DateOptions{})
		if d.Score != tc.wantScore {
			t.Errorf("%s: expected score %v, got %v", tc.other, tc.wantScore, d.Score)
		}
		if d.IsMatch != tc.wantMatch {
			t.Errorf("%s: expected match %v, got %v", tc.other, tc.wantMatch, d.IsMatch)
		}
	}
}

func TestCompareDatesCustomWindow(t *testing.T) {
	base := day(t, "2024-03-15")
	d := CompareDates(base, day(t, "2024-03-20"), DateOptions{MaxDaysDiff: 7})
	if !d.IsMatch {
		t.Fatal("expected match inside widened window")
	}
	// 5 days at weight/6 decay: 30 - 5*5 = 5.
	if d.Score != 5 {
		t.Errorf("expected score 5, got %v", d.Score)
	}
}

func TestDateSearchWindow(t *testing.T) {
	from, to := DateSearchWindow(day(t, "2024-03-15"), 3)
	if got := from.Format("2006-01-02"); got != "2024-03-12" {
		t.Errorf("expected window start 2024-03-12, got %s", got)
	}
	if got := to.Format("2006-01-02"); got != "2024-03-18" {
		t.Errorf("expected window end 2024-03-18, got %s", got)
	}
}
