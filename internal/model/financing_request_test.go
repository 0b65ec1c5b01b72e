package model

import "testing"

func TestTotalWithInterest(t *testing.T) {
	cases := []struct {
		total int64
		rate  int
		want  int64
	}{
		{100000, 5, 105000},
		{100000, 0, 100000},
		{999, 40, 1399}, // 1398.6
		{1001, 5, 1051}, // 1051.05
		{10, 15, 12},    // 11.5 rounds half up
		{1, 40, 1},      // 1.4
	}
	for _, tc := range cases {
		if got := TotalWithInterest(tc.total, tc.rate); got != tc.want {
			t.Errorf("TotalWithInterest(%d, %d) = %d, want %d", tc.total, tc.rate, got, tc.want)
		}
	}
}

func TestBalanceFloorsAtZero(t *testing.T) {
	r := &FinancingRequest{TotalWithInterest: 1000, AmountPaid: 400}
	if r.Balance() != 600 {
		t.Fatalf("expected balance 600, got %d", r.Balance())
	}
	if r.FullyPaid() {
		t.Fatal("expected not fully paid")
	}

	r.AmountPaid = 1200
	if r.Balance() != 0 {
		t.Fatalf("expected balance floored at 0, got %d", r.Balance())
	}
	if !r.FullyPaid() {
		t.Fatal("expected fully paid")
	}
}

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{RequestStatusPending, RequestStatusApproved, true},
		{RequestStatusPending, RequestStatusRejected, true},
		{RequestStatusApproved, RequestStatusDelivered, true},
		{RequestStatusApproved, RequestStatusApproved, false},
		{RequestStatusRejected, RequestStatusApproved, false},
		{RequestStatusDelivered, RequestStatusApproved, false},
		{RequestStatusPending, RequestStatusDelivered, false},
		{RequestStatusDelivered, RequestStatusCancelled, true},
		{RequestStatusPending, RequestStatusCancelled, true},
		{RequestStatusCancelled, RequestStatusCancelled, false},
	}
	for _, tc := range cases {
		if got := CanTransitionTo(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionTo(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNormalizeEmailAndStars(t *testing.T) {
	if got := NormalizeEmail("  Ana.Perez@Example.COM "); got != "ana.perez@example.com" {
		t.Fatalf("unexpected key %q", got)
	}
	for count, want := range map[int]int{-1: 0, 0: 0, 3: 3, 5: 5, 9: 5} {
		if got := StarsFor(count); got != want {
			t.Errorf("StarsFor(%d) = %d, want %d", count, got, want)
		}
	}
	var missing *TrustRecord
	if missing.Stars() != 0 {
		t.Fatal("nil record should have zero stars")
	}
}

func TestAllowsCategory(t *testing.T) {
	cfg := &FinancingConfig{AllowedCategories: []string{"phones"}}
	if !cfg.AllowsCategory("phones") || cfg.AllowsCategory("tablets") {
		t.Fatal("unexpected category gate")
	}
	empty := &FinancingConfig{}
	if empty.AllowsCategory("phones") {
		t.Fatal("empty set must disallow every category")
	}
}
