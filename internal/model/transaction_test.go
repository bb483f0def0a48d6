package model

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{TransactionStatusPending, TransactionStatusCompleted, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusCompleted, TransactionStatusFailed, false},
		{TransactionStatusCompleted, TransactionStatusPending, false},
		{TransactionStatusFailed, TransactionStatusCompleted, false},
		{TransactionStatusFailed, TransactionStatusPending, false},
		{TransactionStatusPending, TransactionStatusPending, false},
		{"bogus", TransactionStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransitionTo(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionTo(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
