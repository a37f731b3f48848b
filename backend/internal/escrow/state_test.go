package escrow

import (
	"testing"

	"github.com/user/tradevault/backend/internal/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    models.TradeStatus
		to      models.TradeStatus
		allowed bool
	}{
		{models.TradeStatusActive, models.TradeStatusUnderReview, true},
		{models.TradeStatusActive, models.TradeStatusCancelled, true},
		{models.TradeStatusActive, models.TradeStatusCompleted, false},
		{models.TradeStatusUnderReview, models.TradeStatusCompleted, true},
		{models.TradeStatusUnderReview, models.TradeStatusCancelled, true},
		{models.TradeStatusUnderReview, models.TradeStatusActive, false},
		{models.TradeStatusCompleted, models.TradeStatusActive, false},
		{models.TradeStatusCompleted, models.TradeStatusCancelled, false},
		{models.TradeStatusCancelled, models.TradeStatusActive, false},
		{models.TradeStatusCancelled, models.TradeStatusUnderReview, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	for _, status := range []models.TradeStatus{models.TradeStatusCompleted, models.TradeStatusCancelled} {
		if !status.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
		if len(transitions[status]) != 0 {
			t.Errorf("terminal status %s has outgoing transitions", status)
		}
	}
}
