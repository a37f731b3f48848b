package escrow

import "github.com/user/tradevault/backend/internal/models"

// transitions is the exhaustive table of legal trade status moves.
// Terminal states have no outgoing edges. active -> under_review happens
// only through Claim; under_review -> terminal only through Resolve.
var transitions = map[models.TradeStatus][]models.TradeStatus{
	models.TradeStatusActive:      {models.TradeStatusUnderReview, models.TradeStatusCancelled},
	models.TradeStatusUnderReview: {models.TradeStatusCompleted, models.TradeStatusCancelled},
	models.TradeStatusCompleted:   {},
	models.TradeStatusCancelled:   {},
}

// CanTransition reports whether moving a trade from one status to another
// is permitted by the lifecycle table.
func CanTransition(from, to models.TradeStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
