package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/models"
)

// Store adapts this package's store functions to the escrow.Store
// interface so the coordination engine stays decoupled from pgx and
// testable against a stub.
type Store struct{}

func (Store) InsertTrade(ctx context.Context, trade *models.Trade) error {
	return InsertTrade(ctx, trade)
}

func (Store) GetTrade(ctx context.Context, tradeID uuid.UUID) (*models.Trade, error) {
	return GetTradeByID(ctx, tradeID)
}

func (Store) AssignMiddleman(ctx context.Context, tradeID, middlemanID uuid.UUID) (bool, error) {
	return AssignMiddleman(ctx, tradeID, middlemanID)
}

func (Store) ResolveTrade(ctx context.Context, tradeID, middlemanID uuid.UUID, outcome models.TradeStatus) (bool, error) {
	return ResolveTrade(ctx, tradeID, middlemanID, outcome)
}

func (Store) CancelTrade(ctx context.Context, tradeID, creatorID uuid.UUID) (bool, error) {
	return CancelTrade(ctx, tradeID, creatorID)
}

func (Store) CountEligiblePayments(ctx context.Context, tradeID uuid.UUID) (int, error) {
	return CountEligiblePayments(ctx, tradeID)
}

func (Store) AddParticipant(ctx context.Context, participant *models.Participant) error {
	return AddParticipant(ctx, participant)
}

func (Store) ListPending(ctx context.Context, status models.TradeStatus, limit, offset int) ([]models.QueuedTrade, int, error) {
	return ListPendingTrades(ctx, status, limit, offset)
}
