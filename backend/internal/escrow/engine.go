package escrow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/models"
)

// Event kinds emitted by the engine. Delivery is best effort and never
// part of the mutating transaction.
const (
	EventTradeCreated    = "trade.created"
	EventTradeJoined     = "trade.joined"
	EventTradeClaimed    = "trade.claimed"
	EventTradeResolved   = "trade.resolved"
	EventTradeCancelled  = "trade.cancelled"
	EventPaymentReceived = "payment.received"
)

// Default queue paging parameters.
const (
	DefaultQueueLimit = 20
	MaxQueueLimit     = 100
)

// Store is the persistence boundary the engine coordinates through. The
// store is the sole arbiter of mutation ordering: AssignMiddleman and
// ResolveTrade must be atomic conditional updates (reported as updated or
// not), and AddParticipant must enforce (trade_id, user_id) uniqueness by
// returning ErrAlreadyJoined. GetTrade returns nil, nil when absent.
type Store interface {
	InsertTrade(ctx context.Context, trade *models.Trade) error
	GetTrade(ctx context.Context, tradeID uuid.UUID) (*models.Trade, error)
	AssignMiddleman(ctx context.Context, tradeID, middlemanID uuid.UUID) (bool, error)
	ResolveTrade(ctx context.Context, tradeID, middlemanID uuid.UUID, outcome models.TradeStatus) (bool, error)
	CancelTrade(ctx context.Context, tradeID, creatorID uuid.UUID) (bool, error)
	CountEligiblePayments(ctx context.Context, tradeID uuid.UUID) (int, error)
	AddParticipant(ctx context.Context, participant *models.Participant) error
	ListPending(ctx context.Context, status models.TradeStatus, limit, offset int) ([]models.QueuedTrade, int, error)
}

// Notifier receives state-change events. Implementations must be
// non-blocking; a failed or dropped notification never affects the
// operation that produced it.
type Notifier interface {
	Notify(kind string, tradeID uuid.UUID, payload any)
}

// Engine owns the trade lifecycle: creation, participant admission, the
// exclusive claim protocol and supervision outcomes. It holds no in-process
// locks and caches no trade state; every decision re-reads through the
// store because payment status can change out of band.
type Engine struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

// NewEngine creates an engine on top of a store and a notifier.
func NewEngine(store Store, notifier Notifier) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the engine's time source (used by tests).
func (e *Engine) WithClock(now func() time.Time) {
	e.now = now
}

// CreateTradeInput carries the item metadata for a new trade.
type CreateTradeInput struct {
	ItemName        string
	ItemImageURL    string
	ItemDescription string
	Price           float64
}

// CreateTrade opens a new trade in the active status on behalf of creatorID.
func (e *Engine) CreateTrade(ctx context.Context, creatorID uuid.UUID, input CreateTradeInput) (*models.Trade, error) {
	input.ItemName = strings.TrimSpace(input.ItemName)
	if input.ItemName == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	if input.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}

	trade := &models.Trade{
		CreatorID:       creatorID,
		ItemName:        input.ItemName,
		ItemImageURL:    strings.TrimSpace(input.ItemImageURL),
		ItemDescription: strings.TrimSpace(input.ItemDescription),
		Price:           input.Price,
		Status:          models.TradeStatusActive,
	}
	if err := e.store.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("creating trade: %w", err)
	}

	e.notify(EventTradeCreated, trade.ID, trade)
	return trade, nil
}

// Join admits userID to the trade as a counterparty. The creator cannot
// join their own trade, the trade must still be active, and double joins
// are rejected through the store's uniqueness constraint. No trade status
// transition occurs.
func (e *Engine) Join(ctx context.Context, tradeID, userID uuid.UUID) (*models.Participant, error) {
	trade, err := e.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("loading trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return nil, ErrNotFound
	}
	if trade.CreatorID == userID {
		return nil, ErrSelfJoinForbidden
	}
	if trade.Status != models.TradeStatusActive {
		return nil, ErrNotJoinable
	}

	participant := &models.Participant{
		TradeID: tradeID,
		UserID:  userID,
		Role:    "buyer",
	}
	if err := e.store.AddParticipant(ctx, participant); err != nil {
		// Duplicate joins surface from the store's uniqueness constraint,
		// so concurrent joins by the same user cannot both succeed.
		return nil, err
	}

	e.notify(EventTradeJoined, tradeID, participant)
	return participant, nil
}

// Claim exclusively assigns the trade to middlemanID and moves it to
// under_review. The decision itself is a single atomic conditional update
// in the store; the read beforehand only produces the precise failure kind
// for the caller. Exactly one of two concurrent claims can succeed, the
// other observes ErrAlreadyAssignedToOther.
func (e *Engine) Claim(ctx context.Context, tradeID, middlemanID uuid.UUID) (*models.Trade, error) {
	trade, err := e.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("loading trade %s: %w", tradeID, err)
	}
	if err := e.classifyClaim(ctx, trade, middlemanID); err != nil {
		return nil, err
	}

	claimed, err := e.store.AssignMiddleman(ctx, tradeID, middlemanID)
	if err != nil {
		return nil, fmt.Errorf("assigning middleman on trade %s: %w", tradeID, err)
	}
	if !claimed {
		// Lost the race between the read above and the conditional update,
		// or the payment state changed out of band. Re-read to report the
		// exact failure kind.
		trade, err = e.store.GetTrade(ctx, tradeID)
		if err != nil {
			return nil, fmt.Errorf("re-loading trade %s after failed claim: %w", tradeID, err)
		}
		if err := e.classifyClaim(ctx, trade, middlemanID); err != nil {
			return nil, err
		}
		// The trade still looks claimable yet the update matched no row.
		return nil, ErrNotClaimable
	}

	trade, err = e.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("loading trade %s after claim: %w", tradeID, err)
	}

	e.notify(EventTradeClaimed, tradeID, trade)
	return trade, nil
}

// classifyClaim maps the current trade state to the claim failure taxonomy,
// checking the preconditions in their contractual order. It returns nil
// when the trade looks claimable by middlemanID.
func (e *Engine) classifyClaim(ctx context.Context, trade *models.Trade, middlemanID uuid.UUID) error {
	if trade == nil {
		return ErrNotFound
	}
	if trade.Status != models.TradeStatusActive && trade.Status != models.TradeStatusUnderReview {
		return ErrNotClaimable
	}

	eligible, err := e.store.CountEligiblePayments(ctx, trade.ID)
	if err != nil {
		return fmt.Errorf("counting eligible payments for trade %s: %w", trade.ID, err)
	}
	if eligible == 0 {
		return ErrPaymentRequired
	}

	if trade.MiddlemanID != nil {
		if *trade.MiddlemanID == middlemanID {
			return ErrAlreadyAssignedToSelf
		}
		return ErrAlreadyAssignedToOther
	}
	if trade.Status == models.TradeStatusUnderReview {
		// Under review without an owner should not exist; refuse rather
		// than claim a trade in an inconsistent state.
		return ErrNotClaimable
	}
	return nil
}

// Resolve records the supervision outcome for a trade under review. Only
// the assigned middleman may resolve, the outcome must be a terminal state
// reachable from under_review, and payment state is not re-validated (the
// fee was already checked at claim time).
func (e *Engine) Resolve(ctx context.Context, tradeID, middlemanID uuid.UUID, outcome models.TradeStatus) (*models.Trade, error) {
	if !outcome.IsTerminal() {
		return nil, ErrInvalidStateTransition
	}

	trade, err := e.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("loading trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return nil, ErrNotFound
	}
	if !CanTransition(trade.Status, outcome) || trade.Status != models.TradeStatusUnderReview {
		return nil, ErrInvalidStateTransition
	}
	if trade.MiddlemanID == nil || *trade.MiddlemanID != middlemanID {
		return nil, ErrUnauthorized
	}

	updated, err := e.store.ResolveTrade(ctx, tradeID, middlemanID, outcome)
	if err != nil {
		return nil, fmt.Errorf("resolving trade %s: %w", tradeID, err)
	}
	if !updated {
		// The trade moved between the read and the conditional update.
		return nil, ErrInvalidStateTransition
	}

	trade.Status = outcome
	trade.UpdatedAt = e.now()
	e.notify(EventTradeResolved, tradeID, trade)
	return trade, nil
}

// Cancel lets the creator withdraw a trade that is still active. Once a
// middleman has claimed it, only Resolve can close it.
func (e *Engine) Cancel(ctx context.Context, tradeID, creatorID uuid.UUID) (*models.Trade, error) {
	trade, err := e.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("loading trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return nil, ErrNotFound
	}
	if trade.CreatorID != creatorID {
		return nil, ErrUnauthorized
	}
	if trade.Status != models.TradeStatusActive {
		return nil, ErrInvalidStateTransition
	}

	cancelled, err := e.store.CancelTrade(ctx, tradeID, creatorID)
	if err != nil {
		return nil, fmt.Errorf("cancelling trade %s: %w", tradeID, err)
	}
	if !cancelled {
		return nil, ErrInvalidStateTransition
	}

	trade.Status = models.TradeStatusCancelled
	trade.UpdatedAt = e.now()
	e.notify(EventTradeCancelled, tradeID, trade)
	return trade, nil
}

// PendingPage is one page of the fairness-ordered pending queue.
type PendingPage struct {
	Trades     []models.QueuedTrade `json:"trades"`
	TotalCount int                  `json:"total_count"`
	HasMore    bool                 `json:"has_more"`
}

// ListPending returns the paginated view of payment-eligible trades
// awaiting a middleman, ordered by payment count descending and creation
// time ascending so the oldest eligible trade in a bucket never starves.
// status defaults to active, the pending set; time in queue is computed at
// read time.
func (e *Engine) ListPending(ctx context.Context, status models.TradeStatus, limit, offset int) (*PendingPage, error) {
	if status == "" {
		status = models.TradeStatusActive
	}
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	if limit > MaxQueueLimit {
		limit = MaxQueueLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := e.store.ListPending(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing pending trades: %w", err)
	}

	now := e.now()
	for i := range items {
		items[i].TimeInQueueSeconds = int64(now.Sub(items[i].Trade.CreatedAt).Seconds())
	}

	return &PendingPage{
		Trades:     items,
		TotalCount: total,
		HasMore:    offset+limit < total,
	}, nil
}

// notify forwards an event when a notifier is configured. Fire and forget.
func (e *Engine) notify(kind string, tradeID uuid.UUID, payload any) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(kind, tradeID, payload)
}
