package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/user/tradevault/backend/internal/models"
)

// eligiblePaymentExists is the payment-gated eligibility predicate. It is
// evaluated inside every query that decides claimability, never cached,
// because payment status changes out of band through gateway callbacks.
const eligiblePaymentExists = `EXISTS (
	SELECT 1 FROM payments p
	WHERE p.trade_id = t.id AND p.status IN ('processing', 'completed'))`

// InsertTrade inserts a new trade in the active status.
func InsertTrade(ctx context.Context, trade *models.Trade) error {
	query := `INSERT INTO trades (creator_id, item_name, item_image_url, item_description, price, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, created_at, updated_at`

	err := DB.QueryRow(ctx, query,
		trade.CreatorID, trade.ItemName, trade.ItemImageURL,
		trade.ItemDescription, trade.Price, string(trade.Status),
	).Scan(&trade.ID, &trade.CreatedAt, &trade.UpdatedAt)

	if err != nil {
		return fmt.Errorf("error creating trade for user %s: %w", trade.CreatorID, err)
	}
	return nil
}

// GetTradeByID retrieves a specific trade by its ID.
// Returns nil, nil if the trade doesn't exist.
func GetTradeByID(ctx context.Context, tradeID uuid.UUID) (*models.Trade, error) {
	trade := &models.Trade{}
	var status string
	query := `SELECT id, creator_id, item_name, item_image_url, item_description,
					 price, status, middleman_id, created_at, updated_at
			  FROM trades WHERE id = $1`

	err := DB.QueryRow(ctx, query, tradeID).Scan(
		&trade.ID, &trade.CreatorID, &trade.ItemName, &trade.ItemImageURL,
		&trade.ItemDescription, &trade.Price, &status, &trade.MiddlemanID,
		&trade.CreatedAt, &trade.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting trade by id %s: %w", tradeID, err)
	}

	trade.Status, err = models.ParseTradeStatus(status)
	if err != nil {
		return nil, fmt.Errorf("trade %s: %w", tradeID, err)
	}
	return trade, nil
}

// AssignMiddleman atomically claims a trade for a middleman: the middleman
// is recorded and the status moves to under_review in a single conditional
// update. The WHERE clause requires the trade to be active, unowned and
// payment-eligible, so two concurrent claims can never both match the row.
// Returns false when the update matched nothing (lost race, ineligible, or
// no such trade); the caller re-reads to classify.
func AssignMiddleman(ctx context.Context, tradeID, middlemanID uuid.UUID) (bool, error) {
	query := `UPDATE trades t
			  SET middleman_id = $1, status = 'under_review', updated_at = NOW()
			  WHERE t.id = $2
				AND t.status = 'active'
				AND t.middleman_id IS NULL
				AND ` + eligiblePaymentExists

	cmdTag, err := DB.Exec(ctx, query, middlemanID, tradeID)
	if err != nil {
		return false, fmt.Errorf("error assigning middleman %s to trade %s: %w", middlemanID, tradeID, err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ResolveTrade moves a trade under review to a terminal outcome, guarded so
// only the assigned middleman and only the under_review source state match.
func ResolveTrade(ctx context.Context, tradeID, middlemanID uuid.UUID, outcome models.TradeStatus) (bool, error) {
	query := `UPDATE trades
			  SET status = $1, updated_at = NOW()
			  WHERE id = $2 AND middleman_id = $3 AND status = 'under_review'`

	cmdTag, err := DB.Exec(ctx, query, string(outcome), tradeID, middlemanID)
	if err != nil {
		return false, fmt.Errorf("error resolving trade %s to %s: %w", tradeID, outcome, err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// CancelTrade lets the creator withdraw a trade that is still active and
// unclaimed. Same conditional-update shape as AssignMiddleman.
func CancelTrade(ctx context.Context, tradeID, creatorID uuid.UUID) (bool, error) {
	query := `UPDATE trades
			  SET status = 'cancelled', updated_at = NOW()
			  WHERE id = $1 AND creator_id = $2 AND status = 'active' AND middleman_id IS NULL`

	cmdTag, err := DB.Exec(ctx, query, tradeID, creatorID)
	if err != nil {
		return false, fmt.Errorf("error cancelling trade %s: %w", tradeID, err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ListPendingTrades returns one page of payment-eligible trades in the given
// status, ordered by payment count descending then creation time ascending,
// plus the total count under the same predicate (computed independently of
// pagination).
func ListPendingTrades(ctx context.Context, status models.TradeStatus, limit, offset int) ([]models.QueuedTrade, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM trades t WHERE t.status = $1 AND ` + eligiblePaymentExists
	if err := DB.QueryRow(ctx, countQuery, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting pending trades: %w", err)
	}

	query := `SELECT t.id, t.creator_id, t.item_name, t.item_image_url, t.item_description,
					 t.price, t.status, t.middleman_id, t.created_at, t.updated_at,
					 (SELECT COUNT(*) FROM payments p WHERE p.trade_id = t.id) AS payment_count,
					 (SELECT COUNT(*) FROM chat_messages m WHERE m.trade_id = t.id) AS message_count
			  FROM trades t
			  WHERE t.status = $1 AND ` + eligiblePaymentExists + `
			  ORDER BY payment_count DESC, t.created_at ASC
			  LIMIT $2 OFFSET $3`

	rows, err := DB.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying pending trades: %w", err)
	}
	defer rows.Close()

	items := make([]models.QueuedTrade, 0)
	for rows.Next() {
		var item models.QueuedTrade
		var rawStatus string
		if err := rows.Scan(
			&item.Trade.ID, &item.Trade.CreatorID, &item.Trade.ItemName,
			&item.Trade.ItemImageURL, &item.Trade.ItemDescription,
			&item.Trade.Price, &rawStatus, &item.Trade.MiddlemanID,
			&item.Trade.CreatedAt, &item.Trade.UpdatedAt,
			&item.PaymentCount, &item.MessageCount,
		); err != nil {
			return nil, 0, fmt.Errorf("error scanning pending trade row: %w", err)
		}
		item.Trade.Status, err = models.ParseTradeStatus(rawStatus)
		if err != nil {
			return nil, 0, fmt.Errorf("pending trade %s: %w", item.Trade.ID, err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("error iterating pending trade rows: %w", rows.Err())
	}

	// Attach participant and payment projections per item. Row counts here
	// are small (one page), so the per-trade queries stay cheap.
	for i := range items {
		participants, err := ListParticipantInfo(ctx, items[i].Trade.ID)
		if err != nil {
			return nil, 0, err
		}
		items[i].Participants = participants

		payments, err := ListPaymentSummaries(ctx, items[i].Trade.ID)
		if err != nil {
			return nil, 0, err
		}
		items[i].Payments = payments
	}

	return items, total, nil
}
