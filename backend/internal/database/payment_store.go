package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/models"
)

// UpsertPayment records a gateway payment event. The gateway reference is
// the idempotency key: replays and status updates for the same reference
// land on the existing row instead of creating duplicates. Payments are
// never deleted.
func UpsertPayment(ctx context.Context, payment *models.Payment) error {
	query := `INSERT INTO payments (trade_id, payer_id, reference, amount, status)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (reference) DO UPDATE
			  SET status = EXCLUDED.status, updated_at = NOW()
			  RETURNING id, created_at, updated_at`

	err := DB.QueryRow(ctx, query,
		payment.TradeID, payment.PayerID, payment.Reference,
		payment.Amount, string(payment.Status),
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)

	if err != nil {
		return fmt.Errorf("error upserting payment %s for trade %s: %w",
			payment.Reference, payment.TradeID, err)
	}
	return nil
}

// CountEligiblePayments counts payments in a review-eligible state for the
// trade. Callers use this for failure classification only; the claim update
// itself re-checks eligibility atomically.
func CountEligiblePayments(ctx context.Context, tradeID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM payments
			  WHERE trade_id = $1 AND status IN ('processing', 'completed')`

	if err := DB.QueryRow(ctx, query, tradeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting eligible payments for trade %s: %w", tradeID, err)
	}
	return count, nil
}

// ListPaymentSummaries returns the payment projections for a trade.
func ListPaymentSummaries(ctx context.Context, tradeID uuid.UUID) ([]models.PaymentSummary, error) {
	query := `SELECT payer_id, amount, status, created_at
			  FROM payments
			  WHERE trade_id = $1
			  ORDER BY created_at ASC`

	rows, err := DB.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("error querying payments for trade %s: %w", tradeID, err)
	}
	defer rows.Close()

	summaries := make([]models.PaymentSummary, 0)
	for rows.Next() {
		var summary models.PaymentSummary
		var rawStatus string
		if err := rows.Scan(&summary.PayerID, &summary.Amount, &rawStatus, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning payment row for trade %s: %w", tradeID, err)
		}
		summary.Status, err = models.ParsePaymentStatus(rawStatus)
		if err != nil {
			return nil, fmt.Errorf("payment on trade %s: %w", tradeID, err)
		}
		summaries = append(summaries, summary)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating payment rows for trade %s: %w", tradeID, rows.Err())
	}
	return summaries, nil
}
