package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/user/tradevault/backend/internal/models"
)

// CreateMiddleman registers a middleman identity for a user. The secret
// arrives already bcrypt-hashed; plaintext never reaches this package.
func CreateMiddleman(ctx context.Context, userID uuid.UUID, secretHash string) (*models.Middleman, error) {
	middleman := &models.Middleman{
		UserID:      userID,
		SecretHash:  secretHash,
		IsAvailable: true,
	}

	query := `INSERT INTO middlemen (user_id, secret_hash, is_available)
			  VALUES ($1, $2, $3)
			  RETURNING id, created_at`

	err := DB.QueryRow(ctx, query, userID, secretHash, true).
		Scan(&middleman.ID, &middleman.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("error creating middleman for user %s: %w", userID, err)
	}
	return middleman, nil
}

// GetMiddlemanByID retrieves a middleman by ID.
// Returns nil, nil if no such middleman exists.
func GetMiddlemanByID(ctx context.Context, middlemanID uuid.UUID) (*models.Middleman, error) {
	middleman := &models.Middleman{}
	query := `SELECT id, user_id, secret_hash, is_available, created_at
			  FROM middlemen WHERE id = $1`

	err := DB.QueryRow(ctx, query, middlemanID).Scan(
		&middleman.ID, &middleman.UserID, &middleman.SecretHash,
		&middleman.IsAvailable, &middleman.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting middleman by id %s: %w", middlemanID, err)
	}
	return middleman, nil
}

// SetMiddlemanAvailability updates the advisory availability flag. The flag
// is informational for dispatch dashboards and does not gate claims.
func SetMiddlemanAvailability(ctx context.Context, middlemanID uuid.UUID, available bool) (bool, error) {
	query := `UPDATE middlemen SET is_available = $1 WHERE id = $2`

	cmdTag, err := DB.Exec(ctx, query, available, middlemanID)
	if err != nil {
		return false, fmt.Errorf("error updating availability for middleman %s: %w", middlemanID, err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ListSupervisedTrades returns the trades currently or previously owned by
// the middleman (the supervised set is derived, not stored redundantly).
func ListSupervisedTrades(ctx context.Context, middlemanID uuid.UUID) ([]*models.Trade, error) {
	trades := make([]*models.Trade, 0)
	query := `SELECT id, creator_id, item_name, item_image_url, item_description,
					 price, status, middleman_id, created_at, updated_at
			  FROM trades
			  WHERE middleman_id = $1
			  ORDER BY updated_at DESC`

	rows, err := DB.Query(ctx, query, middlemanID)
	if err != nil {
		return nil, fmt.Errorf("error querying supervised trades for middleman %s: %w", middlemanID, err)
	}
	defer rows.Close()

	for rows.Next() {
		trade := &models.Trade{}
		var rawStatus string
		if err := rows.Scan(
			&trade.ID, &trade.CreatorID, &trade.ItemName, &trade.ItemImageURL,
			&trade.ItemDescription, &trade.Price, &rawStatus, &trade.MiddlemanID,
			&trade.CreatedAt, &trade.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning supervised trade row: %w", err)
		}
		trade.Status, err = models.ParseTradeStatus(rawStatus)
		if err != nil {
			return nil, fmt.Errorf("supervised trade %s: %w", trade.ID, err)
		}
		trades = append(trades, trade)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating supervised trade rows: %w", rows.Err())
	}
	return trades, nil
}
