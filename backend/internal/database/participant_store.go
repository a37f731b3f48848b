package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/user/tradevault/backend/internal/escrow"
	"github.com/user/tradevault/backend/internal/models"
)

// uniqueViolation is the Postgres error code raised when an insert breaks
// a unique constraint.
const uniqueViolation = "23505"

// AddParticipant inserts a participant record. The (trade_id, user_id)
// unique constraint is the authority on double joins: a violation comes
// back as escrow.ErrAlreadyJoined, so concurrent joins by the same user
// cannot both succeed.
func AddParticipant(ctx context.Context, participant *models.Participant) error {
	query := `INSERT INTO participants (trade_id, user_id, role)
			  VALUES ($1, $2, $3)
			  RETURNING id, joined_at`

	err := DB.QueryRow(ctx, query,
		participant.TradeID, participant.UserID, participant.Role,
	).Scan(&participant.ID, &participant.JoinedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return escrow.ErrAlreadyJoined
		}
		return fmt.Errorf("error adding participant %s to trade %s: %w",
			participant.UserID, participant.TradeID, err)
	}
	return nil
}

// ListParticipantInfo returns the public projection of a trade's
// participants, joined with usernames.
func ListParticipantInfo(ctx context.Context, tradeID uuid.UUID) ([]models.ParticipantInfo, error) {
	query := `SELECT pt.user_id, u.username, pt.role, pt.joined_at
			  FROM participants pt
			  JOIN users u ON u.id = pt.user_id
			  WHERE pt.trade_id = $1
			  ORDER BY pt.joined_at ASC`

	rows, err := DB.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("error querying participants for trade %s: %w", tradeID, err)
	}
	defer rows.Close()

	infos := make([]models.ParticipantInfo, 0)
	for rows.Next() {
		var info models.ParticipantInfo
		if err := rows.Scan(&info.UserID, &info.Username, &info.Role, &info.JoinedAt); err != nil {
			return nil, fmt.Errorf("error scanning participant row for trade %s: %w", tradeID, err)
		}
		infos = append(infos, info)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating participant rows for trade %s: %w", tradeID, rows.Err())
	}
	return infos, nil
}

// IsParticipant reports whether the user joined the trade.
func IsParticipant(ctx context.Context, tradeID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM participants WHERE trade_id = $1 AND user_id = $2)`

	if err := DB.QueryRow(ctx, query, tradeID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking participant %s on trade %s: %w", userID, tradeID, err)
	}
	return exists, nil
}
