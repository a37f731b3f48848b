package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/models"
)

// AddChatMessage attaches a message to a trade.
func AddChatMessage(ctx context.Context, message *models.ChatMessage) error {
	query := `INSERT INTO chat_messages (trade_id, sender_id, text)
			  VALUES ($1, $2, $3)
			  RETURNING id, created_at`

	err := DB.QueryRow(ctx, query, message.TradeID, message.SenderID, message.Text).
		Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		return fmt.Errorf("error adding message to trade %s: %w", message.TradeID, err)
	}
	return nil
}

// ListChatMessages returns a trade's messages oldest first.
func ListChatMessages(ctx context.Context, tradeID uuid.UUID) ([]models.ChatMessage, error) {
	query := `SELECT id, trade_id, sender_id, text, created_at
			  FROM chat_messages
			  WHERE trade_id = $1
			  ORDER BY created_at ASC`

	rows, err := DB.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages for trade %s: %w", tradeID, err)
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var message models.ChatMessage
		if err := rows.Scan(&message.ID, &message.TradeID, &message.SenderID,
			&message.Text, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message row for trade %s: %w", tradeID, err)
		}
		messages = append(messages, message)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating message rows for trade %s: %w", tradeID, rows.Err())
	}
	return messages, nil
}

// CountChatMessages returns the number of messages on a trade, used as the
// activity signal on queue items.
func CountChatMessages(ctx context.Context, tradeID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM chat_messages WHERE trade_id = $1`

	if err := DB.QueryRow(ctx, query, tradeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting messages for trade %s: %w", tradeID, err)
	}
	return count, nil
}
