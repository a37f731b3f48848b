package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/database"
	"github.com/user/tradevault/backend/internal/models"
)

// PostMessageRequest defines the body for attaching a chat message.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage attaches a message to a trade. Only the creator or a
// participant may write.
func PostMessage(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID format"})
	}

	req := new(PostMessageRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message text cannot be empty"})
	}

	allowed, found, err := tradeChatAccess(c, tradeID, userID)
	if err != nil {
		log.Printf("Error checking chat access for trade %s: %v", tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve trade"})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trade not found", "code": "not_found"})
	}
	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only trade members can post messages"})
	}

	message := &models.ChatMessage{
		TradeID:  tradeID,
		SenderID: userID,
		Text:     req.Text,
	}
	if err := database.AddChatMessage(c.Context(), message); err != nil {
		log.Printf("Error adding message to trade %s: %v", tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to post message"})
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// GetMessages lists a trade's messages for its members.
func GetMessages(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID format"})
	}

	allowed, found, err := tradeChatAccess(c, tradeID, userID)
	if err != nil {
		log.Printf("Error checking chat access for trade %s: %v", tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve trade"})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trade not found", "code": "not_found"})
	}
	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only trade members can read messages"})
	}

	messages, err := database.ListChatMessages(c.Context(), tradeID)
	if err != nil {
		log.Printf("Error fetching messages for trade %s: %v", tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve messages"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// tradeChatAccess reports whether the trade exists and whether the user,
// as its creator or a participant, may use its chat.
func tradeChatAccess(c *fiber.Ctx, tradeID, userID uuid.UUID) (allowed, found bool, err error) {
	trade, err := database.GetTradeByID(c.Context(), tradeID)
	if err != nil {
		return false, false, err
	}
	if trade == nil {
		return false, false, nil
	}

	if trade.CreatorID == userID {
		return true, true, nil
	}

	isParticipant, err := database.IsParticipant(c.Context(), tradeID, userID)
	if err != nil {
		return false, true, err
	}
	return isParticipant, true, nil
}
