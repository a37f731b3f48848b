package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/database"
	"github.com/user/tradevault/backend/internal/escrow"
)

// Engine is the coordination engine shared by the handlers, set once at
// startup.
var Engine *escrow.Engine

// SetEngine wires the engine into the handler package.
func SetEngine(e *escrow.Engine) {
	Engine = e
}

// CreateTradeRequest defines the expected JSON body for creating a trade.
type CreateTradeRequest struct {
	ItemName        string  `json:"item_name"`
	ItemImageURL    string  `json:"item_image_url"`
	ItemDescription string  `json:"item_description"`
	Price           float64 `json:"price"`
}

// CreateTrade opens a new trade for the authenticated user.
func CreateTrade(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(CreateTradeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	trade, err := Engine.CreateTrade(c.Context(), userID, escrow.CreateTradeInput{
		ItemName:        req.ItemName,
		ItemImageURL:    req.ItemImageURL,
		ItemDescription: req.ItemDescription,
		Price:           req.Price,
	})
	if err != nil {
		if errors.Is(err, escrow.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("Error creating trade for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create trade"})
	}

	return c.Status(fiber.StatusCreated).JSON(trade)
}

// GetTrade returns a trade with its participants, payments and messages.
func GetTrade(c *fiber.Ctx) error {
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID format"})
	}

	trade, err := database.GetTradeByID(c.Context(), tradeID)
	if err != nil {
		log.Printf("Error fetching trade %s: %v", tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve trade"})
	}
	if trade == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trade not found", "code": "not_found"})
	}

	participants, err := database.ListParticipantInfo(c.Context(), tradeID)
	if err != nil {
		log.Printf("Error fetching participants for trade %s: %v", tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve trade details"})
	}

	payments, err := database.ListPaymentSummaries(c.Context(), tradeID)
	if err != nil {
		log.Printf("Error fetching payments for trade %s: %v", tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve trade details"})
	}

	messageCount, err := database.CountChatMessages(c.Context(), tradeID)
	if err != nil {
		log.Printf("Error counting messages for trade %s: %v", tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve trade details"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"trade":         trade,
		"participants":  participants,
		"payments":      payments,
		"message_count": messageCount,
	})
}

// JoinTrade admits the authenticated user as a counterparty.
func JoinTrade(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID format"})
	}

	participant, err := Engine.Join(c.Context(), tradeID, userID)
	if err != nil {
		return escrowErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(participant)
}

// CancelTrade lets the creator withdraw a still-active trade.
func CancelTrade(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID format"})
	}

	trade, err := Engine.Cancel(c.Context(), tradeID, userID)
	if err != nil {
		return escrowErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(trade)
}
