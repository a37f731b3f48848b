package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/auth"
	"github.com/user/tradevault/backend/internal/database"
	"github.com/user/tradevault/backend/internal/models"
)

// RegisterMiddlemanRequest defines the body for enrolling as a middleman.
type RegisterMiddlemanRequest struct {
	Secret string `json:"secret"`
}

// RegisterMiddleman enrolls the authenticated user as an escrow middleman.
// The supplied secret is bcrypt-hashed before it ever reaches storage.
func RegisterMiddleman(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(RegisterMiddlemanRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if strings.TrimSpace(req.Secret) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Secret cannot be empty"})
	}

	secretHash, err := auth.HashSecret(req.Secret)
	if err != nil {
		log.Printf("Error hashing middleman secret for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process secret"})
	}

	middleman, err := database.CreateMiddleman(c.Context(), userID, secretHash)
	if err != nil {
		log.Printf("Error creating middleman for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register middleman"})
	}

	return c.Status(fiber.StatusCreated).JSON(middleman)
}

// MiddlemanLoginRequest defines the body for the middleman credential check.
type MiddlemanLoginRequest struct {
	MiddlemanID string `json:"middleman_id"`
	Secret      string `json:"secret"`
}

// MiddlemanLogin verifies middleman credentials and issues a token carrying
// the middleman identity. The secret is compared against its bcrypt hash
// only, and is never echoed or logged.
func MiddlemanLogin(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}
	username, _ := c.Locals("username").(string)

	req := new(MiddlemanLoginRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	middlemanID, err := uuid.Parse(req.MiddlemanID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid middleman ID format"})
	}

	middleman, err := database.GetMiddlemanByID(c.Context(), middlemanID)
	if err != nil {
		log.Printf("Error fetching middleman %s: %v", middlemanID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error finding middleman"})
	}
	if middleman == nil || middleman.UserID != userID || !auth.CheckSecretHash(req.Secret, middleman.SecretHash) {
		// One message for all three cases so the response leaks nothing
		// about which check failed.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid middleman credentials"})
	}

	token, err := auth.GenerateMiddlemanJWT(userID, username, middleman.ID)
	if err != nil {
		log.Printf("Error generating middleman JWT for %s: %v", middleman.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token":     token,
		"middleman": middleman,
		"issued_at": time.Now(),
	})
}

// SetAvailabilityRequest defines the body for the availability toggle.
type SetAvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

// SetAvailability updates the middleman's advisory availability flag.
func SetAvailability(c *fiber.Ctx) error {
	middlemanID, ok := c.Locals("middlemanID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Middleman credentials required"})
	}

	req := new(SetAvailabilityRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	updated, err := database.SetMiddlemanAvailability(c.Context(), middlemanID, req.IsAvailable)
	if err != nil {
		log.Printf("Error updating availability for middleman %s: %v", middlemanID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update availability"})
	}
	if !updated {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Middleman not found"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"is_available": req.IsAvailable})
}

// GetQueue returns the fairness-ordered page of payment-eligible trades
// awaiting a middleman. Query parameters: status (defaults to active, the
// pending set), limit (default 20), offset (default 0).
func GetQueue(c *fiber.Ctx) error {
	var status models.TradeStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := models.ParseTradeStatus(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		status = parsed
	}

	page, err := Engine.ListPending(c.Context(), status, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		log.Printf("Error listing pending trades: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list pending trades"})
	}

	return c.Status(fiber.StatusOK).JSON(page)
}

// ClaimTrade exclusively assigns the trade to the calling middleman.
func ClaimTrade(c *fiber.Ctx) error {
	middlemanID, ok := c.Locals("middlemanID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Middleman credentials required"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID format"})
	}

	trade, err := Engine.Claim(c.Context(), tradeID, middlemanID)
	if err != nil {
		return escrowErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(trade)
}

// ResolveTradeRequest defines the body for recording a supervision outcome.
type ResolveTradeRequest struct {
	Outcome string `json:"outcome"` // completed or cancelled
}

// ResolveTrade records the supervision outcome for a trade the calling
// middleman owns.
func ResolveTrade(c *fiber.Ctx) error {
	middlemanID, ok := c.Locals("middlemanID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Middleman credentials required"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID format"})
	}

	req := new(ResolveTradeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	outcome, err := models.ParseTradeStatus(req.Outcome)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	trade, err := Engine.Resolve(c.Context(), tradeID, middlemanID, outcome)
	if err != nil {
		return escrowErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(trade)
}

// GetSupervisedTrades lists the trades owned by the calling middleman.
func GetSupervisedTrades(c *fiber.Ctx) error {
	middlemanID, ok := c.Locals("middlemanID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Middleman credentials required"})
	}

	trades, err := database.ListSupervisedTrades(c.Context(), middlemanID)
	if err != nil {
		log.Printf("Error fetching supervised trades for middleman %s: %v", middlemanID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve supervised trades"})
	}

	return c.Status(fiber.StatusOK).JSON(trades)
}
