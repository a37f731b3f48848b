package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/database"
	"github.com/user/tradevault/backend/internal/escrow"
	"github.com/user/tradevault/backend/internal/models"
)

var (
	paymentWebhookSecret string
	notifier             escrow.Notifier
)

// SetPaymentWebhookSecret configures the shared secret gateway callbacks
// must present.
func SetPaymentWebhookSecret(secret string) {
	paymentWebhookSecret = secret
}

// SetNotifier wires the outbound event dispatcher into the handlers that
// emit events outside the engine.
func SetNotifier(n escrow.Notifier) {
	notifier = n
}

// PaymentWebhookRequest is the payload delivered by the payment gateway.
type PaymentWebhookRequest struct {
	TradeID   string  `json:"trade_id"`
	PayerID   string  `json:"payer_id"`
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

// PaymentWebhook ingests asynchronous payment events from the gateway. The
// engine only ever reads payment status; this callback is the single writer.
// Replays are idempotent through the gateway reference.
func PaymentWebhook(c *fiber.Ctx) error {
	if paymentWebhookSecret == "" || c.Get("X-Gateway-Secret") != paymentWebhookSecret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid gateway secret"})
	}

	req := new(PaymentWebhookRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	tradeID, err := uuid.Parse(req.TradeID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID format"})
	}
	payerID, err := uuid.Parse(req.PayerID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payer ID format"})
	}
	if req.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Payment reference is required"})
	}
	status, err := models.ParsePaymentStatus(req.Status)
	if err != nil {
		// Unknown statuses are rejected at the boundary rather than stored.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	trade, err := database.GetTradeByID(c.Context(), tradeID)
	if err != nil {
		log.Printf("Error fetching trade %s for payment %s: %v", tradeID, req.Reference, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error fetching trade"})
	}
	if trade == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trade not found", "code": "not_found"})
	}

	payment := &models.Payment{
		TradeID:   tradeID,
		PayerID:   payerID,
		Reference: req.Reference,
		Amount:    req.Amount,
		Status:    status,
	}
	if err := database.UpsertPayment(c.Context(), payment); err != nil {
		log.Printf("Error recording payment %s for trade %s: %v", req.Reference, tradeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record payment"})
	}

	if status.IsEligible() && notifier != nil {
		notifier.Notify(escrow.EventPaymentReceived, tradeID, payment)
	}

	return c.Status(fiber.StatusOK).JSON(payment)
}
