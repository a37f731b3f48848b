package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TradeStatus is the closed set of trade lifecycle states. Values outside
// this set are rejected at the boundary by ParseTradeStatus.
type TradeStatus string

const (
	TradeStatusActive      TradeStatus = "active"       // open for joining and payment
	TradeStatusUnderReview TradeStatus = "under_review" // claimed by a middleman
	TradeStatusCompleted   TradeStatus = "completed"
	TradeStatusCancelled   TradeStatus = "cancelled"
)

// ParseTradeStatus validates a raw status string against the declared set.
func ParseTradeStatus(s string) (TradeStatus, error) {
	switch TradeStatus(s) {
	case TradeStatusActive, TradeStatusUnderReview, TradeStatusCompleted, TradeStatusCancelled:
		return TradeStatus(s), nil
	}
	return "", fmt.Errorf("unknown trade status %q", s)
}

// IsTerminal reports whether no further transition is permitted.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusCompleted || s == TradeStatusCancelled
}

// PaymentStatus is the closed set of payment states reported by the gateway.
type PaymentStatus string

const (
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// ParsePaymentStatus validates a raw status string from the gateway callback.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// IsEligible reports whether a payment in this state counts toward
// middleman-review eligibility. Review is a paid service, so in-flight
// processing payments count as well as completed ones.
func (s PaymentStatus) IsEligible() bool {
	return s == PaymentStatusProcessing || s == PaymentStatusCompleted
}

// User represents a user account
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // Store hash, exclude from JSON responses
	CreatedAt time.Time `json:"created_at"`
}

// Trade represents a proposed exchange of an item for a paid escrow service.
// MiddlemanID is set only while the trade is under review or in a terminal
// supervised state; at most one middleman owns a trade at any time.
type Trade struct {
	ID              uuid.UUID   `json:"id"`
	CreatorID       uuid.UUID   `json:"creator_id"`
	ItemName        string      `json:"item_name"`
	ItemImageURL    string      `json:"item_image_url,omitempty"`
	ItemDescription string      `json:"item_description,omitempty"`
	Price           float64     `json:"price"`
	Status          TradeStatus `json:"status"`
	MiddlemanID     *uuid.UUID  `json:"middleman_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Participant represents a user who joined a trade as counterparty.
// Uniqueness on (trade_id, user_id) is enforced by the store; the creator
// never appears as a participant of their own trade.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	TradeID  uuid.UUID `json:"trade_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"` // e.g., "buyer"
	JoinedAt time.Time `json:"joined_at"`
}

// ParticipantInfo is the public projection of a participant used in queue
// listings and trade detail responses.
type ParticipantInfo struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Payment is a record of a fee payment attached to a trade. The engine only
// reads payment status; it is written exclusively from gateway callbacks.
type Payment struct {
	ID        uuid.UUID     `json:"id"`
	TradeID   uuid.UUID     `json:"trade_id"`
	PayerID   uuid.UUID     `json:"payer_id"`
	Reference string        `json:"reference"` // gateway's idempotency reference
	Amount    float64       `json:"amount"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PaymentSummary is the projection of a payment carried on queue items.
type PaymentSummary struct {
	PayerID   uuid.UUID     `json:"payer_id"`
	Amount    float64       `json:"amount"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Middleman represents a credentialed escrow supervisor. The secret is
// stored as a bcrypt hash and never compared in plaintext. IsAvailable is
// advisory only; it does not gate claim eligibility.
type Middleman struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	SecretHash  string    `json:"-"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatMessage is a timestamped note attached to a trade.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	TradeID   uuid.UUID `json:"trade_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// QueuedTrade is a pending-queue item: the trade plus the derived metadata
// a middleman needs to pick work. TimeInQueueSeconds is computed at read
// time from CreatedAt, never stored.
type QueuedTrade struct {
	Trade              Trade             `json:"trade"`
	Participants       []ParticipantInfo `json:"participants"`
	Payments           []PaymentSummary  `json:"payments"`
	PaymentCount       int               `json:"payment_count"`
	MessageCount       int               `json:"message_count"`
	TimeInQueueSeconds int64             `json:"time_in_queue_seconds"`
}
