package model

import "time"

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentRefunded  = "refunded"
)

// Payment records a charge against a booking.  A booking may have
// more than one payment row over its lifetime (e.g. a refunded
// payment followed by a fresh one), but retries of the same logical
// payment are collapsed onto a single row through IdempotencyKey.
//
// Fields:
//
//	ID             – opaque string identifier (UUID).
//	BookingID      – booking being paid for.
//	CustomerID     – customer who initiated the payment.
//	Amount         – charged amount.
//	PaymentMethod  – free-form method label (e.g. "credit_card").
//	Status         – one of the Payment* constants.
//	RefundID       – synthetic refund reference, set when refunded.
//	IdempotencyKey – client-generated key identifying the logical
//	                 payment intent; creation is an upsert on it.
//	CreatedAt      – creation timestamp.
type Payment struct {
	ID             string    `json:"id"`
	BookingID      string    `json:"booking_id"`
	CustomerID     string    `json:"customer_id"`
	Amount         float64   `json:"amount"`
	PaymentMethod  string    `json:"payment_method"`
	Status         string    `json:"status"`
	RefundID       string    `json:"refund_id,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
