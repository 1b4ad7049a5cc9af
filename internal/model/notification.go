package model

import "time"

// Notification types and statuses.
const (
	NotificationBooking = "booking_confirmation"
	NotificationPayment = "payment_confirmation"
	NotificationCustom  = "custom"

	NotificationPending = "pending"
	NotificationRead    = "read"
)

// Notification is a message addressed to one customer.  It is created
// by the queue consumer (or directly through the API on the fast
// path) with status pending, pushed to the customer's live
// connections when possible, and flipped to read by the customer.
// Pending notifications are replayed when the customer reconnects.
type Notification struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	Status     string    `json:"status"`
	BookingID  string    `json:"booking_id,omitempty"`
	PaymentID  string    `json:"payment_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
