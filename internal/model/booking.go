package model

import "time"

// Booking statuses.  The state machine only moves forward:
// pending -> confirmed -> paid, or pending -> cancelled.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingPaid      = "paid"
	BookingCancelled = "cancelled"
)

// BookingSeat identifies one seat inside a booking.  The seat list of
// a booking is immutable after creation.
type BookingSeat struct {
	SeatID     string `json:"seat_id"`
	SeatNumber string `json:"seat_number"`
}

// Booking records a customer's order for one or more seats of a
// showtime.  MovieTitle and Showtime are denormalised copies carried
// along so downstream consumers can render notifications without
// querying the movie catalog.
type Booking struct {
	ID          string        `json:"id"`
	CustomerID  string        `json:"customer_id"`
	MovieID     string        `json:"movie_id"`
	MovieTitle  string        `json:"movie_title"`
	ShowtimeID  string        `json:"showtime_id"`
	Showtime    string        `json:"showtime"`
	Seats       []BookingSeat `json:"seats"`
	TotalAmount float64       `json:"total_amount"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ValidBookingTransition reports whether a booking may move from one
// status to another.  Transitions only go forward; repeating the
// current status is allowed so that redelivered updates stay
// idempotent.
func ValidBookingTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case BookingPending:
		return to == BookingConfirmed || to == BookingPaid || to == BookingCancelled
	case BookingConfirmed:
		return to == BookingPaid || to == BookingCancelled
	default:
		return false
	}
}
