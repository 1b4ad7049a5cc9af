package model

import "time"

// Seat statuses.  A seat only ever moves forward through
// available -> pending -> booked/paid, or is released back to
// available by an explicit release.
const (
	SeatAvailable = "available"
	SeatPending   = "pending"
	SeatBooked    = "booked"
	SeatPaid      = "paid"
)

// Seat describes one seat of a showtime.  Seats are provisioned in
// bulk when a showtime is created and are never deleted during normal
// operation; only their status changes.
//
// Fields:
//
//	ID         – opaque string identifier (UUID).
//	ShowtimeID – showtime this seat belongs to.
//	SeatNumber – label such as "A1".
//	Status     – one of the Seat* constants above.
//	BookingID  – booking currently holding the seat, if any.
//	CreatedAt  – creation timestamp.
type Seat struct {
	ID         string    `json:"id"`
	ShowtimeID string    `json:"showtime_id"`
	SeatNumber string    `json:"seat_number"`
	Status     string    `json:"status"`
	BookingID  string    `json:"booking_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
