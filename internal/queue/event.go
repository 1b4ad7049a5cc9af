package queue

// Event payloads exchanged over the message broker.  They carry
// enough denormalised information for downstream consumers to render
// notifications without querying the primary database.

// BookingCreatedEvent is published when a booking has been persisted.
// The field names mirror the stored booking document; ID keeps the
// `_id` key for compatibility with existing consumers.
type BookingCreatedEvent struct {
	ID          string             `json:"_id"`
	CustomerID  string             `json:"customer_id"`
	MovieID     string             `json:"movie_id"`
	MovieTitle  string             `json:"movie_title"`
	ShowtimeID  string             `json:"showtime_id"`
	Showtime    string             `json:"showtime"`
	Seats       []BookingEventSeat `json:"seats"`
	TotalAmount float64            `json:"total_amount"`
	CreatedAt   string             `json:"created_at"`
}

// BookingEventSeat is one seat entry inside a BookingCreatedEvent.
type BookingEventSeat struct {
	SeatID     string `json:"seat_id"`
	SeatNumber string `json:"seat_number"`
}

// PaymentProcessedEvent is published when a payment is created,
// completed or refunded.  RefundID is only set for refund events.
type PaymentProcessedEvent struct {
	ID         string  `json:"_id"`
	BookingID  string  `json:"booking_id"`
	CustomerID string  `json:"customer_id"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	RefundID   string  `json:"refund_id,omitempty"`
}

// SeatsBookedEvent is published when a block of seats transitions to
// booked for a showtime.
type SeatsBookedEvent struct {
	ShowtimeID string   `json:"showtime_id"`
	Seats      []string `json:"seats"`
	BookedAt   string   `json:"booked_at"`
}
