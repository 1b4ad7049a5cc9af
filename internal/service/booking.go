// Package service contains the booking and payment orchestrators.
// They coordinate the seat ledger, the document stores and the
// message bus without a distributed transaction: the persisted record
// is the authoritative result of each call, and event publishing plus
// secondary seat updates are best-effort side effects that are logged
// when they fail, never surfaced to the caller.
package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// SeatLedger is the slice of the seat service the orchestrators
// depend on. It is implemented locally by repository.SeatRepo and
// remotely by client.SeatClient.
type SeatLedger interface {
	CheckAvailable(ctx context.Context, showtimeID string, seatNumbers []string) error
	Reserve(ctx context.Context, showtimeID string, seatNumbers []string, newStatus string) (int64, error)
	Release(ctx context.Context, showtimeID string, seatNumbers []string) error
	UpdateStatus(ctx context.Context, seatID, status string) error
}

// BookingStore is the persistence surface used by the orchestrators.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// sideEffectTimeout bounds the background calls a request leaves
// behind (event publish, secondary seat updates). These run detached
// from the request context so an early HTTP response does not cancel
// them.
const sideEffectTimeout = 10 * time.Second

// BookingService implements the booking half of the saga: claim the
// seats through the ledger, persist the booking and emit
// booking_created.
type BookingService struct {
	store  BookingStore
	ledger SeatLedger
	bus    queue.Bus

	wg sync.WaitGroup
}

// NewBookingService constructs a BookingService.
func NewBookingService(store BookingStore, ledger SeatLedger, bus queue.Bus) *BookingService {
	return &BookingService{store: store, ledger: ledger, bus: bus}
}

// CreateBookingRequest carries the fields a client submits to open a
// booking. MovieTitle and Showtime are denormalised display values
// forwarded into the booking_created event.
type CreateBookingRequest struct {
	CustomerID  string              `json:"customer_id"`
	MovieID     string              `json:"movie_id"`
	MovieTitle  string              `json:"movie_title"`
	ShowtimeID  string              `json:"showtime_id"`
	Showtime    string              `json:"showtime"`
	Seats       []model.BookingSeat `json:"seats"`
	TotalAmount float64             `json:"total_amount"`
}

// CreateBooking claims every requested seat through the ledger's
// test-and-set Reserve, persists the booking with status pending and
// fires the side effects. The reservation is the double-booking
// guard: of two concurrent bookings for the same seat at most one can
// flip it, the other aborts with a conflict and writes nothing. The
// returned booking always reflects the database write; the event
// publish may lag or fail independently.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	numbers := make([]string, 0, len(req.Seats))
	for _, seat := range req.Seats {
		numbers = append(numbers, seat.SeatNumber)
	}

	reserved, err := s.ledger.Reserve(ctx, req.ShowtimeID, numbers, model.SeatPending)
	if err != nil {
		return nil, err
	}
	if reserved != int64(len(numbers)) {
		// Lost the race (or a seat never existed). Nothing flipped;
		// the advisory check names the offending seat for the caller.
		if err := s.ledger.CheckAvailable(ctx, req.ShowtimeID, numbers); err != nil {
			return nil, err
		}
		return nil, repository.ErrConflict
	}

	b := &model.Booking{
		CustomerID:  req.CustomerID,
		MovieID:     req.MovieID,
		MovieTitle:  req.MovieTitle,
		ShowtimeID:  req.ShowtimeID,
		Showtime:    req.Showtime,
		Seats:       req.Seats,
		TotalAmount: req.TotalAmount,
		Status:      model.BookingPending,
	}
	if err := s.store.Create(ctx, b); err != nil {
		// The seats were claimed but the booking never existed; hand
		// them back so they do not stay stuck in pending.
		if relErr := s.ledger.Release(ctx, req.ShowtimeID, numbers); relErr != nil {
			log.Printf("booking-service: release after failed booking insert (showtime %s) failed: %v",
				req.ShowtimeID, relErr)
		}
		return nil, err
	}

	s.publishBookingCreated(b)

	return b, nil
}

// UpdateStatus advances a booking through its state machine. Backward
// transitions are rejected with ErrInvalidState. When the booking
// reaches confirmed, a seats_booked event is published best-effort.
func (s *BookingService) UpdateStatus(ctx context.Context, id, status string) error {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !model.ValidBookingTransition(b.Status, status) {
		return repository.ErrInvalidState
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if status == model.BookingConfirmed {
		s.publishSeatsBooked(b)
	}
	return nil
}

// GetBooking returns one booking by id.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	return s.store.GetByID(ctx, id)
}

// ListByCustomer returns the customer's bookings.
func (s *BookingService) ListByCustomer(ctx context.Context, customerID string) ([]model.Booking, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

// Wait blocks until all in-flight side effects have finished. Called
// during shutdown and by tests.
func (s *BookingService) Wait() {
	s.wg.Wait()
}

func (s *BookingService) publishBookingCreated(b *model.Booking) {
	ev := queue.BookingCreatedEvent{
		ID:          b.ID,
		CustomerID:  b.CustomerID,
		MovieID:     b.MovieID,
		MovieTitle:  b.MovieTitle,
		ShowtimeID:  b.ShowtimeID,
		Showtime:    b.Showtime,
		TotalAmount: b.TotalAmount,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
	}
	for _, seat := range b.Seats {
		ev.Seats = append(ev.Seats, queue.BookingEventSeat{SeatID: seat.SeatID, SeatNumber: seat.SeatNumber})
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("booking-service: marshal booking_created: %v", err)
		return
	}
	s.async(func(ctx context.Context) {
		if err := s.bus.Send(ctx, queue.BookingCreatedQueue, body); err != nil {
			log.Printf("booking-service: publish booking_created for %s failed: %v", ev.ID, err)
		}
	})
}

func (s *BookingService) publishSeatsBooked(b *model.Booking) {
	ev := queue.SeatsBookedEvent{
		ShowtimeID: b.ShowtimeID,
		BookedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, seat := range b.Seats {
		ev.Seats = append(ev.Seats, seat.SeatNumber)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("booking-service: marshal seats_booked: %v", err)
		return
	}
	s.async(func(ctx context.Context) {
		if err := s.bus.Send(ctx, queue.SeatsBookedQueue, body); err != nil {
			log.Printf("booking-service: publish seats_booked for %s failed: %v", b.ID, err)
		}
	})
}

// async runs fn detached from the request, bounded by
// sideEffectTimeout and tracked for Wait.
func (s *BookingService) async(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}
