package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
)

// PaymentStore is the persistence surface for payments.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Payment, error)
	ListByBooking(ctx context.Context, bookingID string) ([]model.Payment, error)
	UpdateStatus(ctx context.Context, id, status string) error
	MarkRefunded(ctx context.Context, id, refundID string) error
}

// PaymentService implements the payment half of the saga. The gateway
// is simulated: a created payment completes synchronously. The
// payment row is the authoritative outcome; the booking and seat
// status updates that follow are independent best-effort steps, and a
// single failing seat never rolls back the payment.
type PaymentService struct {
	payments PaymentStore
	bookings BookingStore
	ledger   SeatLedger
	bus      queue.Bus

	wg sync.WaitGroup
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(payments PaymentStore, bookings BookingStore, ledger SeatLedger, bus queue.Bus) *PaymentService {
	return &PaymentService{payments: payments, bookings: bookings, ledger: ledger, bus: bus}
}

// CreatePaymentRequest carries the fields a client submits to pay for
// a booking. IdempotencyKey identifies the logical payment intent:
// retries carrying the same key return the original payment instead
// of charging twice.
type CreatePaymentRequest struct {
	BookingID      string  `json:"booking_id"`
	Amount         float64 `json:"amount"`
	PaymentMethod  string  `json:"payment_method"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// CreatePayment records a payment against an existing booking. The
// booking must exist (ErrNotFound otherwise). A replayed request, as
// detected by the idempotency key, returns the stored payment and
// runs no side effects. On a fresh payment the simulated gateway
// completes immediately, the payment_processed event is published
// best-effort and the booking plus its seats advance to paid.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*model.Payment, error) {
	b, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{
		BookingID:      b.ID,
		CustomerID:     b.CustomerID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		Status:         model.PaymentPending,
		IdempotencyKey: req.IdempotencyKey,
	}
	created, err := s.payments.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	if !created {
		// Duplicate of an already accepted intent: nothing new
		// happened, so no events and no status churn.
		return p, nil
	}

	// Simulated gateway: the charge succeeds synchronously.
	if err := s.payments.UpdateStatus(ctx, p.ID, model.PaymentCompleted); err != nil {
		return nil, err
	}
	p.Status = model.PaymentCompleted

	s.publishPaymentEvent(p)

	// Advance the rest of the saga off the critical path. Each step
	// is isolated: the payment stands even if the booking or a seat
	// fails to move.
	bookingID, seats, showtimeID := b.ID, b.Seats, b.ShowtimeID
	s.async(func(ctx context.Context) {
		if err := s.bookings.UpdateStatus(ctx, bookingID, model.BookingPaid); err != nil {
			log.Printf("payment-service: booking %s status update to paid failed: %v", bookingID, err)
		}
		for _, seat := range seats {
			if err := s.ledger.UpdateStatus(ctx, seat.SeatID, model.SeatPaid); err != nil {
				log.Printf("payment-service: seat %s (showtime %s) status update to paid failed: %v",
					seat.SeatID, showtimeID, err)
			}
		}
	})

	return p, nil
}

// Refund reverses a completed payment. It is bookkeeping only: a
// synthetic refund id is generated, the status flips to refunded and
// a refund event is published best-effort. A payment that is not
// completed yields ErrInvalidState.
func (s *PaymentService) Refund(ctx context.Context, paymentID string) (string, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return "", err
	}
	refundID := "REF_" + paymentID
	if err := s.payments.MarkRefunded(ctx, paymentID, refundID); err != nil {
		return "", err
	}
	p.Status = model.PaymentRefunded
	p.RefundID = refundID
	s.publishPaymentEvent(p)
	return refundID, nil
}

// UpdateStatus sets a payment's status directly. Moving to completed
// re-publishes the payment event, mirroring the behaviour consumers
// already rely on.
func (s *PaymentService) UpdateStatus(ctx context.Context, id, status string) error {
	if err := s.payments.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if status == model.PaymentCompleted {
		p, err := s.payments.GetByID(ctx, id)
		if err != nil {
			log.Printf("payment-service: reload payment %s after status update failed: %v", id, err)
			return nil
		}
		s.publishPaymentEvent(p)
	}
	return nil
}

// GetPayment returns one payment by id.
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

// ListByBooking returns all payments recorded against a booking.
func (s *PaymentService) ListByBooking(ctx context.Context, bookingID string) ([]model.Payment, error) {
	return s.payments.ListByBooking(ctx, bookingID)
}

// Wait blocks until all in-flight side effects have finished.
func (s *PaymentService) Wait() {
	s.wg.Wait()
}

func (s *PaymentService) publishPaymentEvent(p *model.Payment) {
	ev := queue.PaymentProcessedEvent{
		ID:         p.ID,
		BookingID:  p.BookingID,
		CustomerID: p.CustomerID,
		Amount:     p.Amount,
		Status:     p.Status,
		RefundID:   p.RefundID,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("payment-service: marshal payment_processed: %v", err)
		return
	}
	s.async(func(ctx context.Context) {
		if err := s.bus.Send(ctx, queue.PaymentProcessedQueue, body); err != nil {
			log.Printf("payment-service: publish payment_processed for %s failed: %v", ev.ID, err)
		}
	})
}

func (s *PaymentService) async(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}
