package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// fakeLedger implements SeatLedger in memory. Seats are keyed by
// showtime and number with a plain status map, and Reserve applies the
// same test-and-set rule as the real ledger.
type fakeLedger struct {
	mu      sync.Mutex
	status  map[string]string // "showtime/number" -> status
	flipped []string          // seat ids passed to UpdateStatus

	checkErr  error
	updateErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{status: make(map[string]string)}
}

func (f *fakeLedger) add(showtimeID, number string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[showtimeID+"/"+number] = model.SeatAvailable
}

func (f *fakeLedger) CheckAvailable(ctx context.Context, showtimeID string, seatNumbers []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return f.checkErr
	}
	for _, n := range seatNumbers {
		if f.status[showtimeID+"/"+n] != model.SeatAvailable {
			return &repository.SeatUnavailableError{SeatNumber: n}
		}
	}
	return nil
}

// Reserve mirrors the real ledger: the flip only commits when every
// requested seat is still available, otherwise nothing changes and
// the available count is returned.
func (f *fakeLedger) Reserve(ctx context.Context, showtimeID string, seatNumbers []string, newStatus string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var available int64
	for _, n := range seatNumbers {
		if f.status[showtimeID+"/"+n] == model.SeatAvailable {
			available++
		}
	}
	if available != int64(len(seatNumbers)) {
		return available, nil
	}
	for _, n := range seatNumbers {
		f.status[showtimeID+"/"+n] = newStatus
	}
	return available, nil
}

func (f *fakeLedger) Release(ctx context.Context, showtimeID string, seatNumbers []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range seatNumbers {
		f.status[showtimeID+"/"+n] = model.SeatAvailable
	}
	return nil
}

func (f *fakeLedger) UpdateStatus(ctx context.Context, seatID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.flipped = append(f.flipped, seatID+"="+status)
	return nil
}

func (f *fakeLedger) flips() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.flipped...)
}

func (f *fakeLedger) statusOf(showtimeID, number string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[showtimeID+"/"+number]
}

// fakeBookingStore keeps bookings in a map.
type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking

	createErr error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[string]*model.Booking)}
}

func (f *fakeBookingStore) Create(ctx context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	b.ID = uuid.NewString()
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingStore) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) ListByCustomer(ctx context.Context, customerID string) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.CustomerID == customerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	return nil
}

// fakePaymentStore mirrors the idempotency-key upsert of the real
// repository: a second Create with the same key reports created=false
// and loads the stored row.
type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
	byKey    map[string]string
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		payments: make(map[string]*model.Payment),
		byKey:    make(map[string]string),
	}
}

func (f *fakePaymentStore) Create(ctx context.Context, p *model.Payment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.IdempotencyKey != "" {
		if id, ok := f.byKey[p.IdempotencyKey]; ok {
			*p = *f.payments[id]
			return false, nil
		}
	}
	p.ID = uuid.NewString()
	cp := *p
	f.payments[p.ID] = &cp
	if p.IdempotencyKey != "" {
		f.byKey[p.IdempotencyKey] = p.ID
	}
	return true, nil
}

func (f *fakePaymentStore) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentStore) ListByBooking(ctx context.Context, bookingID string) ([]model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Payment
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	return nil
}

func (f *fakePaymentStore) MarkRefunded(ctx context.Context, id, refundID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != model.PaymentCompleted {
		return repository.ErrInvalidState
	}
	p.Status = model.PaymentRefunded
	p.RefundID = refundID
	return nil
}

// recordingBus captures published messages; failing makes every Send
// error, modelling a broker outage.
type recordingBus struct {
	mu      sync.Mutex
	sent    map[string][][]byte
	failing bool
}

func newRecordingBus() *recordingBus {
	return &recordingBus{sent: make(map[string][][]byte)}
}

func (b *recordingBus) Send(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return errors.New("broker unavailable")
	}
	b.sent[queue] = append(b.sent[queue], body)
	return nil
}

func (b *recordingBus) Receive(ctx context.Context, queueName string, max, wait int) ([]queue.Message, error) {
	return nil, nil
}

func (b *recordingBus) Delete(ctx context.Context, msg queue.Message) error { return nil }

func (b *recordingBus) count(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent[queue])
}

func (b *recordingBus) last(queue string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.sent[queue]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}
