// Package notifier consumes booking and payment events from the bus
// and turns them into persisted notifications, pushed to live
// connections when the customer is online. Persistence happens before
// the source message is deleted, so a crash mid-batch loses no
// notifications; it may produce a duplicate, which the deduper
// absorbs.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
)

// errDrop marks a message that can never be processed (malformed or
// missing its addressee). Such messages are deleted rather than left
// to redeliver forever.
var errDrop = errors.New("message dropped")

const (
	receiveMax  = 10
	receiveWait = 5 // seconds
)

// NotificationStore is the persistence surface the processor needs.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

// Deliverer pushes a notification to the customer's live connections.
// Delivery is best-effort; the pending row is the durable copy.
type Deliverer interface {
	Deliver(customerID string, n model.Notification)
}

// Processor runs one polling loop per source queue. Processing can be
// toggled at runtime through the admin surface; while disabled the
// loops stay alive but poll nothing, so messages simply accumulate on
// the broker.
type Processor struct {
	bus       queue.Bus
	store     NotificationStore
	deliverer Deliverer
	dedupe    Deduper // nil disables dedupe; duplicates are then accepted

	enabled atomic.Bool
	wg      sync.WaitGroup

	// Sleep intervals between polls, overridable for tests.
	BusyInterval     time.Duration
	IdleInterval     time.Duration
	ErrorInterval    time.Duration
	DisabledInterval time.Duration
}

// NewProcessor constructs a Processor in the enabled state.
func NewProcessor(bus queue.Bus, store NotificationStore, deliverer Deliverer, dedupe Deduper) *Processor {
	p := &Processor{
		bus:              bus,
		store:            store,
		deliverer:        deliverer,
		dedupe:           dedupe,
		BusyInterval:     time.Second,
		IdleInterval:     5 * time.Second,
		ErrorInterval:    5 * time.Second,
		DisabledInterval: 10 * time.Second,
	}
	p.enabled.Store(true)
	return p
}

// SetEnabled toggles queue processing at runtime.
func (p *Processor) SetEnabled(on bool) {
	p.enabled.Store(on)
	if on {
		log.Println("notifier: queue processing enabled")
	} else {
		log.Println("notifier: queue processing disabled")
	}
}

// Enabled reports whether the pollers are currently consuming.
func (p *Processor) Enabled() bool {
	return p.enabled.Load()
}

// Run starts one poller per source queue and blocks until ctx is
// cancelled and both pollers have drained.
func (p *Processor) Run(ctx context.Context) {
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.poll(ctx, queue.BookingCreatedQueue, p.processBooking)
	}()
	go func() {
		defer p.wg.Done()
		p.poll(ctx, queue.PaymentProcessedQueue, p.processPayment)
	}()
	p.wg.Wait()
}

func (p *Processor) poll(ctx context.Context, queueName string, handle func(context.Context, queue.Message) error) {
	log.Printf("notifier: polling %s", queueName)
	for {
		if ctx.Err() != nil {
			log.Printf("notifier: poller for %s stopped", queueName)
			return
		}
		if !p.enabled.Load() {
			sleep(ctx, p.DisabledInterval)
			continue
		}
		msgs, err := p.bus.Receive(ctx, queueName, receiveMax, receiveWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("notifier: receive from %s failed: %v", queueName, err)
			sleep(ctx, p.ErrorInterval)
			continue
		}
		for _, msg := range msgs {
			err := handle(ctx, msg)
			if err != nil && !errors.Is(err, errDrop) {
				// Leave the message for redelivery.
				log.Printf("notifier: processing message from %s failed: %v", queueName, err)
				continue
			}
			if err != nil {
				log.Printf("notifier: dropping message from %s: %v", queueName, err)
			}
			if err := p.bus.Delete(ctx, msg); err != nil {
				log.Printf("notifier: delete from %s failed: %v", queueName, err)
			}
		}
		if len(msgs) > 0 {
			sleep(ctx, p.BusyInterval)
		} else {
			sleep(ctx, p.IdleInterval)
		}
	}
}

func (p *Processor) processBooking(ctx context.Context, msg queue.Message) error {
	var ev queue.BookingCreatedEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		return fmt.Errorf("%w: decode booking event: %v", errDrop, err)
	}
	if ev.CustomerID == "" {
		return fmt.Errorf("%w: booking event %s has no customer_id", errDrop, ev.ID)
	}
	key := "booking:" + ev.ID
	if p.seen(ctx, key) {
		return nil
	}
	n := &model.Notification{
		CustomerID: ev.CustomerID,
		Type:       model.NotificationBooking,
		Content:    renderBookingContent(ev),
		Status:     model.NotificationPending,
		BookingID:  ev.ID,
	}
	if err := p.store.Create(ctx, n); err != nil {
		return fmt.Errorf("persist booking notification: %w", err)
	}
	p.mark(ctx, key)
	p.deliverer.Deliver(ev.CustomerID, *n)
	return nil
}

func (p *Processor) processPayment(ctx context.Context, msg queue.Message) error {
	var ev queue.PaymentProcessedEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		return fmt.Errorf("%w: decode payment event: %v", errDrop, err)
	}
	if ev.CustomerID == "" {
		return fmt.Errorf("%w: payment event %s has no customer_id", errDrop, ev.ID)
	}
	key := "payment:" + ev.ID + ":" + ev.Status
	if p.seen(ctx, key) {
		return nil
	}
	n := &model.Notification{
		CustomerID: ev.CustomerID,
		Type:       model.NotificationPayment,
		Content:    renderPaymentContent(ev),
		Status:     model.NotificationPending,
		BookingID:  ev.BookingID,
		PaymentID:  ev.ID,
	}
	if err := p.store.Create(ctx, n); err != nil {
		return fmt.Errorf("persist payment notification: %w", err)
	}
	p.mark(ctx, key)
	p.deliverer.Deliver(ev.CustomerID, *n)
	return nil
}

// seen consults the deduper. Errors degrade open: a redelivered
// duplicate is better than a lost notification.
func (p *Processor) seen(ctx context.Context, key string) bool {
	if p.dedupe == nil {
		return false
	}
	dup, err := p.dedupe.Seen(ctx, key)
	if err != nil {
		log.Printf("notifier: dedupe check for %s failed: %v", key, err)
		return false
	}
	if dup {
		log.Printf("notifier: skipping duplicate event %s", key)
	}
	return dup
}

// mark records the key once the notification is safely persisted. A
// failed mark merely risks one duplicate on redelivery, so it is
// logged and ignored.
func (p *Processor) mark(ctx context.Context, key string) {
	if p.dedupe == nil {
		return
	}
	if err := p.dedupe.Mark(ctx, key); err != nil {
		log.Printf("notifier: dedupe mark for %s failed: %v", key, err)
	}
}

func renderBookingContent(ev queue.BookingCreatedEvent) string {
	numbers := make([]string, 0, len(ev.Seats))
	for _, s := range ev.Seats {
		numbers = append(numbers, s.SeatNumber)
	}
	return fmt.Sprintf("Your booking for %s at %s is confirmed. Seats: %s. Total: %.2f.",
		ev.MovieTitle, ev.Showtime, strings.Join(numbers, ", "), ev.TotalAmount)
}

func renderPaymentContent(ev queue.PaymentProcessedEvent) string {
	if ev.Status == model.PaymentRefunded {
		return fmt.Sprintf("Your payment of %.2f for booking %s has been refunded. Reference: %s.",
			ev.Amount, ev.BookingID, ev.RefundID)
	}
	return fmt.Sprintf("Your payment of %.2f for booking %s has been processed successfully.",
		ev.Amount, ev.BookingID)
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
