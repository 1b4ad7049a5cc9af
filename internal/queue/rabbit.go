package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v3"
	amqp "github.com/rabbitmq/amqp091-go"
)

// dialAttempts and dialBackoff control the startup retry policy for
// producers: a fixed ceiling of attempts with a jittered backoff.
// Consumers never rely on this; they degrade to a longer poll
// interval on runtime errors instead of failing outright.
const (
	dialAttempts = 5
	dialBackoff  = 500 * time.Millisecond
)

// RabbitBus implements Bus on top of RabbitMQ.  Queues are declared
// durable and messages are published persistent, so the broker keeps
// undelivered work across restarts.  Receive performs synchronous
// basic.get polls and hands out receipt handles; Delete acks the
// corresponding delivery.  Deliveries that are never deleted are
// requeued by the broker when the channel closes, which is what gives
// the bus its at-least-once behaviour.
type RabbitBus struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	pending  map[string]amqp.Delivery // receipt handle -> unacked delivery
}

// NewRabbitBus dials the broker, retrying up to dialAttempts times
// with a jittered backoff before giving up.
func NewRabbitBus(url string) (*RabbitBus, error) {
	b := &RabbitBus{
		url:      url,
		declared: make(map[string]bool),
		pending:  make(map[string]amqp.Delivery),
	}
	var err error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		if err = b.connectLocked(); err == nil {
			return b, nil
		}
		sleep := dialBackoff + time.Duration(rand.Int63n(int64(dialBackoff)))
		log.Printf("bus: dial attempt %d/%d failed: %v; retrying in %s", attempt, dialAttempts, err, sleep)
		time.Sleep(sleep)
	}
	return nil, fmt.Errorf("dial broker after %d attempts: %w", dialAttempts, err)
}

// connectLocked (re)establishes the connection and channel.  The
// caller must hold mu, except during construction.
func (b *RabbitBus) connectLocked() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	b.conn = conn
	b.ch = ch
	b.declared = make(map[string]bool)
	// Receipt handles from the old channel are void: the broker
	// requeues their deliveries, so redelivery covers them.
	b.pending = make(map[string]amqp.Delivery)
	return nil
}

// channel returns a usable channel, reconnecting if the previous one
// was lost.
func (b *RabbitBus) channel() (*amqp.Channel, error) {
	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}
	if err := b.connectLocked(); err != nil {
		return nil, fmt.Errorf("reconnect broker: %w", err)
	}
	return b.ch, nil
}

// declare makes sure the named queue exists.  Declaration is
// idempotent and cached per connection.
func (b *RabbitBus) declare(ch *amqp.Channel, queue string) error {
	if b.declared[queue] {
		return nil
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", queue, err)
	}
	b.declared[queue] = true
	return nil
}

// Send publishes body on the named queue as a persistent message.
func (b *RabbitBus) Send(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.channel()
	if err != nil {
		return err
	}
	if err := b.declare(ch, queue); err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// Receive polls the queue with basic.get until either max messages
// have been collected, wait seconds have elapsed without a first
// message, or the context is cancelled.  Messages stay unacked until
// Delete is called with their receipt handle.
func (b *RabbitBus) Receive(ctx context.Context, queue string, max int, wait int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.Now().Add(time.Duration(wait) * time.Second)
	var out []Message
	for len(out) < max {
		if ctx.Err() != nil {
			return out, nil
		}
		d, ok, err := b.get(queue)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Empty queue: keep long-polling only while nothing has
			// been collected yet.
			if len(out) > 0 || !time.Now().Before(deadline) {
				break
			}
			select {
			case <-ctx.Done():
				return out, nil
			case <-time.After(250 * time.Millisecond):
			}
			continue
		}
		handle := shortuuid.New()
		b.mu.Lock()
		b.pending[handle] = d
		b.mu.Unlock()
		out = append(out, Message{Body: d.Body, ReceiptHandle: handle, SourceQueue: queue})
	}
	return out, nil
}

func (b *RabbitBus) get(queue string) (amqp.Delivery, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, err := b.channel()
	if err != nil {
		return amqp.Delivery{}, false, err
	}
	if err := b.declare(ch, queue); err != nil {
		return amqp.Delivery{}, false, err
	}
	d, ok, err := ch.Get(queue, false)
	if err != nil {
		return amqp.Delivery{}, false, fmt.Errorf("basic.get %s: %w", queue, err)
	}
	return d, ok, nil
}

// Delete acknowledges a previously received message.  A handle that
// is no longer known (e.g. after a reconnect) is reported as an
// error; the broker has already requeued the delivery in that case.
func (b *RabbitBus) Delete(ctx context.Context, msg Message) error {
	b.mu.Lock()
	d, ok := b.pending[msg.ReceiptHandle]
	if ok {
		delete(b.pending, msg.ReceiptHandle)
	}
	b.mu.Unlock()
	if !ok {
		return errors.New("unknown receipt handle")
	}
	if err := d.Ack(false); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (b *RabbitBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
