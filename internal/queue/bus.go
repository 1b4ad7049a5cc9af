// Package queue provides the at-least-once message bus used to carry
// booking and payment events between the orchestrators and the
// notification consumer.  A message is only removed from its queue by
// an explicit Delete; a crash between processing and Delete causes
// redelivery, so consumers must tolerate duplicates.
package queue

import "context"

// Queue names for the domain events exchanged over the bus.
const (
	BookingCreatedQueue   = "booking.created"
	PaymentProcessedQueue = "payment.processed"
	SeatsBookedQueue      = "seats.booked"
)

// Message is a transient envelope that exists only between Receive
// and Delete.  ReceiptHandle identifies the delivery to acknowledge;
// SourceQueue records where the message came from so Delete can be
// routed without extra bookkeeping by the caller.
type Message struct {
	Body          []byte
	ReceiptHandle string
	SourceQueue   string
}

// Bus is the queue abstraction shared by producers and consumers.
// Semantics are at-least-once and unordered.
type Bus interface {
	// Send enqueues a message body on the named queue.
	Send(ctx context.Context, queue string, body []byte) error
	// Receive fetches up to max messages, waiting at most wait for
	// the first one.  An empty slice with a nil error means the
	// queue was empty.
	Receive(ctx context.Context, queue string, max int, wait int) ([]Message, error)
	// Delete acknowledges a received message so it will not be
	// delivered again.
	Delete(ctx context.Context, msg Message) error
}
