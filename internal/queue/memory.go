package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v3"
)

// MemoryBus is an in-process Bus used for local development and
// tests.  It models the same at-least-once contract as the broker: a
// received message becomes invisible for a visibility window and
// reappears unless it is deleted in time.
type MemoryBus struct {
	visibility time.Duration

	mu     sync.Mutex
	queues map[string][]*memMessage
}

type memMessage struct {
	body           []byte
	handle         string // current receipt handle, empty when visible
	invisibleUntil time.Time
}

// NewMemoryBus returns a MemoryBus whose received messages reappear
// after the given visibility window unless deleted.
func NewMemoryBus(visibility time.Duration) *MemoryBus {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &MemoryBus{
		visibility: visibility,
		queues:     make(map[string][]*memMessage),
	}
}

// Send appends a copy of body to the named queue.
func (b *MemoryBus) Send(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	b.queues[queue] = append(b.queues[queue], &memMessage{body: cp})
	return nil
}

// Receive returns up to max currently visible messages, waiting up to
// wait seconds for the first one.  Each returned message gets a fresh
// receipt handle and is hidden for the visibility window.
func (b *MemoryBus) Receive(ctx context.Context, queue string, max int, wait int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.Now().Add(time.Duration(wait) * time.Second)
	for {
		if msgs := b.take(queue, max); len(msgs) > 0 {
			return msgs, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (b *MemoryBus) take(queue string, max int) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	var out []Message
	for _, m := range b.queues[queue] {
		if len(out) >= max {
			break
		}
		if m.invisibleUntil.After(now) {
			continue
		}
		m.handle = shortuuid.New()
		m.invisibleUntil = now.Add(b.visibility)
		out = append(out, Message{Body: m.body, ReceiptHandle: m.handle, SourceQueue: queue})
	}
	return out
}

// Delete removes the message identified by the receipt handle.  A
// handle whose visibility window already lapsed is rejected, since
// the message may have been handed to another consumer.
func (b *MemoryBus) Delete(ctx context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queues[msg.SourceQueue]
	for i, m := range q {
		if m.handle == msg.ReceiptHandle && m.invisibleUntil.After(time.Now()) {
			b.queues[msg.SourceQueue] = append(q[:i], q[i+1:]...)
			return nil
		}
	}
	return errors.New("unknown receipt handle")
}

// Len reports the number of messages, visible or not, in a queue.
func (b *MemoryBus) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue])
}
