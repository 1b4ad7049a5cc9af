// Package realtime tracks which live connections belong to which
// customer and pushes notifications to them. Delivery is not retried
// at the push layer: a customer with no live connection simply keeps
// the notification as pending in storage, and the backlog is replayed
// as one batch the next time they join. At-least-once delivery is
// achieved through persistence, not through redelivery of the push.
package realtime

import (
	"context"
	"log"
	"sync"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// Event names exchanged over the realtime channel.
const (
	EventJoined              = "joined"
	EventUnreadNotifications = "unread_notifications"
	EventNotification        = "notification"
	EventMarkedRead          = "notification_marked_read"
	EventError               = "error"
)

// Pusher is one live connection capable of receiving events. The
// registry holds pushers weakly: it never owns or closes the
// underlying transport.
type Pusher interface {
	Push(event string, payload interface{}) error
}

// NotificationStore is the slice of persistence the registry needs
// for replay-on-connect and read receipts.
type NotificationStore interface {
	ListPending(ctx context.Context, customerID string) ([]model.Notification, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// Registry maps customer ids to their live connections. A customer
// may hold several connections at once (multiple tabs); every one of
// them receives each push. The registry is in-process state scoped to
// a single instance: it is not shared across replicas, which is a
// known scaling limit of the design.
type Registry struct {
	store NotificationStore

	mu    sync.Mutex
	rooms map[string]map[Pusher]struct{}
}

// NewRegistry constructs a Registry backed by the given store.
func NewRegistry(store NotificationStore) *Registry {
	return &Registry{
		store: store,
		rooms: make(map[string]map[Pusher]struct{}),
	}
}

// Join adds the connection to the customer's room, confirms with a
// joined event and replays all currently pending notifications as a
// single unread_notifications batch. The replay covers the window in
// which the customer was offline when events fired.
func (r *Registry) Join(ctx context.Context, p Pusher, customerID string) error {
	r.mu.Lock()
	room, ok := r.rooms[customerID]
	if !ok {
		room = make(map[Pusher]struct{})
		r.rooms[customerID] = room
	}
	room[p] = struct{}{}
	r.mu.Unlock()

	if err := p.Push(EventJoined, map[string]string{"customer_id": customerID}); err != nil {
		log.Printf("realtime: joined push to customer %s failed: %v", customerID, err)
	}

	pending, err := r.store.ListPending(ctx, customerID)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		if err := p.Push(EventUnreadNotifications, pending); err != nil {
			log.Printf("realtime: unread replay to customer %s failed: %v", customerID, err)
		}
	}
	return nil
}

// Leave removes the connection from whichever room holds it. The
// reverse mapping is not indexed, so this is a scan; fine at the
// fleet sizes a single instance serves.
func (r *Registry) Leave(p Pusher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for customerID, room := range r.rooms {
		if _, ok := room[p]; ok {
			delete(room, p)
			if len(room) == 0 {
				delete(r.rooms, customerID)
			}
			return
		}
	}
}

// Deliver pushes the notification to every live connection of the
// customer. With no live connection the notification just stays
// pending in storage and will surface on the next Join.
func (r *Registry) Deliver(customerID string, n model.Notification) {
	r.mu.Lock()
	targets := make([]Pusher, 0, len(r.rooms[customerID]))
	for p := range r.rooms[customerID] {
		targets = append(targets, p)
	}
	r.mu.Unlock()

	if len(targets) == 0 {
		log.Printf("realtime: no active connections for customer %s", customerID)
		return
	}
	for _, p := range targets {
		if err := p.Push(EventNotification, n); err != nil {
			log.Printf("realtime: notification push to customer %s failed: %v", customerID, err)
		}
	}
}

// MarkRead flips a notification to read on behalf of a connection.
// The error (e.g. unknown id) is returned to the caller so it can be
// reported back over the channel rather than silently dropped.
func (r *Registry) MarkRead(ctx context.Context, notificationID string) error {
	return r.store.UpdateStatus(ctx, notificationID, model.NotificationRead)
}

// Stats reports the connected customers, used by the admin surface.
func (r *Registry) Stats() (customers []string, connections int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for customerID, room := range r.rooms {
		customers = append(customers, customerID)
		connections += len(room)
	}
	return customers, connections
}
