package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

type fakePusher struct {
	mu     sync.Mutex
	events []string
	loads  []interface{}
	err    error
}

func (f *fakePusher) Push(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	f.loads = append(f.loads, payload)
	return nil
}

func (f *fakePusher) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type fakeNotificationStore struct {
	pending map[string][]model.Notification
	read    []string
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{pending: make(map[string][]model.Notification)}
}

func (f *fakeNotificationStore) ListPending(ctx context.Context, customerID string) ([]model.Notification, error) {
	return f.pending[customerID], nil
}

func (f *fakeNotificationStore) UpdateStatus(ctx context.Context, id, status string) error {
	if id == "missing" {
		return repository.ErrNotFound
	}
	f.read = append(f.read, id+"="+status)
	return nil
}

func TestJoinReplaysPendingBacklog(t *testing.T) {
	store := newFakeNotificationStore()
	store.pending["cust-1"] = []model.Notification{
		{ID: "n1", CustomerID: "cust-1", Status: model.NotificationPending},
		{ID: "n2", CustomerID: "cust-1", Status: model.NotificationPending},
	}
	reg := NewRegistry(store)
	p := &fakePusher{}

	require.NoError(t, reg.Join(context.Background(), p, "cust-1"))

	// Confirmation first, then the whole backlog as one batch.
	require.Equal(t, []string{EventJoined, EventUnreadNotifications}, p.got())
	batch, ok := p.loads[1].([]model.Notification)
	require.True(t, ok)
	assert.Len(t, batch, 2)
}

func TestJoinWithoutBacklogSendsNoBatch(t *testing.T) {
	reg := NewRegistry(newFakeNotificationStore())
	p := &fakePusher{}

	require.NoError(t, reg.Join(context.Background(), p, "cust-1"))
	assert.Equal(t, []string{EventJoined}, p.got())
}

func TestDeliverFansOutToAllConnections(t *testing.T) {
	reg := NewRegistry(newFakeNotificationStore())
	ctx := context.Background()

	first, second, other := &fakePusher{}, &fakePusher{}, &fakePusher{}
	require.NoError(t, reg.Join(ctx, first, "cust-1"))
	require.NoError(t, reg.Join(ctx, second, "cust-1"))
	require.NoError(t, reg.Join(ctx, other, "cust-2"))

	reg.Deliver("cust-1", model.Notification{ID: "n1", CustomerID: "cust-1"})

	assert.Contains(t, first.got(), EventNotification)
	assert.Contains(t, second.got(), EventNotification)
	assert.NotContains(t, other.got(), EventNotification)
}

func TestDeliverWithNoConnectionsIsSilent(t *testing.T) {
	reg := NewRegistry(newFakeNotificationStore())
	// Nothing connected: the notification just stays pending in
	// storage. Must not panic or block.
	reg.Deliver("cust-1", model.Notification{ID: "n1"})
}

func TestLeaveStopsDelivery(t *testing.T) {
	reg := NewRegistry(newFakeNotificationStore())
	p := &fakePusher{}
	require.NoError(t, reg.Join(context.Background(), p, "cust-1"))

	reg.Leave(p)
	reg.Deliver("cust-1", model.Notification{ID: "n1"})

	assert.NotContains(t, p.got(), EventNotification)
	customers, connections := reg.Stats()
	assert.Empty(t, customers)
	assert.Zero(t, connections)
}

func TestMarkRead(t *testing.T) {
	store := newFakeNotificationStore()
	reg := NewRegistry(store)

	require.NoError(t, reg.MarkRead(context.Background(), "n1"))
	assert.Equal(t, []string{"n1=read"}, store.read)

	err := reg.MarkRead(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStatsCountsRoomsAndConnections(t *testing.T) {
	reg := NewRegistry(newFakeNotificationStore())
	ctx := context.Background()
	require.NoError(t, reg.Join(ctx, &fakePusher{}, "cust-1"))
	require.NoError(t, reg.Join(ctx, &fakePusher{}, "cust-1"))
	require.NoError(t, reg.Join(ctx, &fakePusher{}, "cust-2"))

	customers, connections := reg.Stats()
	assert.ElementsMatch(t, []string{"cust-1", "cust-2"}, customers)
	assert.Equal(t, 3, connections)
}
