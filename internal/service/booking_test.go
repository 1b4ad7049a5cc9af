package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

func bookingRequest(seats ...string) CreateBookingRequest {
	req := CreateBookingRequest{
		CustomerID:  "cust-1",
		MovieID:     "movie-1",
		MovieTitle:  "Heat",
		ShowtimeID:  "show-1",
		Showtime:    "2026-09-01T20:00:00Z",
		TotalAmount: float64(len(seats)) * 12.5,
	}
	for _, n := range seats {
		req.Seats = append(req.Seats, model.BookingSeat{SeatID: "seat-" + n, SeatNumber: n})
	}
	return req
}

func TestCreateBookingHappyPath(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add("show-1", "A1")
	ledger.add("show-1", "A2")
	store := newFakeBookingStore()
	bus := newRecordingBus()
	svc := NewBookingService(store, ledger, bus)

	b, err := svc.CreateBooking(context.Background(), bookingRequest("A1", "A2"))
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)
	assert.Equal(t, model.BookingPending, b.Status)

	svc.Wait()

	// booking_created went out with the denormalised display fields.
	require.Equal(t, 1, bus.count(queue.BookingCreatedQueue))
	var ev queue.BookingCreatedEvent
	require.NoError(t, json.Unmarshal(bus.last(queue.BookingCreatedQueue), &ev))
	assert.Equal(t, b.ID, ev.ID)
	assert.Equal(t, "Heat", ev.MovieTitle)
	assert.Len(t, ev.Seats, 2)

	// Both seats were claimed through the reservation before the
	// booking was written.
	assert.Equal(t, model.SeatPending, ledger.statusOf("show-1", "A1"))
	assert.Equal(t, model.SeatPending, ledger.statusOf("show-1", "A2"))
}

func TestCreateBookingUnavailableSeatAborts(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add("show-1", "A1")
	// A2 is never provisioned, so the reservation cannot cover the
	// whole request.
	store := newFakeBookingStore()
	bus := newRecordingBus()
	svc := NewBookingService(store, ledger, bus)

	_, err := svc.CreateBooking(context.Background(), bookingRequest("A1", "A2"))
	require.Error(t, err)

	var unavailable *repository.SeatUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "A2", unavailable.SeatNumber)
	assert.True(t, errors.Is(err, repository.ErrConflict))

	svc.Wait()
	assert.Empty(t, store.bookings)
	assert.Zero(t, bus.count(queue.BookingCreatedQueue))
	// The failed reservation left A1 untouched.
	assert.Equal(t, model.SeatAvailable, ledger.statusOf("show-1", "A1"))
}

func TestCreateBookingSurvivesBrokerOutage(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add("show-1", "A1")
	store := newFakeBookingStore()
	bus := newRecordingBus()
	bus.failing = true
	svc := NewBookingService(store, ledger, bus)

	b, err := svc.CreateBooking(context.Background(), bookingRequest("A1"))
	require.NoError(t, err)
	svc.Wait()

	// The booking stands even though the publish failed.
	stored, err := store.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, stored.Status)
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add("show-1", "A1")
	store := newFakeBookingStore()
	bus := newRecordingBus()
	svc := NewBookingService(store, ledger, bus)

	b, err := svc.CreateBooking(context.Background(), bookingRequest("A1"))
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(context.Background(), b.ID, model.BookingConfirmed))
	svc.Wait()
	assert.Equal(t, 1, bus.count(queue.SeatsBookedQueue))

	// Backward transition is rejected.
	err = svc.UpdateStatus(context.Background(), b.ID, model.BookingPending)
	assert.ErrorIs(t, err, repository.ErrInvalidState)

	// Repeating the current status is an idempotent no-op.
	assert.NoError(t, svc.UpdateStatus(context.Background(), b.ID, model.BookingConfirmed))
}

func TestUpdateStatusUnknownBooking(t *testing.T) {
	svc := NewBookingService(newFakeBookingStore(), newFakeLedger(), newRecordingBus())
	err := svc.UpdateStatus(context.Background(), "nope", model.BookingConfirmed)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateBookingReleasesSeatsWhenInsertFails(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add("show-1", "A1")
	store := newFakeBookingStore()
	store.createErr = errors.New("db down")
	svc := NewBookingService(store, ledger, newRecordingBus())

	_, err := svc.CreateBooking(context.Background(), bookingRequest("A1"))
	require.Error(t, err)
	svc.Wait()

	// The claimed seat went back to available instead of staying
	// stuck in pending with no booking behind it.
	assert.Equal(t, model.SeatAvailable, ledger.statusOf("show-1", "A1"))
}

func TestConcurrentCreateBookingsSingleWinner(t *testing.T) {
	// Several full bookings race for the same seat through the
	// orchestrator. Exactly one booking may be persisted; every loser
	// aborts with a conflict and writes nothing.
	ledger := newFakeLedger()
	ledger.add("show-1", "A1")
	store := newFakeBookingStore()
	bus := newRecordingBus()
	svc := NewBookingService(store, ledger, bus)

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateBooking(context.Background(), bookingRequest("A1"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	svc.Wait()

	var wins, conflicts int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, repository.ErrConflict)
		conflicts++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
	assert.Len(t, store.bookings, 1)
	assert.Equal(t, 1, bus.count(queue.BookingCreatedQueue))
}

func TestConcurrentBookingsSingleWinner(t *testing.T) {
	// Two bookings race for the same seat through the ledger's
	// test-and-set Reserve. Exactly one reservation wins.
	ledger := newFakeLedger()
	ledger.add("show-1", "A1")

	const racers = 8
	var wg sync.WaitGroup
	wins := make(chan int64, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := ledger.Reserve(context.Background(), "show-1", []string{"A1"}, model.SeatBooked)
			require.NoError(t, err)
			wins <- n
		}()
	}
	wg.Wait()
	close(wins)

	var total int64
	for n := range wins {
		total += n
	}
	assert.Equal(t, int64(1), total)
}
