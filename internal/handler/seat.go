package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// SeatHandler exposes the seat ledger over HTTP. The book endpoint is
// the authoritative reservation path: a single conditional update
// either flips every requested seat or none stay flipped.
type SeatHandler struct {
	seats *repository.SeatRepo
	bus   queue.Bus
}

// NewSeatHandler constructs a SeatHandler.
func NewSeatHandler(seats *repository.SeatRepo, bus queue.Bus) *SeatHandler {
	return &SeatHandler{seats: seats, bus: bus}
}

type seatBatchBody struct {
	ShowtimeID string   `json:"showtime_id"`
	Seats      []string `json:"seats"`
	Status     string   `json:"status"`
}

func (b seatBatchBody) validate(c echo.Context) error {
	if b.ShowtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
	}
	if len(b.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
	}
	return nil
}

// Provision handles POST /v1/seats/provision. It creates the seat
// grid for a showtime; re-provisioning an existing showtime is a
// no-op reported through the created count.
func (h *SeatHandler) Provision(c echo.Context) error {
	var body struct {
		ShowtimeID string `json:"showtime_id"`
		TotalSeats int    `json:"total_seats"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ShowtimeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
	}
	created, err := h.seats.ProvisionShowtime(c.Request().Context(), body.ShowtimeID, body.TotalSeats)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"showtime_id": body.ShowtimeID, "created": created})
}

// Get handles GET /v1/seats/:id.
func (h *SeatHandler) Get(c echo.Context) error {
	seat, err := h.seats.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, seat)
}

// ListByShowtime handles GET /v1/showtimes/:id/seats.
func (h *SeatHandler) ListByShowtime(c echo.Context) error {
	seats, err := h.seats.ListByShowtime(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": c.Param("id"), "seats": seats})
}

// UpdateStatus handles PUT /v1/seats/:id/status.
func (h *SeatHandler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}
	if err := h.seats.UpdateStatus(c.Request().Context(), c.Param("id"), body.Status); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": body.Status})
}

// Check handles POST /v1/seats/check. Advisory: a positive answer can
// be stale by the time the caller books.
func (h *SeatHandler) Check(c echo.Context) error {
	var body seatBatchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.validate(c); err != nil {
		return err
	}
	if err := h.seats.CheckAvailable(c.Request().Context(), body.ShowtimeID, body.Seats); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": true})
}

// Book handles POST /v1/seats/book. The conditional update is the
// double-booking guard: when fewer rows match than seats were asked
// for, another booking won the race, the reservation rolls back
// without touching any seat and the caller gets a 409. No
// compensating release happens here; seats held by other bookings
// are never disturbed.
func (h *SeatHandler) Book(c echo.Context) error {
	var body seatBatchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.validate(c); err != nil {
		return err
	}
	status := body.Status
	if status == "" {
		status = model.SeatBooked
	}
	ctx := c.Request().Context()
	reserved, err := h.seats.Reserve(ctx, body.ShowtimeID, body.Seats, status)
	if err != nil {
		return fail(c, err)
	}
	if reserved != int64(len(body.Seats)) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "one or more seats are no longer available"})
	}
	h.publishSeatsBooked(body.ShowtimeID, body.Seats)
	return c.JSON(http.StatusOK, echo.Map{"reserved": reserved})
}

// Release handles POST /v1/seats/release.
func (h *SeatHandler) Release(c echo.Context) error {
	var body seatBatchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.validate(c); err != nil {
		return err
	}
	if err := h.seats.Release(c.Request().Context(), body.ShowtimeID, body.Seats); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": len(body.Seats)})
}

func (h *SeatHandler) publishSeatsBooked(showtimeID string, seats []string) {
	ev := queue.SeatsBookedEvent{
		ShowtimeID: showtimeID,
		Seats:      seats,
		BookedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("seat-service: marshal seats_booked: %v", err)
		return
	}
	go func() {
		ctx, cancel := contextWithSideEffectTimeout()
		defer cancel()
		if err := h.bus.Send(ctx, queue.SeatsBookedQueue, payload); err != nil {
			log.Printf("seat-service: publish seats_booked for showtime %s failed: %v", showtimeID, err)
		}
	}()
}
