package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// BookingRepo provides data access for bookings and their seat lists.
// The seat list is written once at creation time and never mutated
// afterwards.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo bound to the provided
// database.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// Create inserts a booking together with its seat entries in one
// transaction. On success the booking's ID and CreatedAt are
// populated.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	b.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO bookings (id, customer_id, movie_id, movie_title, showtime_id, showtime, total_amount, status, created_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins,
		b.ID, b.CustomerID, b.MovieID, b.MovieTitle, b.ShowtimeID, b.Showtime,
		b.TotalAmount, b.Status, touchTime(b.CreatedAt),
	); err != nil {
		return err
	}

	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_id, seat_id, seat_number) VALUES `
		args := make([]interface{}, 0, len(b.Seats)*3)
		for i, s := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, b.ID, s.SeatID, s.SeatNumber)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID retrieves a booking and its seat list.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	const q = `SELECT id, customer_id, movie_id, movie_title, showtime_id, showtime, total_amount, status, created_at
	           FROM bookings WHERE id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&b.ID, &b.CustomerID, &b.MovieID, &b.MovieTitle, &b.ShowtimeID, &b.Showtime,
			&b.TotalAmount, &b.Status, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	seats, err := r.seatsFor(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Seats = seats
	return &b, nil
}

// ListByCustomer returns all bookings of a customer, newest first,
// with their seat lists attached.
func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID string) ([]model.Booking, error) {
	const q = `SELECT id, customer_id, movie_id, movie_title, showtime_id, showtime, total_amount, status, created_at
	           FROM bookings WHERE customer_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.MovieID, &b.MovieTitle, &b.ShowtimeID, &b.Showtime,
			&b.TotalAmount, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		seats, err := r.seatsFor(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Seats = seats
	}
	return result, nil
}

// UpdateStatus sets a booking's status. Same-value updates are
// treated as no-ops so redelivered transitions stay idempotent.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *BookingRepo) seatsFor(ctx context.Context, bookingID string) ([]model.BookingSeat, error) {
	const q = `SELECT seat_id, seat_number FROM booking_seats WHERE booking_id = ? ORDER BY seat_number`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []model.BookingSeat
	for rows.Next() {
		var s model.BookingSeat
		if err := rows.Scan(&s.SeatID, &s.SeatNumber); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
