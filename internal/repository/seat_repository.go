package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// SeatRepo is the seat ledger. It owns per-showtime seat availability
// and is the only component allowed to mutate seat status. The
// authoritative double-booking guard is Reserve: a single conditional
// UPDATE whose filter requires status = available at write time, so
// two concurrent reservations of the same seat can never both
// succeed. CheckAvailable exists for pre-flight validation and UI
// feedback; it is advisory, never authoritative.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// defaultRows is the seat grid provisioned when no explicit layout is
// requested: rows A-E with ten seats each.
var defaultRows = []string{"A", "B", "C", "D", "E"}

// ProvisionShowtime creates the seat grid for a showtime. When seats
// already exist for the showtime nothing is inserted and the existing
// count is returned, so the call is safe to repeat.
func (r *SeatRepo) ProvisionShowtime(ctx context.Context, showtimeID string, totalSeats int) (int, error) {
	var existing int
	const countQ = `SELECT COUNT(*) FROM seats WHERE showtime_id = ?`
	if err := r.db.QueryRowContext(ctx, countQ, showtimeID).Scan(&existing); err != nil {
		return 0, err
	}
	if existing > 0 {
		return existing, nil
	}

	var numbers []string
	if totalSeats > 0 {
		for i := 1; i <= totalSeats; i++ {
			numbers = append(numbers, fmt.Sprintf("A%d", i))
		}
	} else {
		for _, row := range defaultRows {
			for n := 1; n <= 10; n++ {
				numbers = append(numbers, fmt.Sprintf("%s%d", row, n))
			}
		}
	}

	query := `INSERT INTO seats (id, showtime_id, seat_number, status) VALUES `
	args := make([]interface{}, 0, len(numbers)*4)
	for i, num := range numbers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, uuid.NewString(), showtimeID, num, model.SeatAvailable)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return 0, err
	}
	return len(numbers), nil
}

// GetByID retrieves a single seat.
func (r *SeatRepo) GetByID(ctx context.Context, id string) (*model.Seat, error) {
	const q = `SELECT id, showtime_id, seat_number, status, COALESCE(booking_id, ''), created_at
	           FROM seats WHERE id = ?`
	var s model.Seat
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&s.ID, &s.ShowtimeID, &s.SeatNumber, &s.Status, &s.BookingID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByShowtime retrieves all seats of a showtime ordered by seat
// number.
func (r *SeatRepo) ListByShowtime(ctx context.Context, showtimeID string) ([]model.Seat, error) {
	const q = `SELECT id, showtime_id, seat_number, status, COALESCE(booking_id, ''), created_at
	           FROM seats
	           WHERE showtime_id = ?
	           ORDER BY seat_number`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.SeatNumber, &s.Status, &s.BookingID, &s.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus sets the status of a single seat. Setting the status a
// seat already has is a no-op, not an error, so redelivered updates
// stay idempotent.
func (r *SeatRepo) UpdateStatus(ctx context.Context, seatID, status string) error {
	const q = `UPDATE seats SET status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, seatID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows for a same-value update;
		// distinguish that from a missing seat.
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM seats WHERE id = ?`, seatID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// CheckAvailable verifies that every requested seat exists for the
// showtime with status exactly available. The first mismatch aborts
// with a SeatUnavailableError naming the offending seat; the caller
// must abort the whole booking, never partially proceed.
func (r *SeatRepo) CheckAvailable(ctx context.Context, showtimeID string, seatNumbers []string) error {
	if len(seatNumbers) == 0 {
		return nil
	}
	q := `SELECT seat_number FROM seats
	      WHERE showtime_id = ? AND status = ? AND seat_number IN (` + placeholders(len(seatNumbers)) + `)`
	args := []interface{}{showtimeID, model.SeatAvailable}
	for _, num := range seatNumbers {
		args = append(args, num)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	available := make(map[string]struct{}, len(seatNumbers))
	for rows.Next() {
		var num string
		if err := rows.Scan(&num); err != nil {
			return err
		}
		available[num] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, num := range seatNumbers {
		if _, ok := available[num]; !ok {
			return &SeatUnavailableError{SeatNumber: num}
		}
	}
	return nil
}

// Reserve performs the conditional bulk status change available ->
// newStatus as a test-and-set: the UPDATE only touches rows whose
// status is still available at write time, so two concurrent
// reservations of the same seat can never both flip it. The statement
// runs in a transaction that commits only when every requested seat
// flipped; a partial match rolls back, leaving the ledger untouched.
// The returned count is how many seats matched, so callers treat a
// count below len(seatNumbers) as losing the race, with nothing to
// compensate.
func (r *SeatRepo) Reserve(ctx context.Context, showtimeID string, seatNumbers []string, newStatus string) (int64, error) {
	if len(seatNumbers) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	q := `UPDATE seats SET status = ?
	      WHERE showtime_id = ? AND status = ? AND seat_number IN (` + placeholders(len(seatNumbers)) + `)`
	args := []interface{}{newStatus, showtimeID, model.SeatAvailable}
	for _, num := range seatNumbers {
		args = append(args, num)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if updated != int64(len(seatNumbers)) {
		return updated, nil
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return updated, nil
}

// Release forces seats back to available regardless of their current
// status and clears any booking reference. Used for cancellation and
// expiry.
func (r *SeatRepo) Release(ctx context.Context, showtimeID string, seatNumbers []string) error {
	if len(seatNumbers) == 0 {
		return nil
	}
	q := `UPDATE seats SET status = ?, booking_id = NULL
	      WHERE showtime_id = ? AND seat_number IN (` + placeholders(len(seatNumbers)) + `)`
	args := []interface{}{model.SeatAvailable, showtimeID}
	for _, num := range seatNumbers {
		args = append(args, num)
	}
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// placeholders builds "?, ?, ?" for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// touchTime is a small helper kept close to the queries that need a
// normalised UTC timestamp for MySQL DATETIME columns.
func touchTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
