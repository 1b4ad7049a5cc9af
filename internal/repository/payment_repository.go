package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// PaymentRepo provides data access for payments. Creation is keyed on
// a client-generated idempotency key: retries of the same logical
// payment intent land on the existing row instead of producing
// duplicates, which matters because queue redelivery and background
// retries can replay the create.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo constructs a PaymentRepo bound to the provided
// database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// Create inserts the payment, upserting on the idempotency key when
// one is present. It returns true when a new row was written; when
// the key already exists, p is overwritten with the stored row and
// false is returned.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	p.CreatedAt = time.Now().UTC()

	if p.IdempotencyKey == "" {
		const ins = `INSERT INTO payments (id, booking_id, customer_id, amount, payment_method, status, created_at)
		             VALUES (?, ?, ?, ?, ?, ?, ?)`
		_, err := r.db.ExecContext(ctx, ins,
			p.ID, p.BookingID, p.CustomerID, p.Amount, p.PaymentMethod, p.Status, touchTime(p.CreatedAt))
		return err == nil, err
	}

	// idempotency_key has a unique index; the no-op update makes the
	// statement report zero affected rows for a replay.
	const ins = `INSERT INTO payments (id, booking_id, customer_id, amount, payment_method, status, idempotency_key, created_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	             ON DUPLICATE KEY UPDATE id = id`
	res, err := r.db.ExecContext(ctx, ins,
		p.ID, p.BookingID, p.CustomerID, p.Amount, p.PaymentMethod, p.Status, p.IdempotencyKey, touchTime(p.CreatedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	existing, err := r.getByKey(ctx, p.IdempotencyKey)
	if err != nil {
		return false, err
	}
	*p = *existing
	return false, nil
}

// GetByID retrieves a payment.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	const q = `SELECT id, booking_id, customer_id, amount, payment_method, status,
	                  COALESCE(refund_id, ''), COALESCE(idempotency_key, ''), created_at
	           FROM payments WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

func (r *PaymentRepo) getByKey(ctx context.Context, key string) (*model.Payment, error) {
	const q = `SELECT id, booking_id, customer_id, amount, payment_method, status,
	                  COALESCE(refund_id, ''), COALESCE(idempotency_key, ''), created_at
	           FROM payments WHERE idempotency_key = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, key))
}

func (r *PaymentRepo) scanOne(row *sql.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.CustomerID, &p.Amount, &p.PaymentMethod,
		&p.Status, &p.RefundID, &p.IdempotencyKey, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByBooking returns all payments recorded against a booking.
func (r *PaymentRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.Payment, error) {
	const q = `SELECT id, booking_id, customer_id, amount, payment_method, status,
	                  COALESCE(refund_id, ''), COALESCE(idempotency_key, ''), created_at
	           FROM payments WHERE booking_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.CustomerID, &p.Amount, &p.PaymentMethod,
			&p.Status, &p.RefundID, &p.IdempotencyKey, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus sets a payment's status. Same-value updates are
// no-ops.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payments SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM payments WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// MarkRefunded flips a completed payment to refunded and records the
// refund reference. The status filter makes the transition atomic:
// only a payment that is still completed can be refunded.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, id, refundID string) error {
	const q = `UPDATE payments SET status = ?, refund_id = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, model.PaymentRefunded, refundID, id, model.PaymentCompleted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var status string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = ?`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}
