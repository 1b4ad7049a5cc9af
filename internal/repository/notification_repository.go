package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// NotificationRepo provides data access for notifications. Pending
// rows are the durable side of realtime delivery: a customer who was
// offline when an event fired gets the backlog replayed from here on
// the next connect.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo constructs a NotificationRepo bound to the
// provided database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create inserts a notification. On success its ID and CreatedAt are
// populated.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = model.NotificationPending
	}
	n.CreatedAt = time.Now().UTC()
	const ins = `INSERT INTO notifications (id, customer_id, type, content, status, booking_id, payment_id, created_at)
	             VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)`
	_, err := r.db.ExecContext(ctx, ins,
		n.ID, n.CustomerID, n.Type, n.Content, n.Status, n.BookingID, n.PaymentID, touchTime(n.CreatedAt))
	return err
}

// GetByID retrieves a notification.
func (r *NotificationRepo) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	const q = `SELECT id, customer_id, type, content, status,
	                  COALESCE(booking_id, ''), COALESCE(payment_id, ''), created_at
	           FROM notifications WHERE id = ?`
	var n model.Notification
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&n.ID, &n.CustomerID, &n.Type, &n.Content, &n.Status, &n.BookingID, &n.PaymentID, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByCustomer returns all notifications of a customer, newest
// first.
func (r *NotificationRepo) ListByCustomer(ctx context.Context, customerID string) ([]model.Notification, error) {
	const q = `SELECT id, customer_id, type, content, status,
	                  COALESCE(booking_id, ''), COALESCE(payment_id, ''), created_at
	           FROM notifications WHERE customer_id = ? ORDER BY created_at DESC`
	return r.list(ctx, q, customerID)
}

// ListPending returns the customer's undelivered notifications in
// creation order, ready to be replayed as one batch on connect.
func (r *NotificationRepo) ListPending(ctx context.Context, customerID string) ([]model.Notification, error) {
	const q = `SELECT id, customer_id, type, content, status,
	                  COALESCE(booking_id, ''), COALESCE(payment_id, ''), created_at
	           FROM notifications WHERE customer_id = ? AND status = ? ORDER BY created_at`
	return r.list(ctx, q, customerID, model.NotificationPending)
}

func (r *NotificationRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.Type, &n.Content, &n.Status,
			&n.BookingID, &n.PaymentID, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus sets a notification's status. Marking an already-read
// notification read again is a no-op; an unknown id is ErrNotFound.
func (r *NotificationRepo) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM notifications WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}
