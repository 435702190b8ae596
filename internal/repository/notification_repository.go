package repository

import (
	"context"
	"database/sql"

	"github.com/tradebinder/card-market/internal/model"
)

// NotificationRepo provides data access to the notifications table.
// Writes come from the sale-events consumer; reads and the read-flag
// update come from the HTTP layer.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the given
// database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts an inbox row and populates the generated ID.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	const q = `INSERT INTO notifications (user_id, sale_id, event_type, message, is_read)
		VALUES (?,?,?,?,0)`
	res, err := r.db.ExecContext(ctx, q, n.UserID, n.SaleID, n.EventType, n.Message)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Notification, error) {
	const q = `SELECT id, user_id, sale_id, event_type, message, is_read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT 100`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.SaleID, &n.EventType, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flags a notification as read. The user id is part of the
// predicate so users cannot touch each other's inboxes; a miss surfaces
// as sql.ErrNoRows.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, notificationID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, notificationID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
