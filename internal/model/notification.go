package model

import "time"

// Notification is an inbox row for a user. Rows are written by the
// sale-events queue consumer, never directly by the lifecycle service, so
// a broker outage delays notifications without affecting transitions.
type Notification struct {
	ID        uint64    // notifications.id
	UserID    uint64    // notifications.user_id (recipient)
	SaleID    uint64    // notifications.sale_id
	EventType string    // notifications.event_type (e.g. "sale.reserved")
	Message   string    // notifications.message (human-readable)
	Read      bool      // notifications.is_read
	CreatedAt time.Time // notifications.created_at
}
