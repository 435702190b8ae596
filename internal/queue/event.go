// Package queue defines the sale-event payload exchanged over the
// message broker and the background consumer that turns events into
// notification rows.
package queue

// SaleEventsQueue is the durable queue all lifecycle events flow through.
const SaleEventsQueue = "sale.events"

// SaleEvent is published after a sale transition commits. It carries
// enough context for the consumer to write a notification row without
// querying the sales table, which may no longer hold the row at all in
// the cancellation case.
type SaleEvent struct {
	EventType   string `json:"event_type"`
	RecipientID uint64 `json:"recipient_id"`
	SaleID      uint64 `json:"sale_id"`
	CardName    string `json:"card_name"`
	Quantity    int    `json:"quantity,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Message     string `json:"message"`
	OccurredAt  string `json:"occurred_at"`
}
