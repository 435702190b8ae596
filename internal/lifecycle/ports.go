package lifecycle

import (
	"context"

	"github.com/tradebinder/card-market/internal/model"
)

// SaleTx is the transactional view of the sale store handed to the
// function passed to RunInTransaction. Every mutation performed through
// it commits or rolls back as one unit. FindForUpdate must acquire a
// row-level write lock held until the transaction ends, serialising
// concurrent transitions against the same sale.
//
// RecordPurchase and ArchiveCancelled belong to the purchase recorder
// and cancellation archive collaborators; they live on the transaction
// handle because their rows must never be orphaned relative to the
// status change they accompany.
type SaleTx interface {
	FindForUpdate(ctx context.Context, id uint64) (*model.Sale, error)
	Create(ctx context.Context, s *model.Sale) error
	Save(ctx context.Context, s *model.Sale) error
	Remove(ctx context.Context, id uint64) error
	AddQuantity(ctx context.Context, id uint64, delta int) error
	RecordPurchase(ctx context.Context, p *model.Purchase) error
	ArchiveCancelled(ctx context.Context, rec *model.CancelledSale) error
}

// SaleRepository is the durable store for sales. FindByID is a plain
// (unlocked) read used for reloads after commit and for transition
// queries. A missing sale surfaces as sql.ErrNoRows from either path.
type SaleRepository interface {
	RunInTransaction(ctx context.Context, fn func(tx SaleTx) error) error
	FindByID(ctx context.Context, id uint64) (*model.Sale, error)
}

// Event types emitted on successful transitions.
const (
	EventSaleReserved  = "sale.reserved"
	EventSaleShipped   = "sale.shipped"
	EventSaleDelivered = "sale.delivered"
	EventSaleCompleted = "sale.completed"
	EventSaleCancelled = "sale.cancelled"
)

// Metadata travels with a notification. Only the fields relevant to the
// event type are populated.
type Metadata struct {
	SaleID   uint64
	CardName string
	Quantity int
	Reason   string
	Message  string
}

// NotificationEmitter delivers a notification to a user. The contract is
/// fire-and-forget: the service invokes it only after a transaction has
// committed and ignores failures beyond logging them, so implementations
// must never block transitions on delivery problems.
type NotificationEmitter interface {
	Notify(ctx context.Context, userID uint64, eventType string, meta Metadata) error
}
