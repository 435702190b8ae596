package model

import "time"

// CancelledSale is the audit row written when a live sale is cancelled.
// It captures the full pre-cancel state of the sale together with the
// supplied reason and the status the sale held at cancellation time. The
// live sales row is deleted in the same transaction, so this table is the
// only record of cancelled listings.
type CancelledSale struct {
	ID               uint64     // cancelled_sales.id
	SaleID           uint64     // cancelled_sales.sale_id (id of the removed row)
	SellerID         uint64     // cancelled_sales.seller_id
	BuyerID          *uint64    // cancelled_sales.buyer_id (kept for history)
	CategoryID       uint64     // cancelled_sales.category_id
	LanguageID       uint64     // cancelled_sales.language_id
	CardName         string     // cancelled_sales.card_name
	PriceCents       uint32     // cancelled_sales.price_cents
	Quantity         int        // cancelled_sales.quantity
	ReservedQuantity *int       // cancelled_sales.reserved_quantity
	ParentSaleID     *uint64    // cancelled_sales.parent_sale_id
	OriginalStatus   SaleStatus // cancelled_sales.original_status
	Reason           string     // cancelled_sales.reason
	CancelledAt      time.Time  // cancelled_sales.cancelled_at
}
