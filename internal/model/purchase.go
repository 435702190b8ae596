package model

import "time"

// Purchase is an immutable snapshot of the sale terms at the moment of
// fulfilment. It is written exactly once, inside the transaction that
// moves a sale to COMPLETED, and is never updated afterwards. The card
// terms are copied rather than referenced so that later edits to catalog
// rows cannot rewrite purchase history.
type Purchase struct {
	ID             uint64    // purchases.id
	SaleID         uint64    // purchases.sale_id
	BuyerID        uint64    // purchases.buyer_id
	SellerID       uint64    // purchases.seller_id
	CardName       string    // purchases.card_name
	CategoryID     uint64    // purchases.category_id
	LanguageID     uint64    // purchases.language_id
	UnitPriceCents uint32    // purchases.unit_price_cents
	Quantity       int       // purchases.quantity (units fulfilled)
	CreatedAt      time.Time // purchases.created_at
}
