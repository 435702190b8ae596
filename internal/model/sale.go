package model

import "time"

// SaleStatus enumerates the states a listing moves through. AVAILABLE is
// the initial state; COMPLETED and CANCELLED are terminal. Cancelled sales
// are archived into cancelled_sales and removed from the live table, so
// the CANCELLED value only appears in audit rows and transition rules.
type SaleStatus string

const (
	StatusAvailable SaleStatus = "AVAILABLE"
	StatusReserved  SaleStatus = "RESERVED"
	StatusShipped   SaleStatus = "SHIPPED"
	StatusDelivered SaleStatus = "DELIVERED"
	StatusCompleted SaleStatus = "COMPLETED"
	StatusCancelled SaleStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s SaleStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Role describes who an actor is relative to a particular sale. Roles are
// resolved per sale, not per account: the same user can be a seller on one
// listing and a buyer on another.
type Role string

const (
	RoleSeller Role = "SELLER"
	RoleBuyer  Role = "BUYER"
	RoleSystem Role = "SYSTEM"
	RoleNone   Role = ""
)

// Sale mirrors the 'sales' table: a listing of one or more identical
// units of a card offered by a seller.
//
// Quantity is the remaining unit count and never exceeds
// OriginalQuantity, which is frozen at creation. ReservedQuantity is set
// when a buyer reserves the sale and is the authoritative amount recorded
// into the purchase snapshot at completion. ParentSaleID links a sale that
// was carved off another listing's remaining stock during a partial
// reservation; cancelling such a sale returns its quantity to the parent.
type Sale struct {
	ID               uint64     // sales.id
	SellerID         uint64     // sales.seller_id
	BuyerID          *uint64    // sales.buyer_id (nullable until reserved)
	StoreID          *uint64    // sales.store_id (nullable)
	CategoryID       uint64     // sales.category_id
	LanguageID       uint64     // sales.language_id
	CardName         string     // sales.card_name
	PriceCents       uint32     // sales.price_cents (per unit)
	ImageURL         *string    // sales.image_url (nullable)
	Status           SaleStatus // sales.status
	Quantity         int        // sales.quantity (remaining units)
	OriginalQuantity int        // sales.original_quantity (immutable)
	ReservedQuantity *int       // sales.reserved_quantity (nullable)
	ParentSaleID     *uint64    // sales.parent_sale_id (nullable)
	ShippingProofURL *string    // sales.shipping_proof_url (nullable)
	DeliveryProofURL *string    // sales.delivery_proof_url (nullable)
	ReservedAt       *time.Time // sales.reserved_at
	ShippedAt        *time.Time // sales.shipped_at
	DeliveredAt      *time.Time // sales.delivered_at
	CompletedAt      *time.Time // sales.completed_at
	CreatedAt        time.Time  // sales.created_at
	UpdatedAt        time.Time  // sales.updated_at
}

// HasBuyer reports whether a buyer has been attached to this sale.
func (s *Sale) HasBuyer() bool { return s.BuyerID != nil }

// RoleOf resolves the role of an actor for this sale. The seller always
// resolves to SELLER. A matching buyer resolves to BUYER. Anyone else is
// treated as a prospective buyer while the sale is still AVAILABLE, and
// as no role at all otherwise.
func (s *Sale) RoleOf(actorID uint64) Role {
	if actorID == s.SellerID {
		return RoleSeller
	}
	if s.BuyerID != nil && *s.BuyerID == actorID {
		return RoleBuyer
	}
	if s.Status == StatusAvailable {
		return RoleBuyer
	}
	return RoleNone
}
