package handler

import (
	"time"

	"github.com/tradebinder/card-market/internal/model"
)

// Response views for model structs. Models mirror table columns and
// carry no serialization concerns; these DTOs fix the wire field names
// and timestamp formatting in one place.

type saleView struct {
	ID               uint64  `json:"id"`
	SellerID         uint64  `json:"seller_id"`
	BuyerID          *uint64 `json:"buyer_id,omitempty"`
	StoreID          *uint64 `json:"store_id,omitempty"`
	CategoryID       uint64  `json:"category_id"`
	LanguageID       uint64  `json:"language_id"`
	CardName         string  `json:"card_name"`
	PriceCents       uint32  `json:"price_cents"`
	ImageURL         *string `json:"image_url,omitempty"`
	Status           string  `json:"status"`
	Quantity         int     `json:"quantity"`
	OriginalQuantity int     `json:"original_quantity"`
	ReservedQuantity *int    `json:"reserved_quantity,omitempty"`
	ParentSaleID     *uint64 `json:"parent_sale_id,omitempty"`
	ShippingProofURL *string `json:"shipping_proof_url,omitempty"`
	DeliveryProofURL *string `json:"delivery_proof_url,omitempty"`
	ReservedAt       *string `json:"reserved_at,omitempty"`
	ShippedAt        *string `json:"shipped_at,omitempty"`
	DeliveredAt      *string `json:"delivered_at,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func newSaleView(s *model.Sale) saleView {
	return saleView{
		ID:               s.ID,
		SellerID:         s.SellerID,
		BuyerID:          s.BuyerID,
		StoreID:          s.StoreID,
		CategoryID:       s.CategoryID,
		LanguageID:       s.LanguageID,
		CardName:         s.CardName,
		PriceCents:       s.PriceCents,
		ImageURL:         s.ImageURL,
		Status:           string(s.Status),
		Quantity:         s.Quantity,
		OriginalQuantity: s.OriginalQuantity,
		ReservedQuantity: s.ReservedQuantity,
		ParentSaleID:     s.ParentSaleID,
		ShippingProofURL: s.ShippingProofURL,
		DeliveryProofURL: s.DeliveryProofURL,
		ReservedAt:       fmtTimePtr(s.ReservedAt),
		ShippedAt:        fmtTimePtr(s.ShippedAt),
		DeliveredAt:      fmtTimePtr(s.DeliveredAt),
		CompletedAt:      fmtTimePtr(s.CompletedAt),
		CreatedAt:        fmtTime(s.CreatedAt),
		UpdatedAt:        fmtTime(s.UpdatedAt),
	}
}

type cancelledSaleView struct {
	ID               uint64  `json:"id"`
	SaleID           uint64  `json:"sale_id"`
	SellerID         uint64  `json:"seller_id"`
	BuyerID          *uint64 `json:"buyer_id,omitempty"`
	CategoryID       uint64  `json:"category_id"`
	LanguageID       uint64  `json:"language_id"`
	CardName         string  `json:"card_name"`
	PriceCents       uint32  `json:"price_cents"`
	Quantity         int     `json:"quantity"`
	ReservedQuantity *int    `json:"reserved_quantity,omitempty"`
	ParentSaleID     *uint64 `json:"parent_sale_id,omitempty"`
	OriginalStatus   string  `json:"original_status"`
	Reason           string  `json:"reason"`
	CancelledAt      string  `json:"cancelled_at"`
}

func newCancelledSaleView(r *model.CancelledSale) cancelledSaleView {
	return cancelledSaleView{
		ID:               r.ID,
		SaleID:           r.SaleID,
		SellerID:         r.SellerID,
		BuyerID:          r.BuyerID,
		CategoryID:       r.CategoryID,
		LanguageID:       r.LanguageID,
		CardName:         r.CardName,
		PriceCents:       r.PriceCents,
		Quantity:         r.Quantity,
		ReservedQuantity: r.ReservedQuantity,
		ParentSaleID:     r.ParentSaleID,
		OriginalStatus:   string(r.OriginalStatus),
		Reason:           r.Reason,
		CancelledAt:      fmtTime(r.CancelledAt),
	}
}

func newCancelledSaleViews(recs []model.CancelledSale) []cancelledSaleView {
	out := make([]cancelledSaleView, 0, len(recs))
	for i := range recs {
		out = append(out, newCancelledSaleView(&recs[i]))
	}
	return out
}

type notificationView struct {
	ID        uint64 `json:"id"`
	SaleID    uint64 `json:"sale_id"`
	EventType string `json:"event_type"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func newNotificationViews(items []model.Notification) []notificationView {
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView{
			ID:        n.ID,
			SaleID:    n.SaleID,
			EventType: n.EventType,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: fmtTime(n.CreatedAt),
		})
	}
	return out
}

type storeView struct {
	ID          uint64 `json:"id"`
	OwnerID     uint64 `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func newStoreView(s *model.Store) storeView {
	return storeView{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		Name:        s.Name,
		Description: s.Description,
		CreatedAt:   fmtTime(s.CreatedAt),
	}
}

func newStoreViews(stores []model.Store) []storeView {
	out := make([]storeView, 0, len(stores))
	for i := range stores {
		out = append(out, newStoreView(&stores[i]))
	}
	return out
}

type categoryView struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type languageView struct {
	ID   uint64 `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}
