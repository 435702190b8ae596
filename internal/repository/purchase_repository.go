package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/tradebinder/card-market/internal/model"
)

// PurchaseRepo provides data access to the purchases table. Purchase
// rows are append-only snapshots; there are no update or delete paths.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a new PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// CreateTx inserts a purchase snapshot within the completing
// transaction and populates the generated ID.
func (r *PurchaseRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Purchase) error {
	const q = `INSERT INTO purchases
		(sale_id, buyer_id, seller_id, card_name, category_id, language_id, unit_price_cents, quantity, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, q,
		p.SaleID, p.BuyerID, p.SellerID, p.CardName, p.CategoryID, p.LanguageID,
		p.UnitPriceCents, p.Quantity, p.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// PurchaseDetail is a purchase snapshot joined with category and
// language names for display.
type PurchaseDetail struct {
	ID             uint64 `json:"id"`
	SaleID         uint64 `json:"sale_id"`
	BuyerID        uint64 `json:"buyer_id"`
	SellerID       uint64 `json:"seller_id"`
	CardName       string `json:"card_name"`
	CategoryName   string `json:"category_name"`
	LanguageName   string `json:"language_name"`
	UnitPriceCents uint32 `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	CreatedAt      string `json:"created_at"`
}

const purchaseDetailSelect = `SELECT p.id, p.sale_id, p.buyer_id, p.seller_id, p.card_name,
		c.name, l.name, p.unit_price_cents, p.quantity, p.created_at
	FROM purchases p
	JOIN categories c ON c.id = p.category_id
	JOIN languages l ON l.id = p.language_id`

// ListByBuyer returns the buyer's purchase history, newest first.
func (r *PurchaseRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]PurchaseDetail, error) {
	return r.list(ctx, purchaseDetailSelect+` WHERE p.buyer_id = ? ORDER BY p.created_at DESC`, buyerID)
}

// ListBySeller returns the seller's fulfilled sales, newest first.
func (r *PurchaseRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]PurchaseDetail, error) {
	return r.list(ctx, purchaseDetailSelect+` WHERE p.seller_id = ? ORDER BY p.created_at DESC`, sellerID)
}

func (r *PurchaseRepo) list(ctx context.Context, q string, args ...interface{}) ([]PurchaseDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]PurchaseDetail, 0)
	for rows.Next() {
		var d PurchaseDetail
		var createdAt time.Time
		if err := rows.Scan(&d.ID, &d.SaleID, &d.BuyerID, &d.SellerID, &d.CardName,
			&d.CategoryName, &d.LanguageName, &d.UnitPriceCents, &d.Quantity, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
