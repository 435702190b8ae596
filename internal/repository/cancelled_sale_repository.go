package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/tradebinder/card-market/internal/model"
)

// CancelledSaleRepo provides data access to the cancelled_sales audit
// table. Rows are append-only; the corresponding live sale row is
// deleted in the same transaction that writes the archive entry.
type CancelledSaleRepo struct {
	db *sql.DB
}

// NewCancelledSaleRepo returns a repo bound to the given database.
func NewCancelledSaleRepo(db *sql.DB) *CancelledSaleRepo { return &CancelledSaleRepo{db: db} }

// CreateTx inserts an audit row within the cancelling transaction and
// populates the generated ID.
func (r *CancelledSaleRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *model.CancelledSale) error {
	const q = `INSERT INTO cancelled_sales
		(sale_id, seller_id, buyer_id, category_id, language_id, card_name, price_cents,
		 quantity, reserved_quantity, parent_sale_id, original_status, reason, cancelled_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, q,
		rec.SaleID, rec.SellerID, nullableID(rec.BuyerID), rec.CategoryID, rec.LanguageID,
		rec.CardName, rec.PriceCents, rec.Quantity, nullableInt(rec.ReservedQuantity),
		nullableID(rec.ParentSaleID), string(rec.OriginalStatus), rec.Reason, rec.CancelledAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return nil
}

// ListForUser returns cancellations where the user was seller or buyer,
// newest first.
func (r *CancelledSaleRepo) ListForUser(ctx context.Context, userID uint64) ([]model.CancelledSale, error) {
	const q = `SELECT id, sale_id, seller_id, buyer_id, category_id, language_id, card_name,
			price_cents, quantity, reserved_quantity, parent_sale_id, original_status, reason, cancelled_at
		FROM cancelled_sales
		WHERE seller_id = ? OR buyer_id = ?
		ORDER BY cancelled_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CancelledSale, 0)
	for rows.Next() {
		var (
			rec         model.CancelledSale
			buyerID     sql.NullInt64
			reservedQty sql.NullInt64
			parentID    sql.NullInt64
			status      string
			cancelledAt time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.SaleID, &rec.SellerID, &buyerID, &rec.CategoryID,
			&rec.LanguageID, &rec.CardName, &rec.PriceCents, &rec.Quantity, &reservedQty,
			&parentID, &status, &rec.Reason, &cancelledAt); err != nil {
			return nil, err
		}
		if buyerID.Valid {
			v := uint64(buyerID.Int64)
			rec.BuyerID = &v
		}
		if reservedQty.Valid {
			v := int(reservedQty.Int64)
			rec.ReservedQuantity = &v
		}
		if parentID.Valid {
			v := uint64(parentID.Int64)
			rec.ParentSaleID = &v
		}
		rec.OriginalStatus = model.SaleStatus(status)
		rec.CancelledAt = cancelledAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
