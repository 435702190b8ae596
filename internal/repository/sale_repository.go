package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tradebinder/card-market/internal/model"
)

// SaleRepo provides data access to the sales table. Reads that precede a
// mutation must go through FindForUpdateTx so that concurrent lifecycle
// transitions against the same sale serialise on the row lock.
type SaleRepo struct {
	db *sql.DB
}

// NewSaleRepo returns a new SaleRepo bound to the given database.
func NewSaleRepo(db *sql.DB) *SaleRepo { return &SaleRepo{db: db} }

const saleColumns = `id, seller_id, buyer_id, store_id, category_id, language_id,
	card_name, price_cents, image_url, status, quantity, original_quantity,
	reserved_quantity, parent_sale_id, shipping_proof_url, delivery_proof_url,
	reserved_at, shipped_at, delivered_at, completed_at, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSale(row rowScanner) (*model.Sale, error) {
	var (
		s           model.Sale
		buyerID     sql.NullInt64
		storeID     sql.NullInt64
		imageURL    sql.NullString
		reservedQty sql.NullInt64
		parentID    sql.NullInt64
		shipProof   sql.NullString
		delivProof  sql.NullString
		reservedAt  sql.NullTime
		shippedAt   sql.NullTime
		deliveredAt sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.SellerID, &buyerID, &storeID, &s.CategoryID, &s.LanguageID,
		&s.CardName, &s.PriceCents, &imageURL, &s.Status, &s.Quantity, &s.OriginalQuantity,
		&reservedQty, &parentID, &shipProof, &delivProof,
		&reservedAt, &shippedAt, &deliveredAt, &completedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if buyerID.Valid {
		v := uint64(buyerID.Int64)
		s.BuyerID = &v
	}
	if storeID.Valid {
		v := uint64(storeID.Int64)
		s.StoreID = &v
	}
	if imageURL.Valid {
		s.ImageURL = &imageURL.String
	}
	if reservedQty.Valid {
		v := int(reservedQty.Int64)
		s.ReservedQuantity = &v
	}
	if parentID.Valid {
		v := uint64(parentID.Int64)
		s.ParentSaleID = &v
	}
	if shipProof.Valid {
		s.ShippingProofURL = &shipProof.String
	}
	if delivProof.Valid {
		s.DeliveryProofURL = &delivProof.String
	}
	if reservedAt.Valid {
		t := reservedAt.Time
		s.ReservedAt = &t
	}
	if shippedAt.Valid {
		t := shippedAt.Time
		s.ShippedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		s.DeliveredAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

func saleInsertArgs(s *model.Sale) []interface{} {
	return []interface{}{
		s.SellerID, nullableID(s.BuyerID), nullableID(s.StoreID), s.CategoryID, s.LanguageID,
		s.CardName, s.PriceCents, nullableStr(s.ImageURL), string(s.Status), s.Quantity,
		s.OriginalQuantity, nullableInt(s.ReservedQuantity), nullableID(s.ParentSaleID),
		nullableStr(s.ShippingProofURL), nullableStr(s.DeliveryProofURL),
		nullableTime(s.ReservedAt), nullableTime(s.ShippedAt),
		nullableTime(s.DeliveredAt), nullableTime(s.CompletedAt),
	}
}

const saleInsert = `INSERT INTO sales
	(seller_id, buyer_id, store_id, category_id, language_id, card_name, price_cents,
	 image_url, status, quantity, original_quantity, reserved_quantity, parent_sale_id,
	 shipping_proof_url, delivery_proof_url, reserved_at, shipped_at, delivered_at, completed_at)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// Create inserts a new listing outside any transaction and populates the
// generated ID on the provided sale.
func (r *SaleRepo) Create(ctx context.Context, s *model.Sale) error {
	res, err := r.db.ExecContext(ctx, saleInsert, saleInsertArgs(s)...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// CreateTx inserts a sale within an existing transaction. Used for the
// sibling row produced by a partial reservation split.
func (r *SaleRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Sale) error {
	res, err := tx.ExecContext(ctx, saleInsert, saleInsertArgs(s)...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID returns a sale by id. Returns sql.ErrNoRows when absent.
func (r *SaleRepo) GetByID(ctx context.Context, id uint64) (*model.Sale, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	return scanSale(row)
}

// FindForUpdateTx loads a sale with SELECT ... FOR UPDATE, acquiring an
// exclusive row lock held until the transaction commits or rolls back.
// Returns sql.ErrNoRows when the sale does not exist.
func (r *SaleRepo) FindForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Sale, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ? FOR UPDATE`, id)
	return scanSale(row)
}

// UpdateTx persists every mutable column of the sale within the given
// transaction. Identity columns (seller, category, language, original
// quantity, parent) are deliberately not updatable.
func (r *SaleRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Sale) error {
	const q = `UPDATE sales SET
		buyer_id = ?, status = ?, quantity = ?, reserved_quantity = ?,
		shipping_proof_url = ?, delivery_proof_url = ?,
		reserved_at = ?, shipped_at = ?, delivered_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`
	_, err := tx.ExecContext(ctx, q,
		nullableID(s.BuyerID), string(s.Status), s.Quantity, nullableInt(s.ReservedQuantity),
		nullableStr(s.ShippingProofURL), nullableStr(s.DeliveryProofURL),
		nullableTime(s.ReservedAt), nullableTime(s.ShippedAt),
		nullableTime(s.DeliveredAt), nullableTime(s.CompletedAt), s.UpdatedAt,
		s.ID,
	)
	return err
}

// DeleteTx removes the live sale row. The caller must have archived it
// into cancelled_sales first.
func (r *SaleRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id)
	return err
}

// AddQuantityTx atomically adjusts a sale's remaining quantity. Touching
// a missing row is not an error; cancellation restock tolerates a parent
// that was itself cancelled earlier.
func (r *SaleRepo) AddQuantityTx(ctx context.Context, tx *sql.Tx, id uint64, delta int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE sales SET quantity = quantity + ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		delta, id)
	return err
}

// SaleDetail is the read model returned to clients: a sale joined with
// seller, category and language names.
type SaleDetail struct {
	ID               uint64  `json:"id"`
	SellerID         uint64  `json:"seller_id"`
	SellerName       string  `json:"seller_name"`
	BuyerID          *uint64 `json:"buyer_id,omitempty"`
	StoreID          *uint64 `json:"store_id,omitempty"`
	CategoryID       uint64  `json:"category_id"`
	CategoryName     string  `json:"category_name"`
	LanguageID       uint64  `json:"language_id"`
	LanguageName     string  `json:"language_name"`
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
	CreatedAt        string  `json:"created_at"`
}

const saleDetailSelect = `SELECT s.id, s.seller_id, u.display_name, s.buyer_id, s.store_id,
		s.category_id, c.name, s.language_id, l.name,
		s.card_name, s.price_cents, s.image_url, s.status, s.quantity, s.original_quantity,
		s.reserved_quantity, s.parent_sale_id, s.shipping_proof_url, s.delivery_proof_url, s.created_at
	FROM sales s
	JOIN users u ON u.id = s.seller_id
	JOIN categories c ON c.id = s.category_id
	JOIN languages l ON l.id = s.language_id`

func scanSaleDetail(row rowScanner) (*SaleDetail, error) {
	var (
		d           SaleDetail
		buyerID     sql.NullInt64
		storeID     sql.NullInt64
		imageURL    sql.NullString
		reservedQty sql.NullInt64
		parentID    sql.NullInt64
		shipProof   sql.NullString
		delivProof  sql.NullString
		createdAt   time.Time
	)
	err := row.Scan(
		&d.ID, &d.SellerID, &d.SellerName, &buyerID, &storeID,
		&d.CategoryID, &d.CategoryName, &d.LanguageID, &d.LanguageName,
		&d.CardName, &d.PriceCents, &imageURL, &d.Status, &d.Quantity, &d.OriginalQuantity,
		&reservedQty, &parentID, &shipProof, &delivProof, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if buyerID.Valid {
		v := uint64(buyerID.Int64)
		d.BuyerID = &v
	}
	if storeID.Valid {
		v := uint64(storeID.Int64)
		d.StoreID = &v
	}
	if imageURL.Valid {
		d.ImageURL = &imageURL.String
	}
	if reservedQty.Valid {
		v := int(reservedQty.Int64)
		d.ReservedQuantity = &v
	}
	if parentID.Valid {
		v := uint64(parentID.Int64)
		d.ParentSaleID = &v
	}
	if shipProof.Valid {
		d.ShippingProofURL = &shipProof.String
	}
	if delivProof.Valid {
		d.DeliveryProofURL = &delivProof.String
	}
	d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return &d, nil
}

// GetDetail returns a single sale joined with its display names.
func (r *SaleRepo) GetDetail(ctx context.Context, id uint64) (*SaleDetail, error) {
	row := r.db.QueryRowContext(ctx, saleDetailSelect+` WHERE s.id = ?`, id)
	return scanSaleDetail(row)
}

// SaleFilter narrows ListAvailable. Zero values mean "no filter".
type SaleFilter struct {
	CategoryID    uint64
	LanguageID    uint64
	StoreID       uint64
	MaxPriceCents uint32
}

// ListAvailable returns AVAILABLE listings matching the filter, newest
// first.
func (r *SaleRepo) ListAvailable(ctx context.Context, f SaleFilter) ([]SaleDetail, error) {
	var (
		conds = []string{"s.status = 'AVAILABLE'"}
		args  []interface{}
	)
	if f.CategoryID != 0 {
		conds = append(conds, "s.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.LanguageID != 0 {
		conds = append(conds, "s.language_id = ?")
		args = append(args, f.LanguageID)
	}
	if f.StoreID != 0 {
		conds = append(conds, "s.store_id = ?")
		args = append(args, f.StoreID)
	}
	if f.MaxPriceCents != 0 {
		conds = append(conds, "s.price_cents <= ?")
		args = append(args, f.MaxPriceCents)
	}
	q := saleDetailSelect + ` WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY s.created_at DESC`
	return r.queryDetails(ctx, q, args...)
}

// ListBySeller returns every live sale owned by the seller, newest first.
func (r *SaleRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]SaleDetail, error) {
	return r.queryDetails(ctx, saleDetailSelect+` WHERE s.seller_id = ? ORDER BY s.created_at DESC`, sellerID)
}

// ListByBuyer returns every live sale the buyer is currently attached
// to, newest first.
func (r *SaleRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]SaleDetail, error) {
	return r.queryDetails(ctx, saleDetailSelect+` WHERE s.buyer_id = ? ORDER BY s.created_at DESC`, buyerID)
}

func (r *SaleRepo) queryDetails(ctx context.Context, q string, args ...interface{}) ([]SaleDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]SaleDetail, 0)
	for rows.Next() {
		d, err := scanSaleDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

func nullableID(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableStr(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return v.UTC()
}
