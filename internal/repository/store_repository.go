package repository

import (
	"context"
	"database/sql"

	"github.com/tradebinder/card-market/internal/model"
)

// StoreRepo provides data access to the stores table.
type StoreRepo struct {
	db *sql.DB
}

// NewStoreRepo returns a new StoreRepo bound to the given database.
func NewStoreRepo(db *sql.DB) *StoreRepo { return &StoreRepo{db: db} }

// Create inserts a storefront and populates the generated ID.
func (r *StoreRepo) Create(ctx context.Context, s *model.Store) error {
	const q = `INSERT INTO stores (owner_id, name, description) VALUES (?,?,?)`
	res, err := r.db.ExecContext(ctx, q, s.OwnerID, s.Name, s.Description)
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

const storeColumns = `id, owner_id, name, description, created_at, updated_at`

// GetByID fetches a storefront. Returns sql.ErrNoRows when missing.
func (r *StoreRepo) GetByID(ctx context.Context, id uint64) (*model.Store, error) {
	var s model.Store
	err := r.db.QueryRowContext(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = ?`, id).
		Scan(&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update rewrites a storefront's name and description. Only the owner may
// update; a mismatched owner surfaces as ErrForbidden.
func (r *StoreRepo) Update(ctx context.Context, s *model.Store) error {
	const q = `UPDATE stores SET name = ?, description = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND owner_id = ?`
	res, err := r.db.ExecContext(ctx, q, s.Name, s.Description, s.ID, s.OwnerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		existing, err := r.GetByID(ctx, s.ID)
		if err != nil {
			return err
		}
		if existing.OwnerID != s.OwnerID {
			return ErrForbidden
		}
	}
	return nil
}

// ListByOwner returns the storefronts a user owns.
func (r *StoreRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Store, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Store, 0)
	for rows.Next() {
		var s model.Store
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
