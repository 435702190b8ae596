package repository

import (
	"context"
	"database/sql"

	"github.com/tradebinder/card-market/internal/model"
)

// CatalogRepo reads the category and language lookup tables. Both are
// small, admin-seeded tables, so there is no pagination.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo returns a new CatalogRepo bound to the given database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// ListCategories returns all card categories ordered by name.
func (r *CatalogRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLanguages returns all card languages ordered by code.
func (r *CatalogRepo) ListLanguages(ctx context.Context) ([]model.Language, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, name FROM languages ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Language, 0)
	for rows.Next() {
		var l model.Language
		if err := rows.Scan(&l.ID, &l.Code, &l.Name); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
