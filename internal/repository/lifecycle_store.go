package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tradebinder/card-market/internal/lifecycle"
	"github.com/tradebinder/card-market/internal/model"
)

// LifecycleStore binds the sale, purchase and cancelled-sale repositories
// into the single transactional store the lifecycle service works
// against. It owns transaction boundaries; the per-table repos stay
// oblivious to them beyond accepting a *sql.Tx.
type LifecycleStore struct {
	db      *sql.DB
	sales   *SaleRepo
	buys    *PurchaseRepo
	cancels *CancelledSaleRepo
}

// NewLifecycleStore wires the three repositories over a shared database
// handle.
func NewLifecycleStore(db *sql.DB, sales *SaleRepo, buys *PurchaseRepo, cancels *CancelledSaleRepo) *LifecycleStore {
	return &LifecycleStore{db: db, sales: sales, buys: buys, cancels: cancels}
}

var _ lifecycle.SaleRepository = (*LifecycleStore)(nil)

// RunInTransaction opens a transaction, runs fn against a transactional
// view and commits if fn returns nil. Any error from fn or commit rolls
// everything back.
func (s *LifecycleStore) RunInTransaction(ctx context.Context, fn func(tx lifecycle.SaleTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&lifecycleTx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// FindByID performs a plain read outside any transaction.
func (s *LifecycleStore) FindByID(ctx context.Context, id uint64) (*model.Sale, error) {
	return s.sales.GetByID(ctx, id)
}

// lifecycleTx adapts the per-table repos onto lifecycle.SaleTx for the
// lifetime of one transaction.
type lifecycleTx struct {
	tx    *sql.Tx
	store *LifecycleStore
}

func (t *lifecycleTx) FindForUpdate(ctx context.Context, id uint64) (*model.Sale, error) {
	return t.store.sales.FindForUpdateTx(ctx, t.tx, id)
}

func (t *lifecycleTx) Create(ctx context.Context, sale *model.Sale) error {
	return t.store.sales.CreateTx(ctx, t.tx, sale)
}

func (t *lifecycleTx) Save(ctx context.Context, sale *model.Sale) error {
	return t.store.sales.UpdateTx(ctx, t.tx, sale)
}

func (t *lifecycleTx) Remove(ctx context.Context, id uint64) error {
	return t.store.sales.DeleteTx(ctx, t.tx, id)
}

func (t *lifecycleTx) AddQuantity(ctx context.Context, id uint64, delta int) error {
	return t.store.sales.AddQuantityTx(ctx, t.tx, id, delta)
}

func (t *lifecycleTx) RecordPurchase(ctx context.Context, p *model.Purchase) error {
	return t.store.buys.CreateTx(ctx, t.tx, p)
}

func (t *lifecycleTx) ArchiveCancelled(ctx context.Context, rec *model.CancelledSale) error {
	return t.store.cancels.CreateTx(ctx, t.tx, rec)
}
