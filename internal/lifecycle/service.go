package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tradebinder/card-market/internal/model"
)

// Service orchestrates sale lifecycle transitions. Each operation loads
// the sale under a row lock, validates the transition against the rule
// table and the operation's own preconditions, applies the mutation and
// any derived writes (split sibling, purchase snapshot, cancellation
// archive) inside a single transaction, and emits notifications only
// after that transaction has committed.
type Service struct {
	sales     SaleRepository
	notifier  NotificationEmitter
	scheduler *CompletionScheduler
	autoDelay time.Duration
}

// NewService constructs the lifecycle service. autoDelay is the grace
// period between delivery confirmation and automatic completion.
func NewService(sales SaleRepository, notifier NotificationEmitter, scheduler *CompletionScheduler, autoDelay time.Duration) *Service {
	if sales == nil || notifier == nil || scheduler == nil {
		panic("nil dependency passed to lifecycle.NewService")
	}
	if autoDelay <= 0 {
		autoDelay = time.Minute
	}
	return &Service{sales: sales, notifier: notifier, scheduler: scheduler, autoDelay: autoDelay}
}

// Reserve moves an AVAILABLE sale to RESERVED on behalf of a buyer.
// quantity <= 0 means "everything that is left". Reserving fewer units
// than are available splits the listing: the remainder is carved into a
// fresh AVAILABLE sibling sale pointing back at this one via
// ParentSaleID, and the original row becomes the reserved portion.
func (s *Service) Reserve(ctx context.Context, saleID, buyerID uint64, quantity int) (*model.Sale, error) {
	var sellerID uint64
	var reservedQty int
	err := s.sales.RunInTransaction(ctx, func(tx SaleTx) error {
		sale, err := s.lockSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != model.StatusAvailable {
			return errInvalidState(sale.Status, model.StatusReserved, sale.RoleOf(buyerID))
		}
		if buyerID == sale.SellerID {
			return errForbidden("sellers cannot reserve their own sale")
		}
		if sale.HasBuyer() {
			return errForbidden("sale already has a buyer")
		}
		if quantity <= 0 {
			quantity = sale.Quantity
		}
		if quantity > sale.Quantity {
			return errInvalidArgument(fmt.Sprintf("requested quantity %d exceeds available quantity %d", quantity, sale.Quantity))
		}

		now := time.Now().UTC()
		if quantity < sale.Quantity {
			remainder := sale.Quantity - quantity
			sibling := &model.Sale{
				SellerID:         sale.SellerID,
				StoreID:          sale.StoreID,
				CategoryID:       sale.CategoryID,
				LanguageID:       sale.LanguageID,
				CardName:         sale.CardName,
				PriceCents:       sale.PriceCents,
				ImageURL:         sale.ImageURL,
				Status:           model.StatusAvailable,
				Quantity:         remainder,
				OriginalQuantity: remainder,
				ParentSaleID:     &sale.ID,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := tx.Create(ctx, sibling); err != nil {
				return err
			}
		}

		qty := quantity
		sale.Status = model.StatusReserved
		sale.BuyerID = &buyerID
		sale.Quantity = qty
		sale.ReservedQuantity = &qty
		sale.ReservedAt = &now
		sale.UpdatedAt = now
		sellerID = sale.SellerID
		reservedQty = qty
		return tx.Save(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	reserved, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, sellerID, EventSaleReserved, Metadata{
		SaleID:   saleID,
		CardName: reserved.CardName,
		Quantity: reservedQty,
		Message:  fmt.Sprintf("%d unit(s) of %q reserved", reservedQty, reserved.CardName),
	})
	return reserved, nil
}

// Ship moves a RESERVED sale to SHIPPED. Only the seller may ship, and a
// shipping proof URL is required.
func (s *Service) Ship(ctx context.Context, saleID, actorID uint64, shippingProofURL string) (*model.Sale, error) {
	var buyerID uint64
	var cardName string
	err := s.sales.RunInTransaction(ctx, func(tx SaleTx) error {
		sale, err := s.lockSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		role := sale.RoleOf(actorID)
		if sale.Status != model.StatusReserved {
			return errInvalidState(sale.Status, model.StatusShipped, role)
		}
		if role != model.RoleSeller {
			return errForbidden("only the seller can mark a sale as shipped")
		}
		if shippingProofURL == "" {
			return errInvalidArgument("shipping_proof_url is required")
		}
		if !sale.HasBuyer() {
			return errConflict("reserved sale has no buyer")
		}

		now := time.Now().UTC()
		sale.Status = model.StatusShipped
		sale.ShippingProofURL = &shippingProofURL
		sale.ShippedAt = &now
		sale.UpdatedAt = now
		buyerID = *sale.BuyerID
		cardName = sale.CardName
		return tx.Save(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, buyerID, EventSaleShipped, Metadata{
		SaleID:   saleID,
		CardName: cardName,
		Message:  fmt.Sprintf("%q has been shipped", cardName),
	})
	return s.sales.FindByID(ctx, saleID)
}

// ConfirmDelivery moves a SHIPPED sale to DELIVERED on behalf of the
// buyer and schedules the deferred automatic completion. The scheduled
// job re-checks the sale state under the row lock, so a cancellation or
// manual completion landing first turns it into a no-op.
func (s *Service) ConfirmDelivery(ctx context.Context, saleID, actorID uint64, deliveryProofURL string) (*model.Sale, error) {
	var sellerID uint64
	var cardName string
	err := s.sales.RunInTransaction(ctx, func(tx SaleTx) error {
		sale, err := s.lockSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		role := sale.RoleOf(actorID)
		if sale.Status != model.StatusShipped {
			return errInvalidState(sale.Status, model.StatusDelivered, role)
		}
		if role != model.RoleBuyer {
			return errForbidden("only the buyer can confirm delivery")
		}
		if deliveryProofURL == "" {
			return errInvalidArgument("delivery_proof_url is required")
		}

		now := time.Now().UTC()
		sale.Status = model.StatusDelivered
		sale.DeliveryProofURL = &deliveryProofURL
		sale.DeliveredAt = &now
		sale.UpdatedAt = now
		sellerID = sale.SellerID
		cardName = sale.CardName
		return tx.Save(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, sellerID, EventSaleDelivered, Metadata{
		SaleID:   saleID,
		CardName: cardName,
		Message:  fmt.Sprintf("delivery of %q confirmed by the buyer", cardName),
	})
	s.scheduler.Schedule(saleID, s.autoDelay, func() {
		if err := s.CompleteAuto(context.Background(), saleID); err != nil {
			log.Printf("lifecycle: auto-complete sale %d failed: %v", saleID, err)
		}
	})
	return s.sales.FindByID(ctx, saleID)
}

// Complete finalises a DELIVERED sale manually on behalf of the seller,
// recording the purchase snapshot and cancelling the pending automatic
// completion.
func (s *Service) Complete(ctx context.Context, saleID, actorID uint64) (*model.Sale, error) {
	sale, err := s.complete(ctx, saleID, &actorID)
	if err != nil {
		return nil, err
	}
	s.scheduler.Cancel(saleID)
	return sale, nil
}

// CompleteAuto is the system-role completion fired by the scheduler. It
// is idempotent: if the sale is no longer DELIVERED when the job runs
// (already completed, cancelled, or gone) it does nothing and returns
// nil rather than an error.
func (s *Service) CompleteAuto(ctx context.Context, saleID uint64) error {
	_, err := s.complete(ctx, saleID, nil)
	if err != nil {
		if le, ok := AsError(err); ok && (le.Kind == KindInvalidState || le.Kind == KindNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// complete holds the shared completion path. actorID is nil for the
// system role. The row lock taken by FindForUpdate serialises a manual
// completion racing the automatic one; whichever loses the race sees a
// COMPLETED sale and fails the status check, so exactly one purchase
// snapshot is ever written.
func (s *Service) complete(ctx context.Context, saleID uint64, actorID *uint64) (*model.Sale, error) {
	var sellerID uint64
	var cardName string
	var recordedQty int
	err := s.sales.RunInTransaction(ctx, func(tx SaleTx) error {
		sale, err := s.lockSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		role := model.RoleSystem
		if actorID != nil {
			role = sale.RoleOf(*actorID)
		}
		if sale.Status != model.StatusDelivered {
			return errInvalidState(sale.Status, model.StatusCompleted, role)
		}
		if actorID != nil && role != model.RoleSeller {
			return errForbidden("only the seller can complete a sale manually")
		}
		if !sale.HasBuyer() {
			return errConflict("delivered sale has no buyer")
		}

		// ReservedQuantity is the canonical fulfilled amount; Quantity is
		// only a fallback for rows that predate the reservation cycle.
		qty := sale.Quantity
		if sale.ReservedQuantity != nil {
			qty = *sale.ReservedQuantity
		}

		now := time.Now().UTC()
		if err := tx.RecordPurchase(ctx, &model.Purchase{
			SaleID:         sale.ID,
			BuyerID:        *sale.BuyerID,
			SellerID:       sale.SellerID,
			CardName:       sale.CardName,
			CategoryID:     sale.CategoryID,
			LanguageID:     sale.LanguageID,
			UnitPriceCents: sale.PriceCents,
			Quantity:       qty,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		sale.Status = model.StatusCompleted
		sale.CompletedAt = &now
		sale.UpdatedAt = now
		sellerID = sale.SellerID
		cardName = sale.CardName
		recordedQty = qty
		return tx.Save(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, sellerID, EventSaleCompleted, Metadata{
		SaleID:   saleID,
		CardName: cardName,
		Quantity: recordedQty,
		Message:  fmt.Sprintf("sale of %q completed", cardName),
	})
	return s.sales.FindByID(ctx, saleID)
}

// Cancel aborts a non-terminal sale. The full pre-cancel state is
// archived into a CancelledSale row, stock is returned to the parent
// listing when this sale was split off one, and the live row is deleted,
// all in one transaction. Seller and buyer are both notified.
func (s *Service) Cancel(ctx context.Context, saleID, actorID uint64, reason string) (*model.CancelledSale, error) {
	var archived model.CancelledSale
	var buyerID *uint64
	err := s.sales.RunInTransaction(ctx, func(tx SaleTx) error {
		sale, err := s.lockSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		role := sale.RoleOf(actorID)
		if sale.Status.Terminal() {
			return errInvalidState(sale.Status, model.StatusCancelled, role)
		}
		rule, ok := RuleFor(sale.Status, model.StatusCancelled)
		if !ok {
			return errInvalidState(sale.Status, model.StatusCancelled, role)
		}
		if role == model.RoleNone || !rule.Allows(role) || (role == model.RoleBuyer && !sale.HasBuyer()) {
			return errForbidden("only the seller or the buyer can cancel this sale")
		}
		if reason == "" {
			return errInvalidArgument("reason is required")
		}

		now := time.Now().UTC()
		archived = model.CancelledSale{
			SaleID:           sale.ID,
			SellerID:         sale.SellerID,
			BuyerID:          sale.BuyerID,
			CategoryID:       sale.CategoryID,
			LanguageID:       sale.LanguageID,
			CardName:         sale.CardName,
			PriceCents:       sale.PriceCents,
			Quantity:         sale.Quantity,
			ReservedQuantity: sale.ReservedQuantity,
			ParentSaleID:     sale.ParentSaleID,
			OriginalStatus:   sale.Status,
			Reason:           reason,
			CancelledAt:      now,
		}
		if err := tx.ArchiveCancelled(ctx, &archived); err != nil {
			return err
		}
		if sale.ParentSaleID != nil {
			// Un-split: return this sale's units to the listing it was
			// carved off. The parent may itself be gone already; the
			// quantity update simply touches zero rows in that case.
			if err := tx.AddQuantity(ctx, *sale.ParentSaleID, sale.Quantity); err != nil {
				return err
			}
		}
		buyerID = sale.BuyerID
		return tx.Remove(ctx, sale.ID)
	})
	if err != nil {
		return nil, err
	}

	s.scheduler.Cancel(saleID)
	meta := Metadata{
		SaleID:   saleID,
		CardName: archived.CardName,
		Reason:   reason,
		Message:  fmt.Sprintf("sale of %q cancelled: %s", archived.CardName, reason),
	}
	s.notify(ctx, archived.SellerID, EventSaleCancelled, meta)
	if buyerID != nil {
		s.notify(ctx, *buyerID, EventSaleCancelled, meta)
	}
	return &archived, nil
}

// ValidTransitionsFor reports the transitions the actor may take on a
// sale right now. Used by GET /v1/sales/:id/transitions.
func (s *Service) ValidTransitionsFor(ctx context.Context, saleID, actorID uint64) ([]model.SaleStatus, error) {
	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound(saleID)
		}
		return nil, err
	}
	return ValidTransitions(sale.Status, sale.RoleOf(actorID)), nil
}

// lockSale loads the sale under the row lock and maps a missing row to
// the structured not-found error.
func (s *Service) lockSale(ctx context.Context, tx SaleTx, saleID uint64) (*model.Sale, error) {
	sale, err := tx.FindForUpdate(ctx, saleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound(saleID)
		}
		return nil, err
	}
	return sale, nil
}

// notify emits a best-effort notification. Emission failures are logged
// and swallowed; a committed transition must never be reported as failed
// because the broker was unavailable.
func (s *Service) notify(ctx context.Context, userID uint64, eventType string, meta Metadata) {
	if err := s.notifier.Notify(ctx, userID, eventType, meta); err != nil {
		log.Printf("lifecycle: notify %s to user %d failed: %v", eventType, userID, err)
	}
}
