package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tradebinder/card-market/internal/repository"
)

// PurchaseHandler serves the post-completion history endpoints backed by
// the purchases and cancelled_sales tables.
type PurchaseHandler struct {
	Purchases *repository.PurchaseRepo
	Cancelled *repository.CancelledSaleRepo
}

func NewPurchaseHandler(p *repository.PurchaseRepo, cs *repository.CancelledSaleRepo) *PurchaseHandler {
	if p == nil || cs == nil {
		panic("nil repository passed to NewPurchaseHandler")
	}
	return &PurchaseHandler{Purchases: p, Cancelled: cs}
}

// MyPurchases lists the caller's purchase history as a buyer.
func (h *PurchaseHandler) MyPurchases(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	purchases, err := h.Purchases.ListByBuyer(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list purchases failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"purchases": purchases})
}

// MySalesHistory lists the caller's fulfilled sales as a seller.
func (h *PurchaseHandler) MySalesHistory(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sales, err := h.Purchases.ListBySeller(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list sales history failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sales": sales})
}

// MyCancelled lists cancellations the caller took part in on either
// side.
func (h *PurchaseHandler) MyCancelled(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cancelled, err := h.Cancelled.ListForUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list cancelled sales failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": newCancelledSaleViews(cancelled)})
}
