package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tradebinder/card-market/internal/model"
	"github.com/tradebinder/card-market/internal/repository"
)

// SaleHandler serves listing creation and browsing. Lifecycle
// transitions live in LifecycleHandler.
type SaleHandler struct {
	Sales  *repository.SaleRepo
	Stores *repository.StoreRepo
}

func NewSaleHandler(sales *repository.SaleRepo, stores *repository.StoreRepo) *SaleHandler {
	if sales == nil || stores == nil {
		panic("nil repository passed to NewSaleHandler")
	}
	return &SaleHandler{Sales: sales, Stores: stores}
}

type createSaleReq struct {
	CardName   string  `json:"card_name"`
	CategoryID uint64  `json:"category_id"`
	LanguageID uint64  `json:"language_id"`
	PriceCents uint32  `json:"price_cents"`
	Quantity   int     `json:"quantity"`
	StoreID    *uint64 `json:"store_id"`
	ImageURL   *string `json:"image_url"`
}

// CreateSale lists a new card for sale. The listing starts AVAILABLE
// with OriginalQuantity frozen to the initial quantity. A store, when
// given, must belong to the seller.
func (h *SaleHandler) CreateSale(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createSaleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.CardName = strings.TrimSpace(req.CardName)
	if req.CardName == "" || req.CategoryID == 0 || req.LanguageID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "card_name, category_id and language_id are required"})
	}
	if req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents must be positive"})
	}
	if req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if req.StoreID != nil {
		store, err := h.Stores.GetByID(ctx, *req.StoreID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store lookup failed"})
		}
		if store.OwnerID != userID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "store belongs to another user"})
		}
	}

	now := time.Now().UTC()
	sale := &model.Sale{
		SellerID:         userID,
		StoreID:          req.StoreID,
		CategoryID:       req.CategoryID,
		LanguageID:       req.LanguageID,
		CardName:         req.CardName,
		PriceCents:       req.PriceCents,
		ImageURL:         req.ImageURL,
		Status:           model.StatusAvailable,
		Quantity:         req.Quantity,
		OriginalQuantity: req.Quantity,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.Sales.Create(ctx, sale); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create sale failed"})
	}

	detail, err := h.Sales.GetDetail(ctx, sale.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reload sale failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"sale": detail})
}

// ListSales is the public browse endpoint. Only AVAILABLE listings are
// returned; category_id, language_id, store_id and max_price_cents query
// parameters narrow the result.
func (h *SaleHandler) ListSales(c echo.Context) error {
	var f repository.SaleFilter
	if v := c.QueryParam("category_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.CategoryID = n
		}
	}
	if v := c.QueryParam("language_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.LanguageID = n
		}
	}
	if v := c.QueryParam("store_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.StoreID = n
		}
	}
	if v := c.QueryParam("max_price_cents"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			f.MaxPriceCents = uint32(n)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sales, err := h.Sales.ListAvailable(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list sales failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sales": sales})
}

// GetSale returns one sale with its display names.
func (h *SaleHandler) GetSale(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sale id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Sales.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "sale not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get sale failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sale": detail})
}

// MySales lists the caller's live listings, in any status.
func (h *SaleHandler) MySales(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sales, err := h.Sales.ListBySeller(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list sales failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sales": sales})
}

// MyReservations lists the live sales the caller is currently the buyer
// on, whatever their stage in the lifecycle.
func (h *SaleHandler) MyReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sales, err := h.Sales.ListByBuyer(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list reservations failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sales": sales})
}
