package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tradebinder/card-market/internal/model"
	"github.com/tradebinder/card-market/internal/repository"
)

// StoreHandler serves the optional storefront endpoints.
type StoreHandler struct {
	Stores *repository.StoreRepo
}

func NewStoreHandler(s *repository.StoreRepo) *StoreHandler {
	if s == nil {
		panic("nil repository passed to NewStoreHandler")
	}
	return &StoreHandler{Stores: s}
}

type storeReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create opens a storefront for the caller.
func (h *StoreHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req storeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store := &model.Store{OwnerID: userID, Name: req.Name, Description: req.Description}
	if err := h.Stores.Create(ctx, store); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create store failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"store": newStoreView(store)})
}

// Get returns one storefront.
func (h *StoreHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store, err := h.Stores.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get store failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"store": newStoreView(store)})
}

// Update edits the caller's storefront.
func (h *StoreHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store id"})
	}
	var req storeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store := &model.Store{ID: id, OwnerID: userID, Name: req.Name, Description: req.Description}
	if err := h.Stores.Update(ctx, store); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "store not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "store belongs to another user"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update store failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"store": newStoreView(store)})
}

// MyStores lists the caller's storefronts.
func (h *StoreHandler) MyStores(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stores, err := h.Stores.ListByOwner(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list stores failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stores": newStoreViews(stores)})
}
