package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tradebinder/card-market/internal/repository"
)

// CatalogHandler serves the category and language lookup endpoints.
type CatalogHandler struct {
	Catalog *repository.CatalogRepo
}

func NewCatalogHandler(cr *repository.CatalogRepo) *CatalogHandler {
	if cr == nil {
		panic("nil repository passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: cr}
}

// ListCategories returns all card categories.
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	categories, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list categories failed"})
	}
	out := make([]categoryView, 0, len(categories))
	for _, cat := range categories {
		out = append(out, categoryView{ID: cat.ID, Name: cat.Name})
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": out})
}

// ListLanguages returns all card languages.
func (h *CatalogHandler) ListLanguages(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	languages, err := h.Catalog.ListLanguages(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list languages failed"})
	}
	out := make([]languageView, 0, len(languages))
	for _, l := range languages {
		out = append(out, languageView{ID: l.ID, Code: l.Code, Name: l.Name})
	}
	return c.JSON(http.StatusOK, echo.Map{"languages": out})
}
