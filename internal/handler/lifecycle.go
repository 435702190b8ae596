package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tradebinder/card-market/internal/lifecycle"
)

// LifecycleHandler exposes the sale state machine over HTTP. Every
// endpoint resolves the acting user from the JWT and delegates to the
// lifecycle service; the service's structured errors are mapped onto
// HTTP statuses here and nowhere else.
type LifecycleHandler struct {
	Svc *lifecycle.Service
}

func NewLifecycleHandler(svc *lifecycle.Service) *LifecycleHandler {
	if svc == nil {
		panic("nil service passed to NewLifecycleHandler")
	}
	return &LifecycleHandler{Svc: svc}
}

type reserveReq struct {
	Quantity int `json:"quantity"` // 0 or absent means everything left
}
type shipReq struct {
	ShippingProofURL string `json:"shipping_proof_url"`
}
type deliveryReq struct {
	DeliveryProofURL string `json:"delivery_proof_url"`
}
type cancelReq struct {
	Reason string `json:"reason"`
}

// Reserve handles POST /v1/sales/:id/reserve.
func (h *LifecycleHandler) Reserve(c echo.Context) error {
	saleID, userID, ok := h.ids(c)
	if !ok {
		return nil
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	sale, err := h.Svc.Reserve(c.Request().Context(), saleID, userID, req.Quantity)
	if err != nil {
		return writeLifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sale": newSaleView(sale)})
}

// Ship handles POST /v1/sales/:id/ship.
func (h *LifecycleHandler) Ship(c echo.Context) error {
	saleID, userID, ok := h.ids(c)
	if !ok {
		return nil
	}
	var req shipReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	sale, err := h.Svc.Ship(c.Request().Context(), saleID, userID, req.ShippingProofURL)
	if err != nil {
		return writeLifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sale": newSaleView(sale)})
}

// ConfirmDelivery handles POST /v1/sales/:id/delivery.
func (h *LifecycleHandler) ConfirmDelivery(c echo.Context) error {
	saleID, userID, ok := h.ids(c)
	if !ok {
		return nil
	}
	var req deliveryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	sale, err := h.Svc.ConfirmDelivery(c.Request().Context(), saleID, userID, req.DeliveryProofURL)
	if err != nil {
		return writeLifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sale": newSaleView(sale)})
}

// Complete handles POST /v1/sales/:id/complete, the seller's manual
// completion ahead of the automatic one.
func (h *LifecycleHandler) Complete(c echo.Context) error {
	saleID, userID, ok := h.ids(c)
	if !ok {
		return nil
	}

	sale, err := h.Svc.Complete(c.Request().Context(), saleID, userID)
	if err != nil {
		return writeLifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sale": newSaleView(sale)})
}

// Cancel handles POST /v1/sales/:id/cancel.
func (h *LifecycleHandler) Cancel(c echo.Context) error {
	saleID, userID, ok := h.ids(c)
	if !ok {
		return nil
	}
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	archived, err := h.Svc.Cancel(c.Request().Context(), saleID, userID, req.Reason)
	if err != nil {
		return writeLifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": newCancelledSaleView(archived)})
}

// Transitions handles GET /v1/sales/:id/transitions, reporting the
// targets the caller may move the sale to right now.
func (h *LifecycleHandler) Transitions(c echo.Context) error {
	saleID, userID, ok := h.ids(c)
	if !ok {
		return nil
	}

	targets, err := h.Svc.ValidTransitionsFor(c.Request().Context(), saleID, userID)
	if err != nil {
		return writeLifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid_transitions": targets})
}

// ids pulls the sale id and user id; on failure it writes the response
// itself and reports false.
func (h *LifecycleHandler) ids(c echo.Context) (saleID, userID uint64, ok bool) {
	saleID, err := pathID(c, "id")
	if err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sale id"})
		return 0, 0, false
	}
	userID, err = getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return 0, 0, false
	}
	return saleID, userID, true
}

// writeLifecycleError maps a lifecycle error kind to its HTTP status.
// INVALID_STATE responses include the transitions the caller could
// legally take instead.
func writeLifecycleError(c echo.Context, err error) error {
	le, ok := lifecycle.AsError(err)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	switch le.Kind {
	case lifecycle.KindNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": le.Message})
	case lifecycle.KindInvalidState:
		return c.JSON(http.StatusConflict, echo.Map{
			"error":             le.Message,
			"valid_transitions": le.ValidTransitions,
		})
	case lifecycle.KindForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": le.Message})
	case lifecycle.KindInvalidArgument:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": le.Message})
	case lifecycle.KindConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": le.Message})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
