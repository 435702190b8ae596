// Package router registers the HTTP routes for the marketplace API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/tradebinder/card-market/internal/config"
	"github.com/tradebinder/card-market/internal/handler"
	"github.com/tradebinder/card-market/internal/middleware"
)

// Handlers collects every handler the router wires up.
type Handlers struct {
	Auth          *handler.AuthHandler
	Sales         *handler.SaleHandler
	Lifecycle     *handler.LifecycleHandler
	Purchases     *handler.PurchaseHandler
	Notifications *handler.NotificationHandler
	Stores        *handler.StoreHandler
	Catalog       *handler.CatalogHandler
}

// Register wires all routes onto the Echo instance.
//
// Public browse endpoints sit behind the Redis response cache. Every
// route under the protected /v1 group requires a valid access token and
// a TRADER or ADMIN account; seller/buyer authority on individual sales
// is enforced by the lifecycle service, not here. Transition endpoints
// additionally carry the rate limiter since they hold row locks.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated browse endpoints, cached and rate limited by IP.
	cache := middleware.ResponseCache(config.LoadCacheConfig(), rdb)
	rl := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)
	e.GET("/v1/sales", h.Sales.ListSales, cache, rl)
	e.GET("/v1/sales/:id", h.Sales.GetSale, cache, rl)
	e.GET("/v1/categories", h.Catalog.ListCategories, cache, rl)
	e.GET("/v1/languages", h.Catalog.ListLanguages, cache, rl)
	e.GET("/v1/stores/:id", h.Stores.Get, cache, rl)

	// Session endpoints.
	ag := e.Group("/v1/auth")
	ag.POST("/register", h.Auth.Register)
	ag.POST("/login", h.Auth.Login)
	ag.POST("/refresh", h.Auth.Refresh)
	ag.POST("/logout", h.Auth.Logout)

	// Protected endpoints.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))
	auth.Use(middleware.RequireRole("TRADER", "ADMIN"))

	auth.POST("/sales", h.Sales.CreateSale)
	auth.GET("/my/sales", h.Sales.MySales)
	auth.GET("/my/reservations", h.Sales.MyReservations)
	auth.GET("/my/purchases", h.Purchases.MyPurchases)
	auth.GET("/my/sales-history", h.Purchases.MySalesHistory)
	auth.GET("/my/cancelled", h.Purchases.MyCancelled)

	auth.POST("/stores", h.Stores.Create)
	auth.PATCH("/stores/:id", h.Stores.Update)
	auth.GET("/my/stores", h.Stores.MyStores)

	auth.GET("/notifications", h.Notifications.List)
	auth.POST("/notifications/:id/read", h.Notifications.MarkRead)

	// Transition endpoints, rate limited per user.
	auth.POST("/sales/:id/reserve", h.Lifecycle.Reserve, rl)
	auth.POST("/sales/:id/ship", h.Lifecycle.Ship, rl)
	auth.POST("/sales/:id/delivery", h.Lifecycle.ConfirmDelivery, rl)
	auth.POST("/sales/:id/complete", h.Lifecycle.Complete, rl)
	auth.POST("/sales/:id/cancel", h.Lifecycle.Cancel, rl)
	auth.GET("/sales/:id/transitions", h.Lifecycle.Transitions)
}
