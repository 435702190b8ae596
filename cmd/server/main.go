package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tradebinder/card-market/internal/config"
	"github.com/tradebinder/card-market/internal/database"
	"github.com/tradebinder/card-market/internal/handler"
	"github.com/tradebinder/card-market/internal/lifecycle"
	"github.com/tradebinder/card-market/internal/queue"
	"github.com/tradebinder/card-market/internal/repository"
	"github.com/tradebinder/card-market/internal/router"
	"github.com/tradebinder/card-market/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response caching disabled")
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	sales := repository.NewSaleRepo(db)
	purchases := repository.NewPurchaseRepo(db)
	cancelled := repository.NewCancelledSaleRepo(db)
	stores := repository.NewStoreRepo(db)
	notifications := repository.NewNotificationRepo(db)
	catalog := repository.NewCatalogRepo(db)

	// Lifecycle service with its transactional store, the queue-backed
	// notifier and the auto-completion scheduler.
	lifecycleStore := repository.NewLifecycleStore(db, sales, purchases, cancelled)
	notifier := service.NewQueueNotifier(cfg.RabbitURL)
	scheduler := lifecycle.NewCompletionScheduler()
	defer scheduler.Stop()
	svc := lifecycle.NewService(lifecycleStore, notifier, scheduler,
		time.Duration(cfg.AutoCompleteDelaySec)*time.Second)

	// The consumer turns published sale events into notification rows.
	go func() {
		if err := queue.StartSaleEventsConsumer(cfg.RabbitURL, notifications); err != nil {
			log.Printf("sale-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.Register(e, router.Handlers{
		Auth:          handler.NewAuthHandler(cfg, users, tokens),
		Sales:         handler.NewSaleHandler(sales, stores),
		Lifecycle:     handler.NewLifecycleHandler(svc),
		Purchases:     handler.NewPurchaseHandler(purchases, cancelled),
		Notifications: handler.NewNotificationHandler(notifications),
		Stores:        handler.NewStoreHandler(stores),
		Catalog:       handler.NewCatalogHandler(catalog),
	}, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
