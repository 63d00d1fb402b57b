package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
	"github.com/james-hub21/ORBIT-sub003/internal/config"
	"github.com/james-hub21/ORBIT-sub003/internal/database"
	"github.com/james-hub21/ORBIT-sub003/internal/handler"
	"github.com/james-hub21/ORBIT-sub003/internal/middleware"
	"github.com/james-hub21/ORBIT-sub003/internal/queue"
	"github.com/james-hub21/ORBIT-sub003/internal/repository"
	"github.com/james-hub21/ORBIT-sub003/internal/router"
	queuepublisher "github.com/james-hub21/ORBIT-sub003/internal/service"
)

func main() {
	// .env is optional; real deployments inject env vars directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	if err := database.Migrate(db, cfg.DBName); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	// Redis is optional; a nil client disables rate limiting and the
	// facility metadata cache, never correctness.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and facility cache disabled")
	}

	facilityRepo := repository.NewFacilityRepo(db, rdb)
	reservationRepo := repository.NewReservationRepo(db)
	store := repository.NewBookingStore(db)

	publisher := queuepublisher.New("")
	policy := booking.Policy{
		AutoApprove:           cfg.AutoApprove,
		DuplicateRequestCheck: cfg.DuplicateCheck,
	}
	engine := booking.NewEngine(store, publisher, policy, nil)

	// Background reminder sweeper and the in-process notifier consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper := booking.NewSweeper(engine, cfg.ReminderSweepEvery)
	go sweeper.Run(ctx)
	go func() {
		if err := queue.StartNotifierConsumer(); err != nil {
			log.Printf("notifier consumer stopped: %v", err)
		}
	}()

	reservationHandler := handler.NewReservationHandler(engine, reservationRepo, uint32(cfg.DefaultLeadMinutes))
	facilityHandler := handler.NewFacilityHandler(facilityRepo, reservationRepo, engine)
	adminHandler := handler.NewAdminHandler(engine)

	e := echo.New()
	router.RegisterRoutes(e)
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterReservations(e, reservationHandler, facilityHandler, adminHandler, cfg.JWTSecret, rateLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
