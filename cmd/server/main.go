package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/movie-ticket-booking/internal/client"
	"github.com/iliyamo/movie-ticket-booking/internal/config"
	"github.com/iliyamo/movie-ticket-booking/internal/database"
	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/notifier"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/realtime"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/router"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: rate limiting and notification dedupe disabled")
	}

	var bus queue.Bus
	switch cfg.BusDriver {
	case "memory":
		bus = queue.NewMemoryBus(30 * time.Second)
		log.Println("using in-memory message bus")
	default:
		rabbit, err := queue.NewRabbitBus(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer rabbit.Close()
		bus = rabbit
	}

	seats := repository.NewSeatRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	notifications := repository.NewNotificationRepo(db)

	// The orchestrators go through the SeatLedger interface, so they
	// work the same against the local repo or a remote seat service.
	var ledger service.SeatLedger = seats
	if cfg.SeatServiceURL != "" {
		ledger = client.NewSeatClient(cfg.SeatServiceURL, 10*time.Second)
		log.Printf("using remote seat service at %s", cfg.SeatServiceURL)
	}

	bookingSvc := service.NewBookingService(bookings, ledger, bus)
	paymentSvc := service.NewPaymentService(payments, bookings, ledger, bus)

	registry := realtime.NewRegistry(notifications)

	var dedupe notifier.Deduper
	if rdb != nil {
		dedupe = notifier.NewRedisDeduper(rdb, cfg.DedupeTTL)
	}
	processor := notifier.NewProcessor(bus, notifications, registry, dedupe)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		processor.Run(ctx)
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.NewRateLimit(config.LoadRateLimitConfig(), rdb))

	router.Register(e, router.Handlers{
		Seats:         handler.NewSeatHandler(seats, bus),
		Bookings:      handler.NewBookingHandler(bookingSvc),
		Payments:      handler.NewPaymentHandler(paymentSvc),
		Notifications: handler.NewNotificationHandler(notifications, registry),
		WS:            handler.NewWSHandler(registry),
		Admin:         handler.NewAdminHandler(processor, registry),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	// Let in-flight side effects (event publishes, seat updates) finish
	// before the process exits.
	bookingSvc.Wait()
	paymentSvc.Wait()
	<-consumerDone
	log.Println("bye")
}
