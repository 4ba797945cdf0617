package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aaron-services/internal/adapter/rabbitmq"
	"aaron-services/internal/adapter/websocket"
	"aaron-services/internal/common/auth"
	"aaron-services/internal/common/middleware"
	"aaron-services/internal/config"
	"aaron-services/internal/database"
	"aaron-services/internal/domain/repo"
	"aaron-services/internal/handlers"
	"aaron-services/internal/services"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}

	ctx := context.Background()

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatalw("failed to initialize schema", "error", err)
	}

	// The broker is optional at startup: orders and tracking keep working
	// without it, events are just dropped until it comes back.
	bus := rabbitmq.NewBus(cfg.Broker.BrokerURL(), cfg.Broker.Channel, log)
	if err := bus.Connect(); err != nil {
		log.Warnw("event bus unavailable, continuing without it", "error", err)
	}
	defer bus.Close()

	orderRepo := repo.NewWorkOrderRepository(db.Pool)
	crewRepo := repo.NewCrewRepository(db.Pool)
	trackingRepo := repo.NewTrackingRepository(db.Pool)
	subscriptionRepo := repo.NewSubscriptionRepository(db.Pool)

	trackingSvc := services.NewTrackingService(trackingRepo, crewRepo, log)
	dispatchSvc := services.NewDispatchService(orderRepo, crewRepo, trackingSvc, bus, log)

	verifier := auth.NewTokenVerifier(cfg.Gateway.JWTSecret)
	hub := websocket.NewHub(log)
	gateway := websocket.NewGateway(hub, trackingSvc, verifier, cfg.Gateway.AllowedOrigins, log)
	bus.Subscribe(gateway.HandleBusEvent)

	scheduler := services.NewBillingScheduler(subscriptionRepo, cfg.BillingSweep, cfg.BillingGrace, log)
	scheduler.Start()

	server := handlers.NewServer(
		cfg,
		handlers.NewTrackingHandler(trackingSvc),
		handlers.NewDispatchHandler(dispatchSvc),
		gateway,
		middleware.NewAuthMiddleware(verifier),
		log,
	)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("HTTP server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP shutdown failed", "error", err)
	}
	scheduler.Stop()

	log.Infow("shutdown complete")
}
