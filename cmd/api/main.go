package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-orders/internal/client"
	"marketplace-orders/internal/config"
	"marketplace-orders/internal/logger"
	"marketplace-orders/internal/repository"
	"marketplace-orders/internal/server"
	"marketplace-orders/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.FromConfig("orders-api", cfg))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db := client.InitDBClient(cfg.Database.Driver, cfg.DatabaseURL)
	uow := repository.NewUnitOfWork(ctx, db, cfg.Database.Transactions, log)
	log.Info("unit of work selected", slog.String("mode", uow.Mode()))

	gateway, err := client.NewPaymentGateway(cfg)
	if err != nil {
		log.Error("payment gateway", slog.Any("err", err))
		os.Exit(1)
	}

	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	sellerRepo := repository.NewSellerRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	cartRepo := repository.NewCartRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	dispatcher := service.NewDispatcher(cfg.Dispatch, log)
	dispatcher.Start()

	verifier, err := service.NewPaymentVerifier(gateway, &cfg.Gateway, log)
	if err != nil {
		log.Error("payment verifier", slog.Any("err", err))
		os.Exit(1)
	}

	orderService := service.NewOrderService(service.OrderServiceDeps{
		UnitOfWork:  uow,
		Orders:      orderRepo,
		Products:    productRepo,
		Payments:    paymentRepo,
		Carts:       cartRepo,
		Inventory:   service.NewInventoryLedger(inventoryRepo),
		Commissions: service.NewCommissionLedger(commissionRepo, sellerRepo),
		Idempotency: service.NewIdempotencyGuard(orderRepo),
		Verifier:    verifier,
		Notifier:    service.LogNotifier{Log: log},
		Dispatcher:  dispatcher,
		Order:       cfg.Order,
		Commission:  cfg.Commission,
		Currency:    cfg.Gateway.Currency,
		Log:         log,
	})

	webhookService := service.NewWebhookService(
		verifier,
		service.NewWebhookReplayGuard(webhookEventRepo, log),
		uow,
		orderRepo,
		paymentRepo,
		cfg.Gateway,
		log,
	)

	janitor := service.NewWebhookJanitor(webhookEventRepo, cfg.Webhook, log)

	srv := server.NewServer(server.Deps{
		DB:             db,
		UnitOfWork:     uow,
		OrderService:   orderService,
		Verifier:       verifier,
		WebhookService: webhookService,
		JWTSecret:      cfg.JWTSecret,
		Log:            log,
	})

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting HTTP server", slog.String("addr", serverAddr))
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return janitor.Run(gctx)
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-sigChan:
			log.Info("signal received, starting graceful shutdown")
		case <-gctx.Done():
		}
		stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown", slog.Any("err", err))
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.Error("dispatcher drain incomplete", slog.Any("err", err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
