package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"shopcore/internal/auth"
	"shopcore/internal/config"
	"shopcore/internal/db"
	"shopcore/internal/gateway"
	"shopcore/internal/httpserver"
	"shopcore/internal/logging"
	"shopcore/internal/migrate"
	cartrepo "shopcore/internal/repository/cart"
	"shopcore/internal/repository/idempotency"
	orderrepo "shopcore/internal/repository/order"
	paymentrepo "shopcore/internal/repository/payment"
	productrepo "shopcore/internal/repository/product"
	shoprepo "shopcore/internal/repository/shop"
	webhookrepo "shopcore/internal/repository/webhook"
	cartsvc "shopcore/internal/service/cart"
	ordersvc "shopcore/internal/service/order"
	paymentsvc "shopcore/internal/service/payment"
	productsvc "shopcore/internal/service/product"
	"shopcore/internal/webhook"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	if err := migrate.Apply(ctx, dbpool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	tokens, err := auth.NewTokenVerifier(cfg.JWTSecret)
	if err != nil {
		logger.Fatal("init token verifier", zap.Error(err))
	}

	shopRepo := shoprepo.NewPostgres(dbpool, logger)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	webhookRepo := webhookrepo.NewPostgres(dbpool, logger)

	cartService := cartsvc.New(cartrepo.NewPostgres(dbpool, logger), productRepo, logger)
	orderService := ordersvc.New(orderrepo.NewPostgres(dbpool, logger), productRepo, shopRepo, cartService, logger)
	paymentService := paymentsvc.New(
		paymentrepo.NewPostgres(dbpool, logger),
		orderService,
		shopRepo,
		idempotency.NewPostgres(dbpool),
		gateway.FromConfig(cfg, logger),
		cfg.FrontendURL,
		logger,
	)

	queue := webhook.NewQueue(webhookRepo, logger)
	processor := webhook.NewProcessor(webhookRepo, paymentService, queue, webhook.Options{
		Workers:      cfg.Webhooks.Workers,
		BatchSize:    cfg.Webhooks.BatchSize,
		PollInterval: cfg.Webhooks.PollInterval,
		Lease:        cfg.Webhooks.Lease,
		MaxAttempts:  cfg.Webhooks.MaxAttempts,
		BaseDelay:    cfg.Webhooks.BaseDelay,
		MaxDelay:     cfg.Webhooks.MaxDelay,
	}, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Orders:      orderService,
		Payments:    paymentService,
		Cart:        cartService,
		Products:    productsvc.New(productRepo),
		Webhooks:    queue,
		Tokens:      tokens,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		processor.Run(workerCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	// Workers stop after the server so accepted callbacks are not left mid-claim.
	stopWorkers()
	workers.Wait()
	logger.Info("server stopped")
}
