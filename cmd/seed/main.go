package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"shopcore/internal/config"
	"shopcore/internal/db"
	"shopcore/internal/logging"
	productrepo "shopcore/internal/repository/product"
	shoprepo "shopcore/internal/repository/shop"
	"shopcore/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	owner := os.Getenv("SEED_OWNER_ID")
	if owner == "" {
		owner = "demo-owner"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	shop, err := seed.Apply(ctx, shoprepo.NewPostgres(pool, logger), productrepo.NewPostgres(pool, logger), owner, logger)
	if err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}
	fmt.Println(shop.ID)
}
