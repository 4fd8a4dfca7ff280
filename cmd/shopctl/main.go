// Command shopctl is the operator tool for the shop backend: dead-lettered
// callbacks, per-shop provider switches, schema status and test tokens.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shopcore/internal/config"
	"shopcore/internal/db"
	"shopcore/internal/domain"
	"shopcore/internal/logging"
	"shopcore/internal/migrate"
	shoprepo "shopcore/internal/repository/shop"
	webhookrepo "shopcore/internal/repository/webhook"
)

var Version = "dev"

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := newRootCmd(cfg, postgresOpener(cfg, logger)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type deadLetterStore interface {
	ListDead(ctx context.Context, limit int) ([]webhookrepo.Task, error)
	Requeue(ctx context.Context, id string) error
}

type providerStore interface {
	SetProviderEnabled(ctx context.Context, shopID string, provider domain.PaymentProvider, enabled bool) error
	ListProviders(ctx context.Context, shopID string) ([]domain.ShopProvider, error)
}

// stores is what the subcommands need from the database.
type stores struct {
	webhooks      deadLetterStore
	shops         providerStore
	schemaVersion func(ctx context.Context) (uint, bool, error)
}

type opener func(ctx context.Context) (*stores, func(), error)

func postgresOpener(cfg config.Config, logger *zap.Logger) opener {
	return func(ctx context.Context) (*stores, func(), error) {
		pool, err := db.Connect(ctx, cfg.DBConnString, logger)
		if err != nil {
			return nil, nil, err
		}
		return &stores{
			webhooks: webhookrepo.NewPostgres(pool, logger),
			shops:    shoprepo.NewPostgres(pool, logger),
			schemaVersion: func(ctx context.Context) (uint, bool, error) {
				return migrate.Version(ctx, pool)
			},
		}, pool.Close, nil
	}
}

func newRootCmd(cfg config.Config, open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Operate the shop backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(deadLettersCmd(open))
	root.AddCommand(providersCmd(open))
	root.AddCommand(migrateCmd(open))
	root.AddCommand(tokenCmd(cfg))
	return root
}

// withStores opens the database for one command run.
func withStores(cmd *cobra.Command, open opener, fn func(ctx context.Context, s *stores) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, closeFn, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeFn()
	return fn(ctx, s)
}
