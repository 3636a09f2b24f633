// Package cli implements hisabctl, the operator tool for the import pipeline.
package cli

import (
	"context"
	"fmt"

	"hisabkitab/pkg/config"
	"hisabkitab/pkg/logger"
	"hisabkitab/pkg/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand creates the root command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hisabctl",
		Short: "Operate the statement import pipeline",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newSeedCommand(),
		newRasterizeCommand(),
		newExtractCommand(),
		newParseCommand(),
		newReprocessCommand(),
	)

	return rootCmd
}

// setup loads configuration and the process logger. Logs go to stderr so
// command output on stdout stays machine readable.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := logger.Init(cfg.Logger.Level); err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, logger.Get(), nil
}

func connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}
