package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create analytics tables or collections and indexes",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("analytics store: %w", err)
	}
	if store == nil {
		return fmt.Errorf("analytics.driver is %q, nothing to migrate", cfg.Analytics.Driver)
	}
	defer func() { _ = store.Close(context.Background()) }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.L().Info("migrations applied")
	fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", cfg.Analytics.Driver)
	return nil
}
