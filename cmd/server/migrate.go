package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hongminglow/streamhub-be/internal/config"
	"github.com/hongminglow/streamhub-be/internal/logging"
	"github.com/hongminglow/streamhub-be/internal/storage/postgres"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StorageDriver != config.DriverPostgres {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.DriverPostgres)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := postgres.Migrate(cmd.Context(), cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}
