package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/feedbackinsights/internal/adapters/database"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
	"github.com/zatekoja/feedbackinsights/pkg/config"
	"github.com/zatekoja/feedbackinsights/pkg/retry"
	"github.com/zatekoja/feedbackinsights/pkg/secrets"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("Migration failed")
		os.Exit(1)
	}
	log.Info().Msg("Feedback schema is up to date")
}

func run() error {
	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv(), nil); err != nil {
		return fmt.Errorf("failed to load vault secrets: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	observability.InitLogger("feedback-migrate", cfg.Log.Env, cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.WaitReady(ctx, retry.DefaultConfig(), cfg.Database.ConnectTimeout); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}

	return database.NewFeedbackAdapter(client).EnsureSchema(ctx)
}
