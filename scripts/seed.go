package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/feedbackinsights/internal/adapters/database"
	"github.com/zatekoja/feedbackinsights/internal/application/services"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/clients/openai"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
	"github.com/zatekoja/feedbackinsights/pkg/config"
	"github.com/zatekoja/feedbackinsights/pkg/retry"
	"github.com/zatekoja/feedbackinsights/pkg/secrets"
)

type seedFeedback struct {
	rating int
	review string
}

var sampleSubmissions = []seedFeedback{
	{5, "Great service! Very responsive and helpful."},
	{3, "Service was okay but could be improved."},
	{4, "Quick delivery, the packaging could be better though."},
	{1, "Waited two weeks and nobody answered my emails."},
	{2, "The app keeps logging me out."},
	{5, ""},
}

func main() {
	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv(), nil); err != nil {
		log.Fatal().Err(err).Msg("Failed to load Vault secrets")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("feedback-seed", cfg.Log.Env, cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	if err := pgClient.WaitReady(ctx, retry.DefaultConfig(), cfg.Database.ConnectTimeout); err != nil {
		log.Fatal().Err(err).Msg("Database not reachable")
	}

	repo := database.NewFeedbackAdapter(pgClient)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating feedback before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE feedback_submissions RESTART IDENTITY`); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset feedback table")
		}
	}

	insightConfig := services.InsightConfig{Timeout: cfg.OpenAI.Timeout}
	if cfg.OpenAI.HasCredential() {
		client, err := openai.NewClient(&cfg.OpenAI, nil)
		if err != nil {
			log.Warn().Err(err).Msg("OpenAI client unavailable, seeding with fallback insights")
		} else {
			defer client.Close()
			insightConfig.Provider = client
		}
	}
	feedbackService := services.NewFeedbackService(repo, services.NewInsightService(insightConfig))

	seeded := 0
	for _, s := range sampleSubmissions {
		rating := s.rating
		record, err := feedbackService.Submit(ctx, services.SubmitInput{Rating: &rating, Review: s.review})
		if err != nil {
			log.Error().Err(err).Int("rating", s.rating).Msg("Failed to seed feedback")
			continue
		}
		seeded++
		log.Debug().Int64("id", record.ID).Str("status", string(record.Status)).Msg("Seeded feedback")
	}

	log.Info().Int("count", seeded).Msg("Seeding complete")
}
