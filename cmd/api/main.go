package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/feedbackinsights/internal/adapters/cache"
	"github.com/zatekoja/feedbackinsights/internal/adapters/database"
	"github.com/zatekoja/feedbackinsights/internal/api/handlers"
	"github.com/zatekoja/feedbackinsights/internal/api/routes"
	"github.com/zatekoja/feedbackinsights/internal/application/services"
	"github.com/zatekoja/feedbackinsights/internal/domain/providers"
	"github.com/zatekoja/feedbackinsights/internal/domain/repositories"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/clients/openai"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/clients/redis"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
	"github.com/zatekoja/feedbackinsights/pkg/config"
	"github.com/zatekoja/feedbackinsights/pkg/retry"
	"github.com/zatekoja/feedbackinsights/pkg/secrets"
)

func main() {
	// Pull credentials from Vault before reading configuration
	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv(), nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault secrets: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Env, cfg.Log.Level)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Feedback store: Postgres first, in-memory once Postgres proves unreachable
	var primary repositories.FeedbackRepository
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize PostgreSQL client")
	} else {
		defer pgClient.Close()

		feedbackAdapter := database.NewFeedbackAdapter(pgClient)
		primary = feedbackAdapter

		if err := pgClient.WaitReady(ctx, startupRetryConfig(), cfg.Database.ConnectTimeout); err != nil {
			log.Warn().Err(err).Msg("PostgreSQL not reachable at startup")
		} else if cfg.Database.AutoMigrate {
			if err := feedbackAdapter.EnsureSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to ensure feedback schema")
			} else {
				log.Info().Msg("Feedback schema ensured")
			}
		}
	}

	fallback := database.NewMemoryFeedbackAdapter(database.SampleFeedback(time.Now()))
	store := database.NewDegradingFeedbackRepository(primary, fallback)

	cacheProvider, closeCache := newCacheProvider(ctx, cfg)
	defer closeCache()
	feedbackRepo := database.NewCachedFeedbackRepository(store, cacheProvider, cfg.Cache.ListTTL)

	if cfg.Cache.WarmInterval > 0 {
		services.NewCacheWarmingService(feedbackRepo, 0).StartPeriodicWarming(ctx, cfg.Cache.WarmInterval)
	}

	// Insight generation
	insightConfig := services.InsightConfig{Timeout: cfg.OpenAI.Timeout}
	if cfg.OpenAI.HasCredential() {
		openaiClient, err := openai.NewClient(&cfg.OpenAI, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize OpenAI client, using fallback insights")
		} else {
			defer openaiClient.Close()
			insightConfig.Provider = openaiClient
			log.Info().Str("model", openaiClient.Model()).Msg("OpenAI client initialized")
		}
	} else {
		log.Info().Msg("OpenAI not configured, using fallback insights")
	}
	insightService := services.NewInsightService(insightConfig)
	feedbackService := services.NewFeedbackService(feedbackRepo, insightService)

	// Set up router
	router := routes.NewRouter(
		handlers.NewFeedbackHandler(feedbackService),
		handlers.NewHealthHandler(store, insightService),
		metrics,
	)
	handler := router.SetupRoutes()

	// Create HTTP server. Submissions wait on up to two sequential
	// completions, so the write timeout leaves room for both.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.OpenAI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Bool("store_degraded", store.Degraded()).Msg("Server stopped")
}

// newCacheProvider returns Redis when enabled and reachable, otherwise an
// in-process cache.
func newCacheProvider(ctx context.Context, cfg *config.Config) (providers.CacheProvider, func()) {
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err == nil {
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
			return cache.NewRedisAdapter(redisClient), func() {
				if err := redisClient.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing Redis client")
				}
			}
		}
		log.Warn().Err(err).Msg("Failed to initialize Redis client, using in-process cache")
	}
	return cache.NewMemoryAdapter(time.Minute), func() {}
}

func startupRetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.MaxTotalTimeout = 20 * time.Second
	return cfg
}
