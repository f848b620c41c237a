package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"golang.org/x/time/rate"

	"github.com/aperturehq/aperture/internal/api/handlers"
	"github.com/aperturehq/aperture/internal/api/middleware"
	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/embeddings"
	"github.com/aperturehq/aperture/internal/jobs"
	"github.com/aperturehq/aperture/internal/llm"
	"github.com/aperturehq/aperture/internal/observability"
	"github.com/aperturehq/aperture/internal/repository"
	"github.com/aperturehq/aperture/internal/service"
	"github.com/aperturehq/aperture/pkg/database"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)

	if cfg.OpenAIAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required: the engine cannot extract without a model provider")
		os.Exit(1)
	}

	// Metrics are optional: a broken exporter degrades to nil metrics, not a dead service.
	provider, metricsHandler, metrics, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{})
	if err != nil {
		slog.Error("Failed to initialize metrics, continuing without", "error", err)
		provider, metricsHandler, metrics = nil, nil, nil
	}

	// Initialize database connection with pgvector types registered per connection
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
		database.WithAfterConnect(database.RegisterVectorTypes))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize model clients
	llmClient := llm.NewOpenAIClient(cfg.OpenAIAPIKey, llm.WithModel(cfg.LLMModel))

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize embedding client", "error", err)
		os.Exit(1)
	}
	slog.Info("Model clients ready",
		"llm_model", cfg.LLMModel,
		"embedding_provider", cfg.EmbeddingProvider,
		"embedding_model", cfg.EmbeddingModel,
	)

	// Initialize repositories
	assessmentsRepo := repository.NewAssessmentsRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	correlationsRepo := repository.NewCorrelationsRepository(db)
	templateEmbeddingsRepo := repository.NewTemplateEmbeddingsRepository(db)

	// Initialize services
	extractionService := service.NewExtractionService(llmClient, cfg.LLMModel, cfg.ExtractionTemperature, cfg.ExtractionMaxHistory, metrics)
	mergeService := service.NewMergeService(assessmentsRepo, evidenceRepo, metrics)
	correlationService := service.NewCorrelationService(correlationsRepo, assessmentsRepo, evidenceRepo)
	pipeline := service.NewTurnPipeline(extractionService, mergeService, correlationService, metrics)

	assessmentsService := service.NewAssessmentsService(assessmentsRepo, evidenceRepo)
	correctionService := service.NewCorrectionService(llmClient, assessmentsRepo, evidenceRepo, cfg.CorrectionPenalty, metrics)

	constructService, err := service.NewConstructService(embedder, llmClient, cfg.EmbeddingModel, templateEmbeddingsRepo, metrics)
	if err != nil {
		slog.Error("Failed to initialize construct service", "error", err)
		os.Exit(1)
	}

	discoveryService := service.NewDiscoveryService(llmClient, embedder, metrics)

	// Initialize the River queue running the detached turn pipeline
	riverClient, err := initRiver(ctx, db, cfg, pipeline)
	if err != nil {
		slog.Error("Failed to initialize River job queue", "error", err)
		os.Exit(1)
	}
	jobInserter := jobs.NewRiverJobInserter(riverClient)
	slog.Info("Extraction queue started",
		"workers", cfg.ExtractionQueueWorkers,
		"rate_per_second", cfg.ExtractionRatePerSecond,
	)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	assessmentsHandler := handlers.NewAssessmentsHandler(assessmentsService, correctionService)
	constructsHandler := handlers.NewConstructsHandler(constructService)
	patternsHandler := handlers.NewPatternsHandler(discoveryService)
	correlationsHandler := handlers.NewCorrelationsHandler(correlationService)
	turnsHandler := handlers.NewTurnsHandler(jobInserter)

	// Public endpoints (no authentication required)
	publicMux := http.NewServeMux()
	publicMux.HandleFunc("GET /health", healthHandler.Check)
	if metricsHandler != nil {
		publicMux.Handle("GET /metrics", metricsHandler)
	}

	// Protected endpoints (authentication required)
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /v1/turns", turnsHandler.Submit)

	protectedMux.HandleFunc("GET /v1/users/{user_id}/assessments", assessmentsHandler.List)
	protectedMux.HandleFunc("GET /v1/users/{user_id}/assessments/{id}", assessmentsHandler.Get)
	protectedMux.HandleFunc("PUT /v1/users/{user_id}/assessments/{id}/correct", assessmentsHandler.Correct)

	protectedMux.HandleFunc("POST /v1/constructs/match", constructsHandler.Match)
	protectedMux.HandleFunc("GET /v1/constructs/templates", constructsHandler.Templates)
	protectedMux.HandleFunc("POST /v1/constructs/validate", constructsHandler.Validate)

	protectedMux.HandleFunc("POST /v1/patterns/discover", patternsHandler.Discover)

	protectedMux.HandleFunc("GET /v1/responses/{token}", correlationsHandler.Get)

	var protectedHandler http.Handler = protectedMux
	protectedHandler = middleware.Auth(cfg.APIKey)(protectedHandler)

	// Combine both handlers
	mainMux := http.NewServeMux()
	mainMux.Handle("/v1/", protectedHandler)
	mainMux.Handle("/", publicMux) // Catch-all for public routes (/health, /metrics)

	// Outer chain: RequestID first so logging and metrics see it
	var handler http.Handler = mainMux
	handler = middleware.Logging(handler)
	handler = middleware.Metrics(metrics)(handler)
	handler = middleware.RequestID(handler)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // construct match and discovery wait on providers
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// 2. Stop River (waits for in-flight jobs to complete)
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River forced to shutdown", "error", err)
	}

	// 3. Flush metrics
	if provider != nil {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics provider forced to shutdown", "error", err)
		}
	}

	slog.Info("Server exited")
}

// setupLogging configures slog with the specified log level. The context
// handler decorates records with request_id.
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := observability.NewContextHandler(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(slog.New(handler))
}

// newEmbedder builds the configured embedding client.
func newEmbedder(ctx context.Context, cfg *config.Config) (embeddings.Client, error) {
	switch cfg.EmbeddingProvider {
	case "google":
		return embeddings.NewGoogleClient(ctx, cfg.GoogleAPIKey,
			embeddings.WithGoogleModel(cfg.EmbeddingModel),
			embeddings.WithGoogleDimensions(cfg.EmbeddingDimensions))
	case "mock":
		slog.Warn("Using mock embeddings; construct matching will be meaningless")
		return embeddings.NewMockClientWithDimensions(cfg.EmbeddingDimensions), nil
	default:
		return embeddings.NewOpenAIClient(cfg.OpenAIAPIKey,
			embeddings.WithEmbeddingModel(cfg.EmbeddingModel),
			embeddings.WithDimensions(cfg.EmbeddingDimensions)), nil
	}
}

// initRiver initializes the River job queue client and the extraction worker
func initRiver(
	ctx context.Context,
	db *pgxpool.Pool,
	cfg *config.Config,
	pipeline *service.TurnPipeline,
) (*river.Client[pgx.Tx], error) {
	// One limiter in front of all provider calls made by the pipeline
	rateLimiter := rate.NewLimiter(rate.Limit(cfg.ExtractionRatePerSecond), cfg.ExtractionRateBurst)

	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewTurnExtractionWorker(pipeline, rateLimiter))

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			jobs.QueueExtraction: {MaxWorkers: cfg.ExtractionQueueWorkers},
		},
		Workers:      workers,
		ErrorHandler: &jobs.ErrorHandler{},
	})
	if err != nil {
		return nil, err
	}

	// Start River (begins processing jobs)
	if err := riverClient.Start(ctx); err != nil {
		return nil, err
	}

	return riverClient, nil
}
