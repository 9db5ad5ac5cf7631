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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/config"
	"github.com/kailas-cloud/docqa/internal/db"
	dbPostgres "github.com/kailas-cloud/docqa/internal/db/postgres"
	dbSQLite "github.com/kailas-cloud/docqa/internal/db/sqlite"
	dbValkey "github.com/kailas-cloud/docqa/internal/db/valkey"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunker"
	"github.com/kailas-cloud/docqa/internal/extract"
	logpkg "github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/metrics"
	budgetrepo "github.com/kailas-cloud/docqa/internal/repository/budget"
	documentrepo "github.com/kailas-cloud/docqa/internal/repository/document"
	"github.com/kailas-cloud/docqa/internal/repository/embcache"
	"github.com/kailas-cloud/docqa/internal/segment"
	chiTransport "github.com/kailas-cloud/docqa/internal/transport/chi"
	ollamaTransport "github.com/kailas-cloud/docqa/internal/transport/ollama"
	openaiTransport "github.com/kailas-cloud/docqa/internal/transport/openai"
	askuc "github.com/kailas-cloud/docqa/internal/usecase/ask"
	documentuc "github.com/kailas-cloud/docqa/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/docqa/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docqa/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/docqa/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/docqa/internal/usecase/usage"
	"github.com/kailas-cloud/docqa/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docqa API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("generation_provider", cfg.Generation.Provider),
	)

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open chunk store", zap.Error(err))
	}
	defer store.Close()
	storeFields := []zap.Field{zap.Int("dimension", store.Dimension())}
	if fs, ok := store.(*dbSQLite.Store); ok {
		storeFields = append(storeFields, zap.String("path", fs.Path()))
		metrics.RegisterStoreFileSize(fs.Path())
	}
	logger.Info("Connected to chunk store", storeFields...)

	var kv *dbValkey.Store
	if cfg.Cache.Enabled() {
		kv, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create valkey client", zap.Error(err))
		}
		defer kv.Close()
		if err := kv.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Valkey not ready", zap.Error(err))
		}
		logger.Info("Connected to valkey", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	// One BudgetTracker shared by both embedders and the usage service.
	budget, err := buildBudget(ctx, cfg, kv, logger)
	if err != nil {
		logger.Fatal("Invalid budget configuration", zap.Error(err))
	}
	// Pass a nil interface, not a typed nil pointer.
	var budgetChecker embeddinguc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}

	provider := buildProvider(cfg, logger)
	docEmbedder := buildEmbedder(cfg, provider, cfg.Embedding.DocumentInstruction, kv, budgetChecker, logger)
	queryEmbedder := buildEmbedder(cfg, provider, cfg.Embedding.QueryInstruction, kv, budgetChecker, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	generator := buildGenerator(cfg)

	ch, err := chunker.New(segment.New(), cfg.Chunking.MaxWords)
	if err != nil {
		logger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	docRepo := documentrepo.New(store)

	ingestSvc := ingestuc.New(
		extract.NewRegistry(cfg.Chunking.WordsPerPage), ch, docEmbedder,
		docRepo, store.Dimension(), logger,
	)
	retrievalSvc := retrievaluc.New(docRepo, queryEmbedder, store.Dimension()).
		WithTopK(cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK)
	askSvc := askuc.New(
		retrievalSvc, generator, cfg.Generation.Provider, cfg.Generation.Model,
		time.Duration(cfg.Generation.TimeoutSec)*time.Second, logger,
	)
	docSvc := documentuc.New(docRepo, logger)
	usageSvc := usageuc.New(budgetReader)

	healthSvc := healthuc.New(healthuc.DefaultCheckTimeout).
		Register("database", healthuc.CheckFunc(store.Ping)).
		Register("embedding", healthChecker(provider)).
		Register("generation", healthChecker(generator))
	if kv != nil {
		healthSvc.Register("cache", healthuc.CheckFunc(kv.Ping))
	}

	server := chiTransport.NewServer(ingestSvc, docSvc, retrievalSvc, askSvc, usageSvc, healthSvc, logger).
		WithMaxUploadBytes(cfg.Upload.MaxBytes)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore opens the configured chunk store and waits for it to accept connections.
func openStore(ctx context.Context, cfg config.Config) (db.ChunkStore, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		s, err := dbPostgres.NewStore(ctx, dbPostgres.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			Dimension:        cfg.Embedding.Dimensions,
			ReadinessTimeout: time.Duration(cfg.Database.ReadinessTimeout) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := dbSQLite.NewStore(ctx, dbSQLite.Config{
			Path:      cfg.Database.Path,
			Dimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// buildBudget returns nil when no limit is configured.
func buildBudget(
	ctx context.Context, cfg config.Config, kv *dbValkey.Store, logger *zap.Logger,
) (*embeddinguc.BudgetTracker, error) {
	b := cfg.Embedding.Budget
	if !b.Limited() {
		return nil, nil
	}
	action, err := embeddinguc.ParseBudgetAction(b.Action)
	if err != nil {
		return nil, err
	}
	tracker := embeddinguc.NewBudgetTracker(
		cfg.Embedding.Provider, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger,
	)
	if kv != nil {
		// Counters survive restarts; loads the current values.
		tracker.WithStore(ctx, budgetrepo.New(kv, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
	}
	return tracker, nil
}

// buildProvider creates the raw embedding client shared by the document and query chains.
func buildProvider(cfg config.Config, logger *zap.Logger) domain.Embedder {
	if cfg.Embedding.Provider == config.ProviderOpenAI {
		return openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
	}
	return ollamaTransport.NewEmbedder(&ollamaTransport.EmbedderConfig{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Logger:  logger,
	})
}

// buildEmbedder assembles the decorator chain: provider -> cached -> instrumented -> instruction.
func buildEmbedder(
	cfg config.Config,
	provider domain.Embedder,
	instruction string,
	kv *dbValkey.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	embedder := provider
	if kv != nil {
		embedder = embcache.New(
			provider, kv, cfg.Embedding.Model,
			time.Duration(cfg.Cache.TTLHours)*time.Hour,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, budget, logger,
	)

	// Instruction prefix (outermost, so the cache key includes it)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func buildGenerator(cfg config.Config) domain.Generator {
	g := cfg.Generation
	if g.Provider == config.ProviderOpenAI {
		return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:      g.APIKey,
			BaseURL:     g.BaseURL,
			Model:       g.Model,
			MaxTokens:   g.MaxTokens,
			Temperature: float32(g.Temperature),
		})
	}
	return ollamaTransport.NewGenerator(&ollamaTransport.GeneratorConfig{
		BaseURL:     g.BaseURL,
		Model:       g.Model,
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
		// The ask service bounds each call; the client timeout only catches a stuck connection.
		Timeout: time.Duration(g.TimeoutSec+10) * time.Second,
	})
}

// healthChecker probes v when it implements domain.HealthChecker, otherwise reports healthy.
func healthChecker(v any) healthuc.CheckFunc {
	return func(ctx context.Context) error {
		if hc, ok := v.(domain.HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				return fmt.Errorf("health check: %w", err)
			}
		}
		return nil
	}
}
