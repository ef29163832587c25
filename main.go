package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/cache"
	"github.com/veridata-labs/veridata-engine/pkg/catalog"
	"github.com/veridata-labs/veridata-engine/pkg/classify"
	"github.com/veridata-labs/veridata-engine/pkg/config"
	"github.com/veridata-labs/veridata-engine/pkg/database"
	"github.com/veridata-labs/veridata-engine/pkg/handlers"
	"github.com/veridata-labs/veridata-engine/pkg/llm"
	"github.com/veridata-labs/veridata-engine/pkg/logging"
	"github.com/veridata-labs/veridata-engine/pkg/middleware"
	"github.com/veridata-labs/veridata-engine/pkg/repositories"
	"github.com/veridata-labs/veridata-engine/pkg/retry"
	"github.com/veridata-labs/veridata-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("catalog_base_url", cfg.Catalog.BaseURL),
		zap.Bool("ai_available", cfg.AI.IsAvailable()),
		zap.Bool("cache_enabled", cfg.Redis.Host != ""))

	ctx := context.Background()

	// Migrations run over database/sql via the pgx stdlib driver; the
	// application itself uses the pgx pool.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := retry.DoWithResult(ctx, nil, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	catalogClient, err := catalog.NewHTTPClient(&catalog.Config{
		BaseURL:       cfg.Catalog.BaseURL,
		ListTimeout:   time.Duration(cfg.Catalog.ListTimeoutSeconds) * time.Second,
		DetailTimeout: time.Duration(cfg.Catalog.DetailTimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create catalog client", zap.Error(err))
	}

	var llmClient llm.LLMClient
	if cfg.AI.IsAvailable() {
		llmClient, err = llm.NewFromProvider(cfg.AI.Provider, &llm.Config{
			Endpoint: cfg.AI.BaseURL,
			Model:    cfg.AI.Model,
			APIKey:   cfg.AI.APIKey,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create AI client", zap.Error(err))
		}
		logger.Info("AI classification enabled",
			zap.String("provider", cfg.AI.Provider),
			zap.String("model", cfg.AI.Model))
	} else {
		logger.Info("AI provider not configured, running rule-based classification only")
	}

	classifier := classify.NewClassifier(llmClient,
		time.Duration(cfg.AI.RequestTimeoutSeconds)*time.Second, logger)

	resultCache := cache.NewResultCache(
		cache.NewRedisStore(redisClient),
		time.Duration(cfg.Discovery.CacheTTLMinutes)*time.Minute,
		logger)

	sessionRepo := repositories.NewSessionRepository(db)
	fieldRepo := repositories.NewFieldRepository(db)

	discoveryService := services.NewDiscoveryService(
		sessionRepo, fieldRepo, catalogClient, classifier, resultCache,
		cfg.Discovery.BatchWidth, cfg.Catalog.AssetLimit, logger)
	reviewService := services.NewReviewService(fieldRepo, logger)
	statsService := services.NewStatsService(fieldRepo, logger)
	policyService := services.NewPolicyService(services.NewMemoryPolicyStore(), logger)

	reconciler := services.NewReconcileService(sessionRepo,
		time.Duration(cfg.Discovery.StaleSessionMinutes)*time.Minute, logger)
	go reconciler.Run(ctx)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewDiscoveryHandler(discoveryService, logger).RegisterRoutes(mux)
	handlers.NewFieldsHandler(reviewService, logger).RegisterRoutes(mux)
	handlers.NewStatsHandler(statsService, logger).RegisterRoutes(mux)
	handlers.NewPolicyHandler(policyService, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting veridata-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
