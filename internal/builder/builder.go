package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docbase/rag-backend/internal/api"
	documentapi "github.com/docbase/rag-backend/internal/api/document"
	queryapi "github.com/docbase/rag-backend/internal/api/query"
	"github.com/docbase/rag-backend/internal/chunker"
	"github.com/docbase/rag-backend/internal/classifier"
	"github.com/docbase/rag-backend/internal/config"
	"github.com/docbase/rag-backend/internal/ingest"
	"github.com/docbase/rag-backend/internal/integration/embedding"
	"github.com/docbase/rag-backend/internal/integration/generation"
	"github.com/docbase/rag-backend/internal/integration/vectorstore"
	"github.com/docbase/rag-backend/internal/repository"
	indexinguc "github.com/docbase/rag-backend/internal/usecase/indexing"
	queryuc "github.com/docbase/rag-backend/internal/usecase/query"
	"go.uber.org/zap"
)

func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	// Setup database connection
	db, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}

	// Run database migrations
	logger.Info("Running database migrations")
	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize repositories
	sourceRepo := repository.NewSourcePostgres(db)
	logger.Info("Repositories initialized")

	// Initialize external service connectors (with mock support)
	var embedConnector indexinguc.Embedder
	var vectorConnector vectorStoreConnector
	var genConnector queryuc.Generator

	if cfg.EnableMocks {
		logger.Info("Using mock connectors for external services")
		embedConnector = embedding.NewMockConnector(logger)
		vectorConnector = vectorstore.NewMockConnector(logger)
		genConnector = generation.NewMockConnector(logger)
	} else {
		logger.Info("Using real connectors for external services")
		embedConnector = embedding.NewConnector(cfg.EmbeddingCfg, logger)
		vectorConnector = vectorstore.NewConnector(cfg.VectorStoreCfg, logger)
		genConnector = generation.NewConnector(cfg.GenerationCfg, logger)
	}

	if err := vectorConnector.EnsureCollection(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}
	logger.Info("Vector collection ready")

	// Initialize pipeline components
	normalizer := ingest.NewNormalizer()
	chk := chunker.New(cfg.ChunkerCfg, logger)
	cls := classifier.New(cfg.ClassifierCfg)

	// Initialize use cases
	indexingUC := indexinguc.NewUsecase(
		normalizer,
		chk,
		embedConnector,
		vectorConnector,
		sourceRepo,
		cfg.EmbeddingCfg.Concurrency,
		logger,
	)

	queryUC := queryuc.NewUsecase(
		cls,
		embedConnector,
		vectorConnector,
		genConnector,
		sourceRepo,
		cfg.EmbeddingCfg.CacheTTL,
		cfg.QueryCfg,
		logger,
	)
	logger.Info("Use cases initialized")

	// Setup API handlers
	documentHandler := documentapi.NewHandler(indexingUC, cfg.MaxUploadSize)
	queryHandler := queryapi.NewHandler(queryUC)
	logger.Info("API handlers initialized")

	// Setup router
	router := api.SetupRouter(documentHandler, queryHandler, cfg, logger)
	logger.Info("HTTP router configured")

	// Create HTTP server. No write timeout: uploads and token streams hold
	// the response open well past a typical request, deadlines are applied
	// per route group instead.
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		db:     db,
		logger: logger,
	}, nil
}

// vectorStoreConnector is the full surface both use cases need from the
// vector store, satisfied by the real and the mock connector alike.
type vectorStoreConnector interface {
	EnsureCollection(ctx context.Context) error
	indexinguc.VectorStore
	queryuc.VectorStore
}

func setupLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = lvl
	return zapCfg.Build()
}
