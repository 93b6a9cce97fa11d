package api

import (
	"net/http"

	"github.com/docbase/rag-backend/internal/api/docs"
	documentapi "github.com/docbase/rag-backend/internal/api/document"
	"github.com/docbase/rag-backend/internal/api/middleware"
	queryapi "github.com/docbase/rag-backend/internal/api/query"
	"github.com/docbase/rag-backend/internal/config"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	documentHandler *documentapi.Handler,
	queryHandler *queryapi.Handler,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS)
	r.Use(chimiddleware.Throttle(cfg.MaxConcurrent))

	// Health check endpoint
	r.Get("/health", queryHandler.Health)

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	// Register routes
	documentapi.RegisterRoutes(r, documentHandler, cfg.UploadTimeout, cfg.RequestTimeout)
	queryapi.RegisterRoutes(r, queryHandler, cfg.RequestTimeout)

	return r
}
