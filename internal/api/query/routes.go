package query

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers retrieval and generation routes. The streaming
// endpoint carries no flat deadline so a token stream can run as long as the
// client stays connected.
func RegisterRoutes(r chi.Router, h *Handler, requestTimeout time.Duration) {
	r.Post("/query/stream", h.QueryStream)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))

		r.Post("/search", h.Search)
		r.Post("/query", h.Query)
	})
}
