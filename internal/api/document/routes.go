package document

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers document and source routes. Uploads index the
// whole document before responding, so they get their own longer deadline.
func RegisterRoutes(r chi.Router, h *Handler, uploadTimeout, requestTimeout time.Duration) {
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(uploadTimeout))
		r.Post("/documents", h.Upload)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", h.ListSources)
			r.Delete("/{source_id}", h.DeleteSource)
		})
		r.Get("/stats", h.Stats)
	})
}
