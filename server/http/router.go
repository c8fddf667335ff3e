package serverhttp

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"label-resolver/internal/config"
	"label-resolver/internal/middleware"
	resHnd "label-resolver/internal/resolve/handler"
	"label-resolver/server/http/handlers"
)

func NewRouter(cfg config.Config, h *resHnd.Handler, db handlers.Pinger, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// порядок важен: recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) * 1024 * 1024))

	// health-check
	r.Get("/health", handlers.Health(db))

	// everything below is tenant scoped
	r.Group(func(r chi.Router) {
		r.Use(middleware.Tenant())

		r.Post("/resolve", h.Resolve)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/preview", h.Preview)
			r.Post("/voice", h.Voice)
			r.Post("/confirm", h.Confirm)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/refresh", h.RefreshCatalog)
			r.Post("/import", h.ImportCatalog)
		})

		r.Post("/aliases", h.CreateAlias)
	})

	return r
}
