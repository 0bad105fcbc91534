package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/handler"
	"restaurant-ops-api/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	OrderHandler     *handler.OrderHandler
	InventoryHandler *handler.InventoryHandler
	BackupHandler    *handler.BackupHandler
	AdminHandler     *handler.AdminHandler
	AuthMiddleware   func(http.Handler) http.Handler
	Logger           logrus.FieldLogger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.NewRecovery(log))
	r.Use(middleware.NewLogging(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/status", cfg.Handler.Status)
			}

			if h := cfg.OrderHandler; h != nil {
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", h.List)
					r.Post("/", h.Create)
					r.Get("/completed", h.ListCompleted)
					r.Get("/stats", h.Stats)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.Get)
						r.Patch("/", h.Update)
						r.Delete("/", h.Delete)
						r.Patch("/status", h.UpdateStatus)
					})
				})
			}

			if h := cfg.InventoryHandler; h != nil {
				r.Route("/inventory", func(r chi.Router) {
					r.Get("/", h.List)
					r.Post("/", h.Create)
					r.Get("/low-stock", h.LowStock)
					r.Get("/expiring", h.Expiring)
					r.Get("/stats", h.Stats)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.Get)
						r.Patch("/", h.Update)
						r.Delete("/", h.Delete)
						r.Post("/adjust", h.Adjust)
						r.Post("/restock", h.Restock)
						r.Post("/consume", h.Consume)
						r.Get("/movements", h.Movements)
					})
				})
			}

			if h := cfg.BackupHandler; h != nil {
				r.Route("/backups", func(r chi.Router) {
					r.Get("/", h.List)
					r.Post("/", h.Create)
					r.Post("/import", h.Import)
					r.Route("/{id}", func(r chi.Router) {
						r.Delete("/", h.Delete)
						r.Get("/export", h.Export)
						r.Post("/restore", h.Restore)
					})
				})
			}

			if h := cfg.AdminHandler; h != nil {
				r.Get("/tables/{table}", h.GetTable)
				r.Get("/audit", h.GetAudit)
				r.Get("/admin/stats", h.GetStats)
			}
		})
	})

	return r
}
