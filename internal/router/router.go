package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/axlan/dice-logger/internal/handler"
	"github.com/axlan/dice-logger/internal/metrics"
	"github.com/axlan/dice-logger/internal/middleware"
	"github.com/axlan/dice-logger/pkg/apierror"
	"github.com/axlan/dice-logger/pkg/response"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler       *handler.Handler
	ReportHandler *handler.ReportHandler
	AdminHandler  *handler.AdminHandler
	Metrics       metrics.Recorder
	// Static serves everything no route matches, normally the output directory.
	Static http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.ReportHandler != nil {
		r.Get("/gen", cfg.ReportHandler.GenerateLatest)
		r.Get("/gen/", cfg.ReportHandler.GenerateLatest)
		r.Get("/gen/{ts}", cfg.ReportHandler.GenerateAt)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}
		if cfg.AdminHandler != nil {
			r.Get("/admin/stats", cfg.AdminHandler.GetStats)
		}
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			response.Error(w, apierror.NotFound("no such endpoint"))
		})
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	if cfg.Static != nil {
		r.NotFound(cfg.Static.ServeHTTP)
	}

	return r
}
