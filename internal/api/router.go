// Package api provides the HTTP API of the prediction dashboard.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/canemap/canemap/internal/api/handler"
	"github.com/canemap/canemap/internal/api/middleware"
	"github.com/canemap/canemap/internal/api/response"
	"github.com/canemap/canemap/internal/dashboard"
	"github.com/canemap/canemap/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Manager  *dashboard.Manager
	Registry *resilience.Registry

	CacheClearer handler.CacheClearer
	Publisher    handler.JobPublisher

	ReadinessChecks []handler.ReadinessCheck
	RequireTLS      bool
}

// NewRouter creates a chi router with every dashboard route.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Order matters: the request ID must exist before tracing and logging.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})

	manager := cfg.Manager
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.ReadinessChecks,
		Sessions:  manager.Count,
	})
	metadataHandler := handler.NewMetadataHandler()
	sessionHandler := handler.NewSessionHandler(manager, cfg.Logger)
	cacheHandler := handler.NewCacheHandler(handler.CacheHandlerConfig{
		Clearer:   cfg.CacheClearer,
		Publisher: cfg.Publisher,
		Logger:    cfg.Logger,
	})

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	sessionRateLimit := middleware.RateLimitBySession(middleware.StandardRateLimit)
	applyRateLimit := middleware.RateLimitBySession(middleware.ApplyRateLimit)
	cacheRateLimit := middleware.RateLimitByIP(middleware.CacheRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/zones", metadataHandler.ListZones)
			r.Get("/months", metadataHandler.ListMonths)
			r.Get("/legend", metadataHandler.GetLegend)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.RequireJSON)
			r.With(standardRateLimit).Post("/", sessionHandler.CreateSession)

			r.Route("/{"+middleware.SessionIDParam+"}", func(r chi.Router) {
				r.Use(sessionRateLimit)
				r.Get("/", sessionHandler.GetSession)
				r.Delete("/", sessionHandler.DeleteSession)
				r.Patch("/filter", sessionHandler.PatchFilter)
				r.Put("/filter/month", sessionHandler.SelectMonth)
				r.Put("/focus", sessionHandler.FocusZone)
				r.Delete("/focus", sessionHandler.ResetZoneFocus)
				r.With(applyRateLimit).Post("/apply", sessionHandler.Apply)
				r.Get("/progress", sessionHandler.GetProgress)
				r.Get("/map", sessionHandler.GetMap)
				r.Post("/map/markers/{"+handler.MarkerIDParam+"}/popup", sessionHandler.OpenPopup)
			})
		})

		r.With(cacheRateLimit).Delete("/cache", cacheHandler.ClearCache)
	})

	return r
}
