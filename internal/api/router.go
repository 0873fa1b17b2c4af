package api

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yegors/airship-atc/internal/config"
	"github.com/yegors/airship-atc/pkg/logger"
)

// Router wires the HTTP routes
type Router struct {
	handler   *Handler
	wsHandler http.HandlerFunc
	cfg       config.ServerConfig
	logger    *logger.Logger
}

// NewRouter creates a router. wsHandler may be nil to disable /ws.
func NewRouter(handler *Handler, wsHandler http.HandlerFunc, cfg config.ServerConfig, log *logger.Logger) *Router {
	return &Router{
		handler:   handler,
		wsHandler: wsHandler,
		cfg:       cfg,
		logger:    log.Named("api-router"),
	}
}

// Routes returns the root handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(rt.logger))
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(CORS(rt.cfg.CORSAllowedOrigins))

	h := rt.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(rt.cfg.RateLimitPerSec, rt.cfg.RateLimitBurst))
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", h.GetHealth)
		r.Get("/routes", h.GetRoutes)
		r.Get("/sites/{site}", h.GetSite)
		r.Get("/chat", h.GetRecentChat)
		r.Put("/observer", h.SetObserver)

		r.Route("/airships", func(r chi.Router) {
			r.Get("/", h.GetAllAirships)
			r.Post("/", h.CreateAirship)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAirship)
				r.Delete("/", h.RemoveAirship)
				r.Get("/modes", h.GetModeHistory)
				r.Get("/docks", h.GetDockHistory)
				r.Get("/chat", h.GetChat)
			})
		})

		r.Route("/speed-override", func(r chi.Router) {
			r.Get("/", h.GetSpeedOverride)
			r.Put("/", h.SetSpeedOverride)
			r.Delete("/", h.ClearSpeedOverride)
		})
	})

	if rt.wsHandler != nil {
		r.Get("/ws", rt.wsHandler)
	}
	r.Handle("/metrics", promhttp.Handler())

	if dir := rt.cfg.StaticFilesDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", NewStaticFileHandler(dir, rt.logger))
		} else {
			rt.logger.Warn("Static files directory not found, not serving static files",
				logger.String("dir", dir))
		}
	}

	return r
}
