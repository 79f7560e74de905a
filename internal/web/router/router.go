// Package router wires the HTTP API of the easyblocks server on chi.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/metrics"
	"github.com/easyblocks/easyblocks/internal/render"
	"github.com/easyblocks/easyblocks/internal/store"
	"github.com/easyblocks/easyblocks/internal/web/cache"
	"github.com/easyblocks/easyblocks/internal/web/middleware"
	"github.com/easyblocks/easyblocks/internal/web/profiling"
	"github.com/easyblocks/easyblocks/internal/web/ratelimit"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 4 << 20

// Config holds what the routes serve.
type Config struct {
	Renderer  *render.Renderer
	Store     store.Store
	ProjectID string

	// Cache holds rendered documents. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration

	// Websocket serves /ws when set.
	Websocket http.Handler

	// CORS is applied when set.
	CORS *middleware.CORSConfig

	// RateLimiter throttles /api per client when set.
	RateLimiter ratelimit.Limiter

	// Profiling mounts pprof when set.
	Profiling *profiling.Config

	Logger logger.Logger
}

type handlers struct {
	cfg Config
	log logger.Logger
}

// New builds the router.
func New(cfg Config) http.Handler {
	h := &handlers{cfg: cfg, log: logger.OrNop(cfg.Logger)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(h.log))
	r.Use(middleware.Logging(h.log, "/healthz", "/metrics"))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", metrics.Handler())
	if cfg.Websocket != nil {
		r.Handle("/ws", cfg.Websocket)
	}

	if cfg.Profiling != nil {
		profiling.RegisterRoutes(r, cfg.Profiling)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(ratelimit.Middleware(cfg.RateLimiter, ratelimit.ClientIP, h.log))
		}
		r.Get("/definitions", h.definitions)
		r.Post("/compile", h.compile)
		r.Post("/render", h.render)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", h.listDocuments)
			r.Get("/{documentID}", h.getDocument)
			r.Put("/{documentID}", h.putDocument)
			r.Get("/{documentID}/render", h.renderDocument)
		})
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) definitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Renderer.Compiler.Registry().Serialize())
}
