package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig controls the cross-cutting parts of the router.
type RouterConfig struct {
	CORSOrigins []string
}

// NewRouter wires middleware, health, metrics and the chat routes.
func NewRouter(cfg RouterConfig, chat *ChatHandler) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(CORS(cfg.CORSOrigins))

	r.Handle("/metrics", promhttp.Handler())
	chat.RegisterRoutes(r)

	return r
}
