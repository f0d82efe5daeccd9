// internal/handlers/http.go
package handlers

import (
	"context"
	"net/http"

	"github.com/jason-s-yu/naijaplay/internal/gateway"
	"github.com/jason-s-yu/naijaplay/internal/metrics"
	"github.com/jason-s-yu/naijaplay/internal/middleware"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Degrader reports whether the room store has fallen back to memory.
type Degrader interface {
	Degraded() bool
}

// RoomsHandler serves the current room listing as JSON.
func RoomsHandler(logger *logrus.Logger, gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rooms := gw.Rooms().GetAllRooms(r.Context())
		if rooms == nil {
			rooms = []models.Room{}
		}
		writeJSON(logger, w, http.StatusOK, map[string]interface{}{"rooms": rooms})
	}
}

// StatsHandler serves the same counters online_stats carries, plus the queue size.
func StatsHandler(logger *logrus.Logger, gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, http.StatusOK, gw.Stats(r.Context()))
	}
}

// HealthHandler reports liveness and which room backend is serving.
// store may be nil when rooms are held in memory only.
func HealthHandler(logger *logrus.Logger, store Degrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		backend := "memory"
		if store != nil && !store.Degraded() {
			backend = "redis"
		}
		writeJSON(logger, w, http.StatusOK, map[string]string{"status": "ok", "rooms": backend})
	}
}

// RouterConfig carries what NewRouter needs beyond the gateway.
type RouterConfig struct {
	Shutdown       context.Context
	Profiles       *ProfileResolver
	Store          Degrader
	AllowedOrigins []string
}

// NewRouter mounts every endpoint. HTTP endpoints get CORS and request
// logging; /ws checks origins itself during the upgrade.
func NewRouter(logger *logrus.Logger, gw *gateway.Gateway, cfg RouterConfig) http.Handler {
	shutdown := cfg.Shutdown
	if shutdown == nil {
		shutdown = context.Background()
	}
	logged := middleware.LogMiddleware(logger)
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowCredentials: true,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", WSHandler(shutdown, logger, gw, cfg.Profiles, cfg.AllowedOrigins))
	mux.Handle("/rooms", logged(c.Handler(RoomsHandler(logger, gw))))
	mux.Handle("/stats", logged(c.Handler(StatsHandler(logger, gw))))
	mux.Handle("/healthz", HealthHandler(logger, cfg.Store))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
