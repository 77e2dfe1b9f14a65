package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

const healthCheckTimeout = 2 * time.Second

// HealthStatus reports the reachability of each backing store
type HealthStatus struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Redis  string `json:"redis"`
}

// RegisterHealthCheck registers the health check endpoint. Only an
// unreachable database makes the service unhealthy; cache may be nil.
func (h *ListingHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB, cache *redis.Client) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := HealthStatus{Status: "ok", DB: "connected", Redis: "connected"}

		if err := db.PingContext(ctx); err != nil {
			status.Status = "degraded"
			status.DB = "unavailable"
		}
		if cache == nil {
			status.Redis = "unavailable"
		} else if err := cache.Ping(ctx).Err(); err != nil {
			status.Redis = "unavailable"
		}

		if status.DB != "connected" {
			respondJSON(w, http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "Database unavailable",
				Data:    status,
			})
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Listing service is healthy",
			Data:    status,
		})
	}).Methods("GET")
}
