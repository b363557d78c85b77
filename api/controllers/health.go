package controllers

import (
	"net/http"

	"github.com/nexusauctions/nexus-backend/api/responses"
	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Nexus-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports whether the process can reach its backing stores.
func HealthReady(cfg *config.Config, client *db.Client, cache *redis.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Nexus-Env", cfg.App.Env)
		checks := map[string]string{"db": "ok", "redis": "ok"}
		healthy := true

		if client == nil || client.Ping(r.Context()) != nil {
			checks["db"] = "unreachable"
			healthy = false
		}
		if cache == nil || cache.Ping(r.Context()) != nil {
			checks["redis"] = "unreachable"
			healthy = false
		}

		if !healthy {
			logg.Warn(r.Context(), "readiness check failed")
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, checks)
			return
		}
		responses.WriteSuccess(w, checks)
	}
}
