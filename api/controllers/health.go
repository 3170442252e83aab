package controllers

import (
	"net/http"

	"github.com/cantadelicia/estanquillo-backend/api/responses"
	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/db"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Estanquillo-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Estanquillo-Env", cfg.App.Env)

		checks := map[string]string{"db": "ok", "redis": "ok"}
		healthy := true

		if err := dbP.Ping(r.Context()); err != nil {
			checks["db"] = err.Error()
			healthy = false
			logg.Warn(r.Context(), "readiness db ping failed")
		}
		if rdb != nil {
			if err := rdb.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
				logg.Warn(r.Context(), "readiness redis ping failed")
			}
		} else {
			checks["redis"] = "not configured"
		}

		if !healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, checks)
			return
		}
		responses.WriteSuccess(w, checks)
	}
}
