package controllers

import (
	"context"
	"net/http"

	"github.com/citylineapps/permitflow-backend/api/responses"
	"github.com/citylineapps/permitflow-backend/pkg/config"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
)

const envHeader = "X-PermitFlow-Env"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies; any failure flips the check.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis, storage Pinger) http.HandlerFunc {
	checks := map[string]Pinger{
		"db":      db,
		"redis":   redis,
		"storage": storage,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		statuses := map[string]string{}
		healthy := true
		for name, dep := range checks {
			if dep == nil {
				statuses[name] = "skipped"
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				healthy = false
				statuses[name] = "unreachable"
				if logg != nil {
					logg.Error(logg.WithField(r.Context(), "dependency", name), "readiness check failed", err)
				}
				continue
			}
			statuses[name] = "ok"
		}

		if !healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": statuses,
			})
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"checks": statuses,
		})
	}
}
