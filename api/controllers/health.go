package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/emberline/storefront-backend/api/responses"
	"github.com/emberline/storefront-backend/pkg/config"
	"github.com/emberline/storefront-backend/pkg/logger"
)

const envHeader = "X-Storefront-Env"

// Pinger is the readiness surface every probed dependency exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes every wired dependency. Nil pingers are skipped so the
// endpoint works for deployments that run without Redis or Pub/Sub.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		failing := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				failing[name] = err.Error()
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness probe failed", err)
				}
			}
		}

		if len(failing) > 0 {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "degraded",
				"failing": failing,
			})
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
