package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/Shahir-47/sarva-backend/api/responses"
	"github.com/Shahir-47/sarva-backend/pkg/config"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// HealthLive answers as long as the process is up.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sarva-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// DependencyPinger is the health check surface a backing store exposes.
type DependencyPinger interface {
	Ping(ctx context.Context) error
}

// HealthReady verifies the backing stores before reporting ready. A nil
// pinger is skipped so partial deployments (worker without redis, tests)
// can still probe the route.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]DependencyPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sarva-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
