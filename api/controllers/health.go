package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/ttd-workflows/api/responses"
	"github.com/angelmondragon/ttd-workflows/pkg/config"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is anything readiness depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Healthz(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TTD-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// Readyz pings each named dependency; a nil pinger is skipped.
func Readyz(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TTD-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		failed := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies not ready").WithDetails(failed))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
