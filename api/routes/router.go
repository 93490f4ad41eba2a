package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ttd-workflows/api/controllers"
	"github.com/angelmondragon/ttd-workflows/api/controllers/changes"
	"github.com/angelmondragon/ttd-workflows/api/middleware"
	"github.com/angelmondragon/ttd-workflows/internal/delta"
	"github.com/angelmondragon/ttd-workflows/pkg/config"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

// RouterParams carries what the delta-sync HTTP surface serves.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Changes  delta.Repository
	Gatherer prometheus.Gatherer
	// Exports are the optional change export targets checked by /readyz.
	Exports map[string]controllers.Pinger
}

func NewRouter(params RouterParams) http.Handler {
	logg := params.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	deps := map[string]controllers.Pinger{"db": params.DB}
	if params.Redis != nil {
		deps["redis"] = params.Redis
	}
	for name, p := range params.Exports {
		if p != nil {
			deps[name] = p
		}
	}
	r.Get("/healthz", controllers.Healthz(params.Config))
	r.Get("/readyz", controllers.Readyz(params.Config, logg, deps))

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if params.Changes != nil {
		r.Route("/api/v1/delta", func(r chi.Router) {
			r.Get("/changes", changes.List(params.Changes, logg))
		})
	}
	return r
}
