package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pedroasavelar91/nexus-familiar/api/controllers"
	"github.com/pedroasavelar91/nexus-familiar/api/middleware"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/config"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
	"github.com/pedroasavelar91/nexus-familiar/pkg/metrics"
	"github.com/pedroasavelar91/nexus-familiar/pkg/redis"
)

// Dependencies are the collaborators the router serves. DB and Redis are
// optional and only feed the readiness check.
type Dependencies struct {
	Store    remote.Store
	DB       db.Pinger
	Redis    redis.Pinger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.RemoteMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	tables := controllers.NewTables(deps.Store, deps.Metrics, logg, cfg.App.MaxQueryLimit)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/v1/tables/{table}", func(r chi.Router) {
			r.Get("/", tables.Select())
			r.Post("/", tables.Insert())
			r.Delete("/", tables.DeleteMany())
			r.Patch("/{id}", tables.Update())
			r.Delete("/{id}", tables.Delete())
		})
	})

	return r
}
