package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pedroasavelar91/nexus-familiar/api/responses"
	"github.com/pedroasavelar91/nexus-familiar/pkg/config"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
	"github.com/pedroasavelar91/nexus-familiar/pkg/redis"
)

const (
	envHeader    = "X-Nexus-Env"
	readyTimeout = 2 * time.Second
)

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every configured dependency. A nil pinger is reported as
// disabled.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := map[string]any{}
		for name, p := range map[string]pinger{"database": dbP, "redis": redisP} {
			if p == nil {
				checks[name] = "disabled"
				continue
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "unavailable"
				failed[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}

		if len(failed) > 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(failed))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
