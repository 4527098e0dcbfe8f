package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/pedroasavelar91/nexus-familiar/api/routes"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote/gormstore"
	"github.com/pedroasavelar91/nexus-familiar/pkg/config"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
	"github.com/pedroasavelar91/nexus-familiar/pkg/metrics"
	"github.com/pedroasavelar91/nexus-familiar/pkg/migrate"
	"github.com/pedroasavelar91/nexus-familiar/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	gormStore, err := gormstore.New(dbClient.DB(), models.All())
	if err != nil {
		return err
	}
	var store remote.Store = gormStore

	deps := routes.Dependencies{DB: dbClient}
	if cfg.Redis.Enabled() {
		var redisClient *redis.Client
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		var feed *remote.ChangeFeed
		feed, err = remote.NewChangeFeed(gormStore, redisClient, cfg.Redis.ChangeChannel, logg)
		if err != nil {
			return err
		}
		store = feed.WithVersions(redisClient, cfg.Redis.VersionTTL)
		deps.Redis = redisClient
	} else {
		logg.Warn(ctx, "redis disabled; change feed not published")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Store = store
	deps.Gatherer = reg
	deps.Metrics = metrics.NewRemoteMetrics(reg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"driver": dbClient.Driver(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
