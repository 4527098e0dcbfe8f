package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pedroasavelar91/nexus-familiar/internal/families"
	"github.com/pedroasavelar91/nexus-familiar/internal/household"
	"github.com/pedroasavelar91/nexus-familiar/internal/identity"
	"github.com/pedroasavelar91/nexus-familiar/internal/notifications"
	"github.com/pedroasavelar91/nexus-familiar/internal/optimistic"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
	"github.com/pedroasavelar91/nexus-familiar/pkg/metrics"
	"github.com/pedroasavelar91/nexus-familiar/pkg/redis"
)

// app is the per-invocation client state: one signed-in session, its
// membership directory and, on demand, the household caches.
type app struct {
	opts    *RootOptions
	out     *OutputFormatter
	logg    *logger.Logger
	store   remote.Store
	session *identity.Session
	dir     *families.Directory
	home    *household.Household
	notify  notifications.Notifier

	registry *prometheus.Registry
	sync     *metrics.SyncMetrics
	redis    *redis.Client
}

type action func(ctx context.Context, a *app, args []string) error

// run opens an app for the command, executes fn and renders any failure.
func (o *RootOptions) run(fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		out := o.formatter(cmd)
		a, err := o.open(cmd.Context(), cmd, out)
		if err != nil {
			return report(out, err)
		}
		defer a.close()

		if err := fn(cmd.Context(), a, args); err != nil {
			return report(out, err)
		}
		return nil
	}
}

// withHousehold additionally requires a family and loads its caches.
func (o *RootOptions) withHousehold(fn func(ctx context.Context, a *app, h *household.Household, args []string) error) func(*cobra.Command, []string) error {
	return o.run(func(ctx context.Context, a *app, args []string) error {
		h, err := a.household(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, a, h, args)
	})
}

// report renders err once and returns it as an ExitError.
func report(out *OutputFormatter, err error) error {
	_ = out.Error(err)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = WrapExitError(ExitFailure, "command failed", err)
	}
	exitErr.reported = true
	return exitErr
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) open(ctx context.Context, cmd *cobra.Command, out *OutputFormatter) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(o.Token) == "" {
		return nil, NewExitError(ExitCommandError, "missing --token (or NEXUS_TOKEN)")
	}
	who, err := identity.FromAccessToken(o.Token)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid token", err)
	}

	level := zerolog.ErrorLevel
	if o.Verbose {
		level = zerolog.DebugLevel
	}
	logg := logger.New(logger.Options{
		ServiceName: "household",
		Level:       level,
		Format:      "console",
		Output:      cmd.ErrOrStderr(),
	})

	store, err := o.connect(ctx, o)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connect", err)
	}
	repo, err := families.NewRepository(store)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connect", err)
	}

	a := &app{
		opts:     o,
		out:      out,
		logg:     logg,
		store:    store,
		session:  identity.NewSession(),
		registry: prometheus.NewRegistry(),
	}
	a.sync = metrics.NewSyncMetrics(a.registry)
	a.notify = a.notifier(ctx)

	dir, err := families.NewDirectory(repo, a.session, a.notify, logg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.dir = dir
	if err := a.session.SignIn(who); err != nil {
		a.close()
		return nil, WrapExitError(ExitCommandError, "sign in", err)
	}
	dir.Start(logg.WithUserID(ctx, who.ID.String()))
	if err := dir.LastError(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// notifier logs every notification and, when redis is configured, broadcasts
// it to the household's other sessions. An unreachable redis only disables
// the broadcast.
func (a *app) notifier(ctx context.Context) notifications.Notifier {
	logged := notifications.NewLogNotifier(a.logg)
	if !a.opts.redis.Enabled() {
		return logged
	}
	client, err := redis.New(ctx, a.opts.redis, a.logg)
	if err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "notification broadcast disabled")
		return logged
	}
	broadcaster, err := notifications.NewBroadcaster(client, a.opts.redis.NotificationChannel, a.logg)
	if err != nil {
		_ = client.Close()
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "notification broadcast disabled")
		return logged
	}
	a.redis = client
	return notifications.Multi{logged, broadcaster}
}

func (a *app) household(ctx context.Context) (*household.Household, error) {
	if a.home != nil {
		return a.home, nil
	}
	if families.FamilyIDOf(a.dir.Status()) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "not a member of any family")
	}
	h, err := household.New(a.dir, a.store, optimistic.Options{
		Notifier: a.notify,
		Metrics:  a.sync,
		Logger:   a.logg,
		Now:      a.opts.now,
	}, a.opts.now())
	if err != nil {
		return nil, err
	}
	if err := h.Start(ctx); err != nil {
		h.Stop()
		return nil, err
	}
	a.home = h
	return h, nil
}

func (a *app) close() {
	if a.home != nil {
		a.home.Stop()
	}
	if a.dir != nil {
		a.dir.Stop()
	}
	a.pushMetrics()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// pushMetrics hands the invocation's sync metrics to the configured
// pushgateway. Push failures are logged and never fail the command.
func (a *app) pushMetrics() {
	if a.opts.Pushgateway == "" {
		return
	}
	timeout := a.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	pusher := push.New(a.opts.Pushgateway, "household").Gatherer(a.registry)
	if who := a.session.Current(); who != nil {
		pusher = pusher.Grouping("user_id", who.ID.String())
	}
	if err := pusher.AddContext(ctx); err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "push sync metrics failed")
	}
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+what+" id").
			WithDetails(map[string]any{"value": raw})
	}
	return id, nil
}
