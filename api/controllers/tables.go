package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pedroasavelar91/nexus-familiar/api/responses"
	"github.com/pedroasavelar91/nexus-familiar/api/validators"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
	"github.com/pedroasavelar91/nexus-familiar/pkg/metrics"
)

// DefaultMaxLimit caps list responses when no limit is configured.
const DefaultMaxLimit = 500

// Tables serves the row store over HTTP.
type Tables struct {
	store    remote.Store
	metrics  *metrics.RemoteMetrics
	logg     *logger.Logger
	maxLimit int
}

func NewTables(store remote.Store, m *metrics.RemoteMetrics, logg *logger.Logger, maxLimit int) *Tables {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Tables{store: store, metrics: m, logg: logg, maxLimit: maxLimit}
}

func (t *Tables) Select() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		query, err := validators.ParseTableQuery(r, t.maxLimit)
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		var rows []remote.Row
		err = t.observe(r.Context(), table, remote.OperationSelect, func(ctx context.Context) error {
			var err error
			rows, err = t.store.Select(ctx, table, query)
			return err
		})
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		if rows == nil {
			rows = []remote.Row{}
		}
		responses.WriteSuccess(w, rows)
	}
}

func (t *Tables) Insert() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		row, err := validators.DecodeRow(r)
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		var created remote.Row
		err = t.observe(r.Context(), table, remote.OperationInsert, func(ctx context.Context) error {
			var err error
			created, err = t.store.Insert(ctx, table, row)
			return err
		})
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func (t *Tables) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, id := chi.URLParam(r, "table"), chi.URLParam(r, "id")
		patch, err := validators.DecodeRow(r)
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		err = t.observe(r.Context(), table, remote.OperationUpdate, func(ctx context.Context) error {
			return t.store.Update(ctx, table, id, patch)
		})
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

func (t *Tables) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, id := chi.URLParam(r, "table"), chi.URLParam(r, "id")
		err := t.observe(r.Context(), table, remote.OperationDelete, func(ctx context.Context) error {
			return t.store.Delete(ctx, table, id)
		})
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (t *Tables) DeleteMany() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		ids, err := validators.ParseBulkIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		err = t.observe(r.Context(), table, remote.OperationDeleteMany, func(ctx context.Context) error {
			return t.store.DeleteMany(ctx, table, ids)
		})
		if err != nil {
			responses.WriteError(r.Context(), t.logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (t *Tables) observe(ctx context.Context, table string, op remote.Operation, fn func(context.Context) error) error {
	if t.store == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "store not configured")
	}
	if t.logg != nil {
		ctx = t.logg.WithResource(ctx, table)
	}
	start := time.Now()
	err := fn(ctx)
	t.metrics.Observe(table, string(op), time.Since(start), err)
	return responses.FromRemote(err)
}
