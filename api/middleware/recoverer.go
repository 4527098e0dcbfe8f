package middleware

import (
	"fmt"
	"net/http"

	"github.com/pedroasavelar91/nexus-familiar/api/responses"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
)

// Recoverer turns a handler panic into an INTERNAL_ERROR envelope. A panic
// after the handler started its response only gets logged, since the status
// line is already on the wire.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err := fmt.Errorf("panic: %v", v)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":     v,
						"method":    r.Method,
						"path":      r.URL.Path,
						"committed": rec.status != 0,
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				if rec.status != 0 {
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "internal error"))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
