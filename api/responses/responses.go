package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote/httpstore"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
	"github.com/pedroasavelar91/nexus-familiar/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

// FromRemote maps store sentinels onto API error codes. Errors that already
// carry a code pass through; anything else is a dependency failure.
func FromRemote(err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case errors.Is(err, remote.ErrUnknownTable):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, httpstore.MessageUnknownTable)
	case errors.Is(err, remote.ErrNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "row not found")
	case errors.Is(err, remote.ErrConflict):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "unique constraint violated")
	case errors.Is(err, remote.ErrInvalidQuery):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid query").
			WithDetails(map[string]any{"error": err.Error()})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store operation failed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
