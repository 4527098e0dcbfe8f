package validators

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
)

// maxBodyBytes bounds a single row payload.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeJSONBody decodes a struct body, rejecting unknown fields, and runs
// its validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

type rowBody struct {
	Columns remote.Row `json:"columns" validate:"required,min=1,dive,keys,required,excludesall=.,endkeys"`
}

// DecodeRow decodes a JSON object into a row. Column names must be non-empty
// and free of dots; the store validates them against its schema.
func DecodeRow(r *http.Request) (remote.Row, error) {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	var row remote.Row
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(rowBody{Columns: row}); err != nil {
		return nil, formatValidationErrors(err)
	}
	return row, nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "excludesall":
		return "contains invalid characters"
	}
	return "is invalid"
}
