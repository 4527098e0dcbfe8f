package validators

import (
	"net/http"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote/httpstore"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
)

// ParseTableQuery reads filters, ordering and limit from the URL. The limit
// is capped at maxLimit.
func ParseTableQuery(r *http.Request, maxLimit int) (remote.Query, error) {
	query, err := httpstore.ParseQuery(r.URL.Query(), maxLimit)
	if err != nil {
		return remote.Query{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid query").
			WithDetails(map[string]any{"error": err.Error()})
	}
	return query, nil
}

// ParseBulkIDs accepts only an `id=in.(...)` filter, so a bulk delete can
// never widen to a whole table.
func ParseBulkIDs(r *http.Request) ([]string, error) {
	query, err := ParseTableQuery(r, 0)
	if err != nil {
		return nil, err
	}
	invalid := pkgerrors.New(pkgerrors.CodeValidation, "bulk delete requires a single id=in.(...) filter")
	if len(query.Conditions) != 1 || len(query.Orders) > 0 {
		return nil, invalid
	}
	cond := query.Conditions[0]
	values, ok := cond.Value.([]any)
	if cond.Column != "id" || cond.Op != remote.OpIn || !ok || len(values) == 0 {
		return nil, invalid
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, invalid
		}
		ids = append(ids, s)
	}
	return ids, nil
}
