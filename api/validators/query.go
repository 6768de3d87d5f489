package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter. A missing value
// yields def; anything non-numeric or outside [lo, hi] is a validation error
// naming the field.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	details := map[string]any{"field": key}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be an integer").WithDetails(details)
	}
	if n < lo || n > hi {
		details["min"], details["max"] = lo, hi
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" out of range").WithDetails(details)
	}
	return n, nil
}
