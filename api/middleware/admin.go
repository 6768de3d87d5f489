package middleware

import (
	"context"
	"net/http"

	"github.com/trendlens/trendlens-api/api/responses"
	"github.com/trendlens/trendlens-api/pkg/db/models"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
)

// AdminLookup loads the local record of the authenticated user.
type AdminLookup interface {
	EnsureProvisioned(ctx context.Context, id string) (*models.User, error)
}

// RequireAdmin lets through active users flagged as admins. It must run
// after Auth.
func RequireAdmin(lookup AdminLookup, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if userID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			user, err := lookup.EnsureProvisioned(r.Context(), userID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if !user.IsActive || !user.IsAdmin {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
