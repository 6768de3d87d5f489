package controllers

import (
	"context"
	"net/http"

	"github.com/trendlens/trendlens-api/api/middleware"
	"github.com/trendlens/trendlens-api/api/responses"
	"github.com/trendlens/trendlens-api/api/validators"
	"github.com/trendlens/trendlens-api/internal/users"
	"github.com/trendlens/trendlens-api/pkg/db/models"
	dbtypes "github.com/trendlens/trendlens-api/pkg/db/types"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
)

// UserService is the subset of users.Service the account endpoints need.
type UserService interface {
	EnsureProvisioned(ctx context.Context, id string) (*models.User, error)
	SyncFromProvider(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, in users.ProfileUpdate) (*models.User, error)
	ListRecent(ctx context.Context, limit int) ([]models.User, error)
}

// CurrentUser returns the caller's record, provisioning it on first use.
func CurrentUser(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}
		user, err := svc.EnsureProvisioned(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}

type preferencesRequest struct {
	Theme    string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
	Language string `json:"language,omitempty" validate:"omitempty,oneof=en zh"`
	Currency string `json:"currency,omitempty" validate:"omitempty,oneof=USD CNY"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,max=64"`
}

type profileUpdateRequest struct {
	FullName    *string             `json:"fullName,omitempty" validate:"omitempty,max=200"`
	Preferences *preferencesRequest `json:"preferences,omitempty"`
}

func (r profileUpdateRequest) toInput() users.ProfileUpdate {
	in := users.ProfileUpdate{FullName: r.FullName}
	if r.Preferences != nil {
		in.Preferences = &dbtypes.Preferences{
			Theme:    r.Preferences.Theme,
			Language: r.Preferences.Language,
			Currency: r.Preferences.Currency,
			Timezone: r.Preferences.Timezone,
		}
	}
	return in
}

// UpdateCurrentUser applies a partial profile change for the caller.
func UpdateCurrentUser(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}

		var body profileUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.UpdateProfile(r.Context(), userID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}

// SyncCurrentUser re-reads the caller's profile from Clerk.
func SyncCurrentUser(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}
		user, err := svc.SyncFromProvider(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}

type authStatus struct {
	IsAuthenticated bool           `json:"isAuthenticated"`
	User            *users.UserDTO `json:"user"`
	IsAdmin         bool           `json:"isAdmin"`
}

// AuthStatus never fails for anonymous callers. A provisioning failure is
// logged and reported as an authenticated caller without a record.
func AuthStatus(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middleware.UserIDFromContext(ctx)
		if userID == "" || svc == nil {
			responses.WriteSuccess(w, authStatus{IsAuthenticated: userID != ""})
			return
		}

		status := authStatus{IsAuthenticated: true}
		user, err := svc.EnsureProvisioned(ctx, userID)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "auth.status.provision_failed")
			}
			responses.WriteSuccess(w, status)
			return
		}
		status.User = users.FromModel(user)
		status.IsAdmin = user.IsActive && user.IsAdmin
		responses.WriteSuccess(w, status)
	}
}

// AdminListUsers returns the most recently created users.
func AdminListUsers(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", users.DefaultListLimit, 1, users.MaxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListRecent(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModels(list))
	}
}

func requireUser(w http.ResponseWriter, r *http.Request, svc UserService, logg *logger.Logger) (string, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
		return "", false
	}
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return "", false
	}
	return userID, true
}
