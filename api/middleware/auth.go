package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/trendlens/trendlens-api/api/responses"
	"github.com/trendlens/trendlens-api/pkg/clerk"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
)

// SessionCookie is where Clerk's frontend SDK stores the session token.
const SessionCookie = "__session"

// SessionVerifier validates a Clerk session token.
type SessionVerifier interface {
	Verify(token string) (*clerk.SessionClaims, error)
}

// Auth requires a valid Clerk session and seeds the request context with the
// user id.
func Auth(verifier SessionVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "session authentication is not configured"))
				return
			}
			token := sessionToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims, logg)))
		})
	}
}

// OptionalAuth attaches the session when a valid one is presented and lets
// the request through anonymously otherwise.
func OptionalAuth(verifier SessionVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if verifier == nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "optional auth rejected token")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims, logg)))
		})
	}
}

func withClaims(ctx context.Context, claims *clerk.SessionClaims, logg *logger.Logger) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, principal{userID: claims.Subject, sessionID: claims.SessionID})
	if logg != nil {
		ctx = logg.WithUserID(ctx, claims.Subject)
		if claims.SessionID != "" {
			ctx = logg.WithField(ctx, "session_id", claims.SessionID)
		}
	}
	return ctx
}

// sessionToken prefers the Authorization header over the session cookie.
func sessionToken(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			return strings.TrimSpace(raw[7:])
		}
		return raw
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
