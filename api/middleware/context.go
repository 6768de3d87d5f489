package middleware

import "context"

type principalKey struct{}

// principal is the authenticated caller attached by Auth and OptionalAuth.
type principal struct {
	userID    string
	sessionID string
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

// UserIDFromContext returns the authenticated user id, or "" for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string { return principalFrom(ctx).userID }

func SessionIDFromContext(ctx context.Context) string { return principalFrom(ctx).sessionID }

// WithUserID attaches a user id without a session, mainly for tests and
// internal callers.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	p := principalFrom(ctx)
	p.userID = userID
	return context.WithValue(ctx, principalKey{}, p)
}
