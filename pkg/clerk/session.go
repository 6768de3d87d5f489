package clerk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/trendlens/trendlens-api/pkg/config"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
	"github.com/trendlens/trendlens-api/pkg/logger"
)

// SessionClaims are the claims of a Clerk session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	AuthorizedParty string `json:"azp,omitempty"`
	SessionID       string `json:"sid,omitempty"`
}

// SessionVerifier validates Clerk session JWTs against the instance JWKS.
type SessionVerifier struct {
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	issuer  string
	parties []string
	skew    time.Duration
	now     func() time.Time
}

// NewSessionVerifier fetches the JWKS and keeps it refreshed in the background
// until Close is called.
func NewSessionVerifier(ctx context.Context, cfg config.ClerkConfig, logg *logger.Logger) (*SessionVerifier, error) {
	if !cfg.SessionAuthEnabled() {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "clerk jwks url is required")
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   cfg.JWKSRefresh,
		RefreshRateLimit:  time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			if logg != nil {
				logg.Error(ctx, "clerk jwks refresh failed", err)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching clerk jwks: %w", err)
	}

	v := NewSessionVerifierWithKeyfunc(jwks.Keyfunc, cfg.Issuer, cfg.AuthorizedParties, cfg.ClockSkew)
	v.jwks = jwks
	return v, nil
}

// NewSessionVerifierWithKeyfunc builds a verifier around a caller-supplied key lookup.
func NewSessionVerifierWithKeyfunc(kf jwt.Keyfunc, issuer string, parties []string, skew time.Duration) *SessionVerifier {
	cleaned := make([]string, 0, len(parties))
	for _, p := range parties {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &SessionVerifier{
		keyfunc: kf,
		issuer:  strings.TrimSpace(issuer),
		parties: cleaned,
		skew:    skew,
		now:     time.Now,
	}
}

// Verify parses the token and checks signature, expiry, issuer and azp.
func (v *SessionVerifier) Verify(token string) (*SessionClaims, error) {
	if v == nil || v.keyfunc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session verification unavailable")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session token")
	}

	claims := &SessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, v.keyfunc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}
	if err := v.validate(claims); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}
	return claims, nil
}

func (v *SessionVerifier) validate(claims *SessionClaims) error {
	now := v.now()
	if claims.Subject == "" {
		return errors.New("missing sub")
	}
	if !claims.VerifyExpiresAt(now.Add(-v.skew), true) {
		return errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now.Add(v.skew), false) {
		return errors.New("token not yet valid")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return errors.New("unexpected issuer")
	}
	if len(v.parties) > 0 && claims.AuthorizedParty != "" {
		for _, p := range v.parties {
			if p == claims.AuthorizedParty {
				return nil
			}
		}
		return errors.New("unauthorized party")
	}
	return nil
}

// Close stops the background JWKS refresh.
func (v *SessionVerifier) Close() {
	if v != nil && v.jwks != nil {
		v.jwks.EndBackground()
	}
}
