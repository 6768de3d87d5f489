package clerk

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendlens/trendlens-api/pkg/config"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
)

const testKID = "ins_test_key"

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signSession(t *testing.T, key *rsa.PrivateKey, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(now time.Time) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_123",
			Issuer:    "https://clerk.trendlens.test",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		AuthorizedParty: "https://app.trendlens.test",
		SessionID:       "sess_1",
	}
}

func staticKeyfunc(pub *rsa.PublicKey) jwt.Keyfunc {
	return func(*jwt.Token) (interface{}, error) { return pub, nil }
}

func TestSessionVerifierAcceptsValidToken(t *testing.T) {
	key := newRSAKey(t)
	v := NewSessionVerifierWithKeyfunc(staticKeyfunc(&key.PublicKey), "https://clerk.trendlens.test", []string{"https://app.trendlens.test"}, 5*time.Second)

	claims, err := v.Verify(signSession(t, key, validClaims(time.Now())))
	require.NoError(t, err)
	assert.Equal(t, "user_123", claims.Subject)
	assert.Equal(t, "sess_1", claims.SessionID)
}

func TestSessionVerifierRejections(t *testing.T) {
	key := newRSAKey(t)
	other := newRSAKey(t)
	now := time.Now()

	tests := []struct {
		name   string
		signer *rsa.PrivateKey
		mutate func(*SessionClaims)
	}{
		{name: "wrong key", signer: other, mutate: func(*SessionClaims) {}},
		{name: "expired", signer: key, mutate: func(c *SessionClaims) { c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute)) }},
		{name: "wrong issuer", signer: key, mutate: func(c *SessionClaims) { c.Issuer = "https://evil.test" }},
		{name: "wrong azp", signer: key, mutate: func(c *SessionClaims) { c.AuthorizedParty = "https://evil.test" }},
		{name: "missing sub", signer: key, mutate: func(c *SessionClaims) { c.Subject = "" }},
	}
	v := NewSessionVerifierWithKeyfunc(staticKeyfunc(&key.PublicKey), "https://clerk.trendlens.test", []string{"https://app.trendlens.test"}, time.Second)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims(now)
			tt.mutate(&claims)
			_, err := v.Verify(signSession(t, tt.signer, claims))
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
		})
	}

	_, err := v.Verify("")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	var nilVerifier *SessionVerifier
	_, err = nilVerifier.Verify("x")
	assert.Error(t, err)
}

func TestSessionVerifierToleratesClockSkew(t *testing.T) {
	key := newRSAKey(t)
	v := NewSessionVerifierWithKeyfunc(staticKeyfunc(&key.PublicKey), "", nil, 10*time.Second)
	now := time.Now()
	claims := validClaims(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(-3 * time.Second))

	_, err := v.Verify(signSession(t, key, claims))
	assert.NoError(t, err)
}

func TestNewSessionVerifierFetchesJWKS(t *testing.T) {
	key := newRSAKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKID,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	v, err := NewSessionVerifier(context.Background(), config.ClerkConfig{
		JWKSURL:     srv.URL,
		JWKSRefresh: time.Hour,
		ClockSkew:   time.Second,
	}, nil)
	require.NoError(t, err)
	defer v.Close()

	claims, err := v.Verify(signSession(t, key, validClaims(time.Now())))
	require.NoError(t, err)
	assert.Equal(t, "user_123", claims.Subject)
}

func TestNewSessionVerifierRequiresURL(t *testing.T) {
	_, err := NewSessionVerifier(context.Background(), config.ClerkConfig{}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
}
