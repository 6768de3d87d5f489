package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v4"

	"github.com/trendlens/trendlens-api/pkg/clerk"
	pkgerrors "github.com/trendlens/trendlens-api/pkg/errors"
)

type stubVerifier struct {
	tokens map[string]string
}

func (s stubVerifier) Verify(token string) (*clerk.SessionClaims, error) {
	sub, ok := s.tokens[token]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session token")
	}
	return &clerk.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
		SessionID:        "sess_" + sub,
	}, nil
}

func captureUser(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = UserIDFromContext(r.Context())
		if *captured != "" && SessionIDFromContext(r.Context()) != "sess_"+*captured {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	var user string
	handler := Auth(stubVerifier{}, nil)(captureUser(&user))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	var user string
	handler := Auth(stubVerifier{}, nil)(captureUser(&user))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if user != "" {
		t.Fatal("handler should not run")
	}
}

func TestAuthAcceptsBearerAndCookie(t *testing.T) {
	verifier := stubVerifier{tokens: map[string]string{"good": "user_1"}}

	var user string
	handler := Auth(verifier, nil)(captureUser(&user))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || user != "user_1" {
		t.Fatalf("bearer: expected 200/user_1 got %d/%q", resp.Code, user)
	}

	user = ""
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || user != "user_1" {
		t.Fatalf("cookie: expected 200/user_1 got %d/%q", resp.Code, user)
	}
}

func TestAuthWithoutVerifierIsConfigurationError(t *testing.T) {
	var user string
	handler := Auth(nil, nil)(captureUser(&user))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	verifier := stubVerifier{tokens: map[string]string{"good": "user_2"}}

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "anonymous", want: ""},
		{name: "invalid token", token: "bad", want: ""},
		{name: "valid token", token: "good", want: "user_2"},
	}
	for _, tt := range tests {
		var user string
		handler := OptionalAuth(verifier, nil)(captureUser(&user))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.token != "" {
			req.Header.Set("Authorization", "Bearer "+tt.token)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", tt.name, resp.Code)
		}
		if user != tt.want {
			t.Fatalf("%s: expected user %q got %q", tt.name, tt.want, user)
		}
	}
}
