package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   "escrowd",
		"aud":   "ops",
		"sub":   "admin",
		"scope": "escrow:admin escrow:read",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func newTestAuth() *Authenticator {
	return NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "escrowd", Audience: "ops"}, nil)
}

func TestAuthenticateExtractsScopes(t *testing.T) {
	auth := newTestAuth()
	require.True(t, auth.Enabled())

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
	ctx, err := auth.Authenticate(req)
	require.NoError(t, err)
	require.Equal(t, []string{"escrow:admin", "escrow:read"}, ScopesFromContext(ctx))
	require.Equal(t, "admin", SubjectFromContext(ctx))
}

func TestAuthenticateRejects(t *testing.T) {
	auth := newTestAuth()
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"
	noAudience := validClaims()
	delete(noAudience, "aud")

	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"bad secret":   "Bearer " + signToken(t, "other", validClaims()),
		"expired":      "Bearer " + signToken(t, testSecret, expired),
		"issuer":       "Bearer " + signToken(t, testSecret, wrongIssuer),
		"audience":     "Bearer " + signToken(t, testSecret, noAudience),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			_, err := auth.Authenticate(req)
			require.Error(t, err)
		})
	}
}

func TestMiddlewareRequiresScope(t *testing.T) {
	auth := newTestAuth()
	handler := auth.Middleware("escrow:admin")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/rpc", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)

	limited := validClaims()
	limited["scope"] = []interface{}{"escrow:read"}
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, limited))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)

	req = httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestOptionalPassesAnonymous(t *testing.T) {
	auth := newTestAuth()
	var scopes []string
	handler := auth.Optional()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scopes = ScopesFromContext(r.Context())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/rpc", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, scopes)

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestUnconfiguredAuthenticatorRejectsTokens(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	require.False(t, auth.Enabled())
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
	_, err := auth.Authenticate(req)
	require.ErrorIs(t, err, ErrInvalidToken)
}
