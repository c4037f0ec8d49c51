package rpc

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"assetescrow/core"
	"assetescrow/core/runtime"
	"assetescrow/gateway/middleware"
	"assetescrow/native/nft"
	"assetescrow/rpc/client"
	"assetescrow/storage"
)

const testJWTSecret = "rpc-test-secret"

type testEnv struct {
	node     *core.Node
	registry *nft.MemRegistry
	bank     *runtime.NativeBank
	server   *Server
	http     *httptest.Server
}

func newTestEnv(t testing.TB, mutate func(*ServerConfig)) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	env := &testEnv{registry: nft.NewMemRegistry(), bank: runtime.NewNativeBank()}
	node, err := core.NewNode(db, core.Options{
		Contract:   "escrow",
		RegistryID: "nft.registry",
		Registry:   env.registry,
		Bank:       env.bank,
		Authorizer: runtime.NewAllowList("admin"),
	})
	require.NoError(t, err)
	env.node = node

	cfg := ServerConfig{
		Auth: middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: testJWTSecret, Issuer: "rpc-tests"}, nil),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewServer(node, cfg)
	require.NoError(t, err)
	env.server = srv
	env.http = httptest.NewServer(srv.Handler())
	t.Cleanup(env.http.Close)
	return env
}

func (env *testEnv) client(token string) *client.Client {
	return client.New(env.http.URL+"/rpc", token)
}

func (env *testEnv) drain() { env.node.Drain(context.Background()) }

func adminToken(t testing.TB, subject string, scopes ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   "rpc-tests",
		"scope": scopes,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if subject != "" {
		claims["sub"] = subject
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func requireRPCCode(t testing.TB, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var rpcErr *client.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, code, rpcErr.Code, rpcErr.Message)
}
