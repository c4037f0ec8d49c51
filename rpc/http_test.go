package rpc

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"assetescrow/native/nft"
	"assetescrow/rpc/modules"
)

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := http.Get(env.http.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	require.NoError(t, env.client("").Call(context.Background(), "escrow_listUsers", nil, nil))

	res, err = http.Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	require.Contains(t, string(body), "escrow_rpc_requests_total")
	require.Contains(t, string(body), "escrow_http_requests_total")
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "empty", body: "", status: http.StatusBadRequest, code: "-32600"},
		{name: "garbage", body: "{", status: http.StatusBadRequest, code: "-32700"},
		{name: "version", body: `{"jsonrpc":"1.0","method":"escrow_version","id":1}`, status: http.StatusBadRequest, code: "-32600"},
		{name: "no method", body: `{"jsonrpc":"2.0","id":1}`, status: http.StatusBadRequest, code: "-32600"},
		{name: "unknown", body: `{"jsonrpc":"2.0","method":"nhb_getBalance","id":1}`, status: http.StatusNotFound, code: "-32601"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := http.Post(env.http.URL+"/rpc", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer res.Body.Close()
			body, _ := io.ReadAll(res.Body)
			require.Equal(t, tc.status, res.StatusCode)
			require.Contains(t, string(body), tc.code)
		})
	}
}

func TestRateLimitedRequests(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.RateLimit.RequestsPerSecond = 0.001; cfg.RateLimit.Burst = 1 })
	c := env.client("")
	require.NoError(t, c.Call(context.Background(), "escrow_version", nil, nil))
	err := c.Call(context.Background(), "escrow_version", nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=429")
}

func TestRegistryMount(t *testing.T) {
	reg := nft.NewMemRegistry()
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.Registry = nft.Handler(reg) })
	ctx := context.Background()

	anonymous := nft.NewRPCClient(env.http.URL+"/registry", "")
	require.Error(t, anonymous.Mint(ctx, "T8", "alice"))
	reader := nft.NewRPCClient(env.http.URL+"/registry", adminToken(t, "", "escrow:read"))
	require.Error(t, reader.Mint(ctx, "T8", "alice"))
	_, exists := reg.Token("T8")
	require.False(t, exists)

	registry := nft.NewRPCClient(env.http.URL+"/registry", adminToken(t, "admin", "escrow:admin"))
	require.NoError(t, registry.Mint(ctx, "T9", "alice"))
	owner, err := registry.OwnerOf(ctx, "T9")
	require.NoError(t, err)
	require.Equal(t, "alice", owner.String())
}

func TestRegistryNotMountedWithoutAuth(t *testing.T) {
	reg := nft.NewMemRegistry()
	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.Registry = nft.Handler(reg)
		cfg.Auth = nil
	})
	resp, err := http.Post(env.http.URL+"/registry", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"nft_mint","params":[{}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Empty(t, reg.Tokens())
}

func TestVersionMethod(t *testing.T) {
	env := newTestEnv(t, nil)
	var out modules.VersionResult
	require.NoError(t, env.client("").Call(context.Background(), "escrow_version", nil, &out))
	require.Equal(t, "0.0.1", out.Version)
}
