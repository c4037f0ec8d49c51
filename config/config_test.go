package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "escrowd.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, defaultListenAddress, cfg.ListenAddress)
	require.Equal(t, "escrow", cfg.ContractAccount)
	require.Equal(t, uint64(defaultGasTGas), cfg.GasTGas)
	require.Equal(t, DefaultAdminScope, cfg.Auth.AdminScope)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, again.ListenAddress)
	require.Equal(t, cfg.RateLimit, again.RateLimit)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.toml")
	contents := `ListenAddress = "127.0.0.1:9100"
DataDir = "/var/lib/escrow"
Env = "prod"
ContractAccount = "market.escrow"
RegistryAccount = "nft.market"
RegistryURL = "http://registry.internal:8600/rpc"
GasTGas = 20
GateOnPhase = true
Workers = 4
QueueCapacity = 64
ReceiptDB = "receipts.db"
Admins = ["ops", " root "]

[auth]
SecretEnv = "ESCROW_TEST_JWT"
Issuer = "issuer"

[rate_limit]
RequestsPerSecond = 5.5
Burst = 10

[telemetry]
Endpoint = "collector:4318"
Insecure = true
Metrics = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	t.Setenv("ESCROW_TEST_JWT", " s3cret ")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9100", cfg.ListenAddress)
	require.Equal(t, "prod", cfg.Env)
	require.True(t, cfg.GateOnPhase)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, uint64(20), cfg.GasTGas)
	require.Equal(t, []string{"ops", " root "}, cfg.Admins)
	require.Equal(t, DefaultAdminScope, cfg.Auth.AdminScope)
	require.Equal(t, "s3cret", cfg.Auth.ResolveSecret())
	require.Equal(t, 5.5, cfg.RateLimit.RequestsPerSecond)
	require.True(t, cfg.Telemetry.Metrics)
	require.Equal(t, filepath.Join("/var/lib/escrow", "receipts.db"), cfg.ReceiptDBPath())
	require.Equal(t, filepath.Join("/var/lib/escrow", "state"), cfg.StateDir())
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`ContractAccount = "Bad Name"`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "bad listen", mutate: func(c *Config) { c.ListenAddress = "nowhere" }},
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = " " }},
		{name: "bad registry account", mutate: func(c *Config) { c.RegistryAccount = "-x" }},
		{name: "same accounts", mutate: func(c *Config) { c.RegistryAccount = c.ContractAccount }},
		{name: "relative registry url", mutate: func(c *Config) { c.RegistryURL = "registry/rpc" }},
		{name: "zero gas", mutate: func(c *Config) { c.GasTGas = 0 }},
		{name: "gas above cap", mutate: func(c *Config) { c.GasTGas = MaxGasTGas + 1 }},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "no queue", mutate: func(c *Config) { c.QueueCapacity = -1 }},
		{name: "bad admin", mutate: func(c *Config) { c.Admins = []string{"A"} }},
		{name: "rate without burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }},
		{name: "rate disabled", mutate: func(c *Config) { c.RateLimit = RateLimit{} }, ok: true},
		{name: "telemetry without endpoint", mutate: func(c *Config) { c.Telemetry.Traces = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestResolveSecretPrefersInline(t *testing.T) {
	t.Setenv("ESCROW_TEST_JWT", "from-env")
	require.Equal(t, "inline", Auth{Secret: "inline", SecretEnv: "ESCROW_TEST_JWT"}.ResolveSecret())
	require.Equal(t, "from-env", Auth{SecretEnv: "ESCROW_TEST_JWT"}.ResolveSecret())
	require.Empty(t, Auth{}.ResolveSecret())
}

func TestTelemetryInterval(t *testing.T) {
	require.Equal(t, int64(15), int64(Telemetry{}.Interval().Seconds()))
	require.Equal(t, int64(3), int64(Telemetry{ExportInterval: 3}.Interval().Seconds()))
}
